package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"nextbus-tracker/internal/geo"
	"nextbus-tracker/internal/track"
)

// TimeLayout is the fixed-width UTC prefix of a short-form log line.
const TimeLayout = "2006-01-02 15:04:05"

// ParseError reports one undecodable short-form line. Replay mode skips the
// line and continues.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// EncodeLine renders an observation as a short-form log line: the fixed-width
// UTC timestamp followed by key=value pairs. Values containing spaces are
// double-quoted.
func EncodeLine(o track.Observation, detail bool) string {
	r := FromObservation(o, detail)
	var b strings.Builder
	b.WriteString(r.Time.Format(TimeLayout))
	pair := func(k, v string) {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		if strings.ContainsAny(v, " \t") || v == "" {
			b.WriteString(strconv.Quote(v))
		} else {
			b.WriteString(v)
		}
	}
	pair("vehicle_id", r.VehicleID)
	pair("route", r.Route)
	pair("speed_mph", strconv.FormatFloat(r.SpeedMPH, 'f', 1, 64))
	pair("lat", strconv.FormatFloat(r.Lat, 'f', 6, 64))
	pair("lon", strconv.FormatFloat(r.Lon, 'f', 6, 64))
	pair("vehicle_distance", strconv.Itoa(r.DistanceFeet))
	pair("stop_tag", r.StopTag)
	if detail {
		pair("stop_title", r.StopTitle)
		pair("stop_id", r.StopID)
		pair("stop_dir", r.StopDirection)
		pair("stop_lat", strconv.FormatFloat(r.StopLat, 'f', 6, 64))
		pair("stop_lon", strconv.FormatFloat(r.StopLon, 'f', 6, 64))
	}
	return b.String()
}

// DecodeLine parses a short-form log line back into an observation for
// re-compaction. lineNo is carried into any ParseError for the status note.
func DecodeLine(line string, lineNo int) (track.Observation, error) {
	if len(line) < len(TimeLayout)+1 {
		return track.Observation{}, &ParseError{Line: lineNo, Reason: "line too short"}
	}
	ts, err := time.ParseInLocation(TimeLayout, line[:len(TimeLayout)], time.UTC)
	if err != nil {
		return track.Observation{}, &ParseError{Line: lineNo, Reason: "bad timestamp: " + err.Error()}
	}
	fields, err := splitPairs(line[len(TimeLayout):])
	if err != nil {
		return track.Observation{}, &ParseError{Line: lineNo, Reason: err.Error()}
	}

	o := track.Observation{EffectiveTime: ts}
	need := func(k string) (string, bool) {
		v, ok := fields[k]
		return v, ok
	}
	var ok bool
	if o.VehicleID, ok = need("vehicle_id"); !ok {
		return track.Observation{}, &ParseError{Line: lineNo, Reason: "missing vehicle_id"}
	}
	if o.Stop.Tag, ok = need("stop_tag"); !ok {
		return track.Observation{}, &ParseError{Line: lineNo, Reason: "missing stop_tag"}
	}
	dist, ok := need("vehicle_distance")
	if !ok {
		return track.Observation{}, &ParseError{Line: lineNo, Reason: "missing vehicle_distance"}
	}
	if o.DistanceFeet, err = strconv.ParseFloat(dist, 64); err != nil {
		return track.Observation{}, &ParseError{Line: lineNo, Reason: "bad vehicle_distance: " + dist}
	}

	// Remaining fields are optional on input; a short-form line produced
	// without detail still re-compacts correctly.
	o.Route = fields["route"]
	o.SpeedMPH = parseFloatDefault(fields["speed_mph"])
	o.Location = geo.Point{Lat: parseFloatDefault(fields["lat"]), Lon: parseFloatDefault(fields["lon"])}
	o.Stop.Title = fields["stop_title"]
	o.Stop.ExternalID = fields["stop_id"]
	o.Stop.Direction = fields["stop_dir"]
	o.Stop.Location = geo.Point{Lat: parseFloatDefault(fields["stop_lat"]), Lon: parseFloatDefault(fields["stop_lon"])}
	return o, nil
}

func parseFloatDefault(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// splitPairs tokenizes trailing key=value pairs, honoring double-quoted
// values.
func splitPairs(s string) (map[string]string, error) {
	out := make(map[string]string)
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}
		eq := strings.IndexByte(s[i:], '=')
		if eq <= 0 {
			return nil, fmt.Errorf("malformed pair near %q", s[i:])
		}
		key := s[i : i+eq]
		i += eq + 1
		var val string
		if i < len(s) && s[i] == '"' {
			rest := s[i:]
			parsed, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, fmt.Errorf("unterminated quote for key %q", key)
			}
			val, err = strconv.Unquote(parsed)
			if err != nil {
				return nil, fmt.Errorf("bad quoted value for key %q", key)
			}
			i += len(parsed)
		} else {
			end := strings.IndexByte(s[i:], ' ')
			if end < 0 {
				val = s[i:]
				i = len(s)
			} else {
				val = s[i : i+end]
				i += end
			}
		}
		out[key] = val
	}
	return out, nil
}
