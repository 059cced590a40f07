package record

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"nextbus-tracker/internal/track"
)

// Format selects the sink encoding.
type Format string

const (
	FormatLine Format = "line"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Writer serializes finalized records to one destination in one format.
type Writer struct {
	w      io.Writer
	format Format
	detail bool

	csvw      *csv.Writer
	wroteHead bool
}

func NewWriter(w io.Writer, format Format, detail bool) *Writer {
	rw := &Writer{w: w, format: format, detail: detail}
	if format == FormatCSV {
		rw.csvw = csv.NewWriter(w)
	}
	return rw
}

func (w *Writer) Write(o track.Observation) error {
	switch w.format {
	case FormatCSV:
		return w.writeCSV(o)
	case FormatJSON:
		b, err := json.Marshal(FromObservation(o, w.detail))
		if err != nil {
			return err
		}
		_, err = w.w.Write(append(b, '\n'))
		return err
	default:
		_, err := io.WriteString(w.w, EncodeLine(o, w.detail)+"\n")
		return err
	}
}

func (w *Writer) writeCSV(o track.Observation) error {
	if !w.wroteHead {
		head := []string{"time", "vehicle_id", "route", "speed_mph", "lat", "lon", "vehicle_distance", "stop_tag"}
		if w.detail {
			head = append(head, "stop_title", "stop_id", "stop_dir", "stop_lat", "stop_lon")
		}
		if err := w.csvw.Write(head); err != nil {
			return err
		}
		w.wroteHead = true
	}
	r := FromObservation(o, w.detail)
	row := []string{
		r.Time.Format(TimeLayout),
		r.VehicleID,
		r.Route,
		strconv.FormatFloat(r.SpeedMPH, 'f', 1, 64),
		strconv.FormatFloat(r.Lat, 'f', 6, 64),
		strconv.FormatFloat(r.Lon, 'f', 6, 64),
		strconv.Itoa(r.DistanceFeet),
		r.StopTag,
	}
	if w.detail {
		row = append(row,
			r.StopTitle,
			r.StopID,
			r.StopDirection,
			strconv.FormatFloat(r.StopLat, 'f', 6, 64),
			strconv.FormatFloat(r.StopLon, 'f', 6, 64),
		)
	}
	return w.csvw.Write(row)
}

// Flush drains any buffered output (CSV only; line and JSON are unbuffered).
func (w *Writer) Flush() error {
	if w.csvw != nil {
		w.csvw.Flush()
		return w.csvw.Error()
	}
	return nil
}
