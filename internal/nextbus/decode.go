package nextbus

import (
	"encoding/xml"
	"fmt"
	"log"
	"time"

	"nextbus-tracker/internal/geo"
	"nextbus-tracker/internal/track"
)

// feedBody is the common envelope of every feed response. The feed reports
// its own errors in-band with a shouldRetry hint.
type feedBody struct {
	XMLName xml.Name   `xml:"body"`
	Error   *feedError `xml:"Error"`

	Route    *routeXML    `xml:"route"`
	Vehicles []vehicleXML `xml:"vehicle"`
	LastTime *lastTimeXML `xml:"lastTime"`
}

type feedError struct {
	ShouldRetry bool   `xml:"shouldRetry,attr"`
	Message     string `xml:",chardata"`
}

type routeXML struct {
	Tag        string         `xml:"tag,attr"`
	Stops      []stopXML      `xml:"stop"`
	Directions []directionXML `xml:"direction"`
}

type stopXML struct {
	Tag    string  `xml:"tag,attr"`
	Title  string  `xml:"title,attr"`
	StopID string  `xml:"stopId,attr"`
	Lat    float64 `xml:"lat,attr"`
	Lon    float64 `xml:"lon,attr"`
}

type directionXML struct {
	Tag   string `xml:"tag,attr"`
	Name  string `xml:"name,attr"`
	Stops []struct {
		Tag string `xml:"tag,attr"`
	} `xml:"stop"`
}

type vehicleXML struct {
	ID              string  `xml:"id,attr"`
	RouteTag        string  `xml:"routeTag,attr"`
	DirTag          string  `xml:"dirTag,attr"`
	Lat             float64 `xml:"lat,attr"`
	Lon             float64 `xml:"lon,attr"`
	SecsSinceReport int     `xml:"secsSinceReport,attr"`
	SpeedKmHr       float64 `xml:"speedKmHr,attr"`
}

type lastTimeXML struct {
	Time int64 `xml:"time,attr"` // epoch milliseconds
}

func parseRouteConfig(body []byte) ([]track.Stop, error) {
	var doc feedBody
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc.Error != nil {
		return nil, &FetchError{
			Op:        "routeConfig",
			Retryable: doc.Error.ShouldRetry,
			Err:       fmt.Errorf("feed error: %s", doc.Error.Message),
		}
	}
	if doc.Route == nil || len(doc.Route.Stops) == 0 {
		return nil, ErrNoStops
	}
	if len(doc.Route.Directions) == 0 {
		return nil, ErrNoDirections
	}

	// Direction membership: a stop's direction is the tag of the direction
	// block that lists it. First listing wins.
	dirByStop := make(map[string]string)
	for _, d := range doc.Route.Directions {
		for _, s := range d.Stops {
			if _, seen := dirByStop[s.Tag]; !seen {
				dirByStop[s.Tag] = d.Tag
			}
		}
	}

	stops := make([]track.Stop, 0, len(doc.Route.Stops))
	for _, s := range doc.Route.Stops {
		dir, ok := dirByStop[s.Tag]
		if !ok {
			// Not an error: crossover stops outside every direction list are
			// common in real route configs.
			log.Printf("skipping stop %s (%s): not listed in any direction", s.Tag, s.Title)
			continue
		}
		stops = append(stops, track.Stop{
			Tag:        s.Tag,
			Title:      s.Title,
			ExternalID: s.StopID,
			Direction:  dir,
			Location:   geo.Point{Lat: s.Lat, Lon: s.Lon},
		})
	}
	if len(stops) == 0 {
		return nil, ErrNoStops
	}
	return stops, nil
}

func parseVehicleLocations(body []byte, pollTime time.Time) (snaps []track.VehicleSnapshot, skipped int, lastTime int64, err error) {
	var doc feedBody
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, 0, 0, err
	}
	if doc.Error != nil {
		return nil, 0, 0, &FetchError{
			Op:        "vehicleLocations",
			Retryable: doc.Error.ShouldRetry,
			Err:       fmt.Errorf("feed error: %s", doc.Error.Message),
		}
	}
	for _, v := range doc.Vehicles {
		if v.ID == "" || v.DirTag == "" {
			log.Printf("skipping vehicle record (id=%q dirTag=%q): missing required attributes", v.ID, v.DirTag)
			skipped++
			continue
		}
		snaps = append(snaps, track.VehicleSnapshot{
			ID:            v.ID,
			Route:         v.RouteTag,
			Direction:     v.DirTag,
			Location:      geo.Point{Lat: v.Lat, Lon: v.Lon},
			SpeedMPH:      v.SpeedKmHr * kmhToMPH,
			AgeSeconds:    v.SecsSinceReport,
			PollTimestamp: pollTime,
		})
	}
	if doc.LastTime != nil {
		lastTime = doc.LastTime.Time
	}
	return snaps, skipped, lastTime, nil
}
