package record

import (
	"math"
	"time"

	"nextbus-tracker/internal/track"
)

// Record is the finalized, sink-facing form of a compacted episode. The base
// field set is always present; the stop detail fields are populated only at
// the detail level.
type Record struct {
	Time         time.Time `json:"time"`
	VehicleID    string    `json:"vehicleId"`
	Route        string    `json:"route"`
	SpeedMPH     float64   `json:"speedMph"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	DistanceFeet int       `json:"distanceFeet"`
	StopTag      string    `json:"stopTag"`

	StopTitle     string  `json:"stopTitle,omitempty"`
	StopID        string  `json:"stopId,omitempty"`
	StopDirection string  `json:"stopDirection,omitempty"`
	StopLat       float64 `json:"stopLat,omitempty"`
	StopLon       float64 `json:"stopLon,omitempty"`
}

// FromObservation converts a finalized observation, rounding the distance to
// the nearest foot and normalizing the timestamp to UTC.
func FromObservation(o track.Observation, detail bool) Record {
	r := Record{
		Time:         o.EffectiveTime.UTC(),
		VehicleID:    o.VehicleID,
		Route:        o.Route,
		SpeedMPH:     o.SpeedMPH,
		Lat:          o.Location.Lat,
		Lon:          o.Location.Lon,
		DistanceFeet: int(math.Round(o.DistanceFeet)),
		StopTag:      o.Stop.Tag,
	}
	if detail {
		r.StopTitle = o.Stop.Title
		r.StopID = o.Stop.ExternalID
		r.StopDirection = o.Stop.Direction
		r.StopLat = o.Stop.Location.Lat
		r.StopLon = o.Stop.Location.Lon
	}
	return r
}
