package track

import (
	"time"

	"nextbus-tracker/internal/geo"
)

// Stop is one stop on the tracked route. The set is loaded once before the
// run begins and is immutable for the run's lifetime.
type Stop struct {
	Tag        string // unique key within the route
	Title      string
	ExternalID string // agency-facing stop id, if any
	Direction  string
	Location   geo.Point
}

// VehicleSnapshot is one vehicle position as reported by a single poll.
type VehicleSnapshot struct {
	ID            string
	Route         string
	Direction     string
	Location      geo.Point
	SpeedMPH      float64
	AgeSeconds    int // seconds since the vehicle last reported
	PollTimestamp time.Time
}

// EffectiveTime is the poll timestamp backed off by the report age.
func (v VehicleSnapshot) EffectiveTime() time.Time {
	return v.PollTimestamp.Add(-time.Duration(v.AgeSeconds) * time.Second)
}

// Observation is one resolved (vehicle, nearest stop, distance) fact. It is
// both the compactor's input unit and, once an episode finalizes, its output.
type Observation struct {
	VehicleID     string
	Route         string
	SpeedMPH      float64
	Location      geo.Point
	DistanceFeet  float64
	Stop          Stop
	EffectiveTime time.Time
}
