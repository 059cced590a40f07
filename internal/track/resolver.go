package track

import "nextbus-tracker/internal/geo"

// Resolver finds the nearest direction-matching stop within a distance
// threshold. It owns the immutable stop slice for the run; the slice order is
// the tie-break order when two stops are exactly equidistant.
type Resolver struct {
	stops         []Stop
	thresholdFeet float64
}

func NewResolver(stops []Stop, thresholdFeet float64) *Resolver {
	return &Resolver{stops: stops, thresholdFeet: thresholdFeet}
}

// Resolve returns the observation for the nearest stop whose direction equals
// the vehicle's, or ok=false when no stop matches the direction or the
// nearest match is beyond the threshold. A false result is a normal outcome,
// not an error.
func (r *Resolver) Resolve(v VehicleSnapshot) (Observation, bool) {
	best := -1
	bestDist := 0.0
	for i, s := range r.stops {
		if s.Direction != v.Direction {
			continue
		}
		d := geo.DistanceFeet(v.Location, s.Location)
		// strict < keeps the first stop in slice order on exact ties
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 || bestDist > r.thresholdFeet {
		return Observation{}, false
	}
	return Observation{
		VehicleID:     v.ID,
		Route:         v.Route,
		SpeedMPH:      v.SpeedMPH,
		Location:      v.Location,
		DistanceFeet:  bestDist,
		Stop:          r.stops[best],
		EffectiveTime: v.EffectiveTime(),
	}, true
}
