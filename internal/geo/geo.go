package geo

import "math"

// Mean earth radius (6371 km) expressed in feet.
const earthRadiusFeet = 20902231.0

// Point is a coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// DistanceFeet returns the great-circle distance between two points using the
// haversine formula on a fixed-radius sphere. Inputs must be valid decimal
// degrees; out-of-range coordinates are not detected here.
func DistanceFeet(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusFeet * c
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
