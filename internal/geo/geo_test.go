package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceFeetZeroForSamePoint(t *testing.T) {
	points := []Point{
		{Lat: 0, Lon: 0},
		{Lat: 37.7793, Lon: -122.4193},
		{Lat: -33.8688, Lon: 151.2093},
	}
	for _, p := range points {
		assert.Zero(t, DistanceFeet(p, p))
	}
}

func TestDistanceFeetSymmetric(t *testing.T) {
	a := Point{Lat: 37.7793, Lon: -122.4193}
	b := Point{Lat: 37.8044, Lon: -122.2712}
	assert.Equal(t, DistanceFeet(a, b), DistanceFeet(b, a))
}

func TestDistanceFeetKnownValue(t *testing.T) {
	// One degree of latitude is about 364813 feet on a 6371 km sphere.
	a := Point{Lat: 37.0, Lon: -122.0}
	b := Point{Lat: 38.0, Lon: -122.0}
	require.InDelta(t, 364813, DistanceFeet(a, b), 50)
}

func TestDistanceFeetMonotonicAlongBearing(t *testing.T) {
	origin := Point{Lat: 37.7793, Lon: -122.4193}
	prev := 0.0
	for i := 1; i <= 10; i++ {
		p := Point{Lat: origin.Lat + float64(i)*0.001, Lon: origin.Lon}
		d := DistanceFeet(origin, p)
		require.Greater(t, d, prev, "distance must grow with angular separation")
		prev = d
	}
}
