package nextbus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routeConfigXML = `<?xml version="1.0" encoding="utf-8"?>
<body copyright="All data copyright agency 2026.">
<route tag="N" title="N-Judah" color="003399">
<stop tag="5205" title="Judah St &amp; La Playa St" stopId="15205" lat="37.7601699" lon="-122.50878"/>
<stop tag="5239" title="Judah St &amp; 46th Ave" stopId="15239" lat="37.7604899" lon="-122.50586"/>
<stop tag="7145" title="Crossover Track" lat="37.76" lon="-122.50"/>
<stop tag="5240" title="Judah St &amp; 46th Ave" stopId="15240" lat="37.7606099" lon="-122.50594"/>
<direction tag="N__OB" name="Outbound" useForUI="true">
<stop tag="5239"/>
<stop tag="5205"/>
</direction>
<direction tag="N__IB" name="Inbound" useForUI="true">
<stop tag="5240"/>
</direction>
</route>
</body>`

func TestParseRouteConfig(t *testing.T) {
	stops, err := parseRouteConfig([]byte(routeConfigXML))
	require.NoError(t, err)

	// crossover stop 7145 is in no direction list and is skipped
	require.Len(t, stops, 3)

	// document order is preserved
	assert.Equal(t, "5205", stops[0].Tag)
	assert.Equal(t, "N__OB", stops[0].Direction)
	assert.Equal(t, "Judah St & La Playa St", stops[0].Title)
	assert.Equal(t, "15205", stops[0].ExternalID)
	assert.InDelta(t, 37.7601699, stops[0].Location.Lat, 1e-7)

	assert.Equal(t, "5239", stops[1].Tag)
	assert.Equal(t, "N__OB", stops[1].Direction)

	assert.Equal(t, "5240", stops[2].Tag)
	assert.Equal(t, "N__IB", stops[2].Direction)
}

func TestParseRouteConfigEmptyIsConfigurationError(t *testing.T) {
	_, err := parseRouteConfig([]byte(`<body><route tag="X"></route></body>`))
	assert.ErrorIs(t, err, ErrNoStops)

	noDirs := `<body><route tag="X"><stop tag="1" title="A" lat="1" lon="1"/></route></body>`
	_, err = parseRouteConfig([]byte(noDirs))
	assert.ErrorIs(t, err, ErrNoDirections)
}

func TestParseRouteConfigFeedError(t *testing.T) {
	body := `<body><Error shouldRetry="false">Could not get route "Q" for agency tag "sf-muni"</Error></body>`
	_, err := parseRouteConfig([]byte(body))
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.False(t, fe.Retryable)
	assert.False(t, Retryable(err))
}

const vehicleLocationsXML = `<?xml version="1.0" encoding="utf-8"?>
<body copyright="All data copyright agency 2026.">
<vehicle id="1415" routeTag="N" dirTag="N__OB" lat="37.760036" lon="-122.508917" secsSinceReport="9" predictable="true" heading="218" speedKmHr="16"/>
<vehicle id="2031" routeTag="N" dirTag="" lat="37.77" lon="-122.41" secsSinceReport="3" predictable="false" heading="-4" speedKmHr="0"/>
<vehicle id="" routeTag="N" dirTag="N__IB" lat="37.78" lon="-122.40" secsSinceReport="5" predictable="true" heading="90" speedKmHr="21"/>
<lastTime time="1787158830123"/>
</body>`

func TestParseVehicleLocations(t *testing.T) {
	pollTime := time.Date(2026, 8, 30, 17, 0, 30, 0, time.UTC)
	snaps, skipped, lastTime, err := parseVehicleLocations([]byte(vehicleLocationsXML), pollTime)
	require.NoError(t, err)

	assert.Equal(t, 2, skipped, "records missing id or dirTag are dropped individually")
	assert.Equal(t, int64(1787158830123), lastTime)

	require.Len(t, snaps, 1)
	v := snaps[0]
	assert.Equal(t, "1415", v.ID)
	assert.Equal(t, "N", v.Route)
	assert.Equal(t, "N__OB", v.Direction)
	assert.Equal(t, 9, v.AgeSeconds)
	assert.InDelta(t, 16*kmhToMPH, v.SpeedMPH, 1e-9)
	assert.Equal(t, pollTime, v.PollTimestamp)
	assert.Equal(t, pollTime.Add(-9*time.Second), v.EffectiveTime())
}

func TestParseVehicleLocationsRetryableFeedError(t *testing.T) {
	body := `<body><Error shouldRetry="true">Agency server temporarily unavailable</Error></body>`
	_, _, _, err := parseVehicleLocations([]byte(body), time.Now())
	assert.True(t, Retryable(err))
}

func TestParseVehicleLocationsMalformedXML(t *testing.T) {
	_, _, _, err := parseVehicleLocations([]byte("<body><vehicle"), time.Now())
	require.Error(t, err)
	assert.False(t, errors.As(err, new(*FetchError)), "raw decode errors are wrapped by the client, not here")
}
