package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(m Metrics) *Pipeline {
	return NewPipeline(NewCompactor(), NewWindowManager(time.UTC), m)
}

func TestPipelineStopChangeSequence(t *testing.T) {
	p := newTestPipeline(nil)

	// V1 sits near S1 across three polls, then registers S2.
	for i, d := range []float64{80, 60, 70} {
		out := p.Feed(obs("v1", "s1", d, time.Duration(i)*time.Minute))
		assert.Empty(t, out)
	}
	out := p.Feed(obs("v1", "s2", 40, 3*time.Minute))
	require.Len(t, out, 1)
	assert.Equal(t, "s1", out[0].Stop.Tag)
	assert.Equal(t, 60.0, out[0].DistanceFeet)

	out = p.Drain()
	require.Len(t, out, 1)
	assert.Equal(t, "s2", out[0].Stop.Tag)
	assert.Equal(t, 40.0, out[0].DistanceFeet)
}

func TestPipelineWindowBoundaryFlushesPendingEpisodes(t *testing.T) {
	p := newTestPipeline(nil)

	// v2 never leaves s3; the day boundary must still force it out.
	p.Feed(obs("v2", "s3", 30, 0))
	nextDay := Observation{
		VehicleID:     "v9",
		DistanceFeet:  55,
		Stop:          Stop{Tag: "s9"},
		EffectiveTime: t0.Add(24 * time.Hour),
	}
	out := p.Feed(nextDay)
	require.Len(t, out, 1)
	assert.Equal(t, "v2", out[0].VehicleID)
	assert.Equal(t, "s3", out[0].Stop.Tag)
	assert.Equal(t, 30.0, out[0].DistanceFeet)

	// the boundary observation itself is pending under the new window
	out = p.Drain()
	require.Len(t, out, 1)
	assert.Equal(t, "v9", out[0].VehicleID)
}

func TestPipelineFirstObservationEstablishesWindowWithoutFlush(t *testing.T) {
	p := newTestPipeline(nil)
	assert.Empty(t, p.Feed(obs("v1", "s1", 50, 0)))
}

func TestPipelineDrainOrdersAcrossVehicles(t *testing.T) {
	p := newTestPipeline(nil)
	p.Feed(obs("v2", "s2", 20, 10*time.Minute))
	p.Feed(obs("v1", "s1", 10, 2*time.Minute))

	out := p.Drain()
	require.Len(t, out, 2)
	assert.Equal(t, "v1", out[0].VehicleID)
	assert.Equal(t, "v2", out[1].VehicleID)

	assert.Empty(t, p.Drain(), "draining twice emits nothing")
}

type countingMetrics struct {
	byCause map[string]int
	active  int
}

func (m *countingMetrics) EmittedInc(cause string, n int) { m.byCause[cause] += n }
func (m *countingMetrics) SetActiveEpisodes(n int)        { m.active = n }

func TestPipelineMetricsCauses(t *testing.T) {
	m := &countingMetrics{byCause: map[string]int{}}
	p := newTestPipeline(m)

	p.Feed(obs("v1", "s1", 50, 0))
	p.Feed(obs("v1", "s2", 40, time.Minute))
	assert.Equal(t, 1, m.byCause[CauseStopChange])
	assert.Equal(t, 1, m.active)

	p.Feed(obs("v2", "s1", 10, 25*time.Hour))
	assert.Equal(t, 1, m.byCause[CauseWindow])

	p.Drain()
	assert.Equal(t, 1, m.byCause[CauseDrain])
	assert.Zero(t, m.active)
}

func TestWindowManagerKeysInReferenceLocation(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	w := NewWindowManager(la)

	// 05:00 UTC is still the previous calendar day in Los Angeles.
	utcMorning := time.Date(2026, 8, 30, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, "20260829", w.Key(utcMorning))

	assert.False(t, w.Advance(utcMorning), "first observation establishes the window")
	assert.False(t, w.Advance(utcMorning.Add(time.Hour)))
	assert.True(t, w.Advance(utcMorning.Add(8*time.Hour)), "crossing local midnight is a boundary")
	assert.False(t, w.Advance(utcMorning.Add(9*time.Hour)), "boundary adopts the new window")
}
