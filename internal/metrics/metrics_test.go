package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollectorSeedsConfigGauges(t *testing.T) {
	c := NewCollector(100, 10*time.Second)

	assert.Equal(t, 100.0, testutil.ToFloat64(c.ThresholdFeet))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.PollInterval))
}

func TestCollectorCounters(t *testing.T) {
	c := NewCollector(100, 10*time.Second)

	c.Polls.Inc()
	c.Polls.Inc()
	c.RecordsEmitted.WithLabelValues("window").Add(3)
	c.SkippedVehicles.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Polls))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.RecordsEmitted.WithLabelValues("window")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SkippedVehicles))
}

func TestHandlerExposesRegisteredSeries(t *testing.T) {
	c := NewCollector(100, 10*time.Second)
	c.Polls.Inc()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "tracker_polls_total 1")
	assert.Contains(t, string(body), "tracker_threshold_feet 100")
	// Only instruments with a call site are registered.
	assert.NotContains(t, string(body), "parse_errors")
}
