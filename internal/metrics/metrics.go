package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Polls       prometheus.Counter
	FetchErrors *prometheus.CounterVec // stage label: routeConfig|vehicleLocations

	Observations    prometheus.Counter
	NoMatch         prometheus.Counter
	SkippedVehicles prometheus.Counter

	RecordsEmitted *prometheus.CounterVec // cause label: stop_change|window|drain
	ActiveEpisodes prometheus.Gauge

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	PollCycleDuration prometheus.Histogram
	PublishDuration   prometheus.Histogram

	ThresholdFeet prometheus.Gauge
	PollInterval  prometheus.Gauge // seconds
}

func NewCollector(thresholdFeet float64, pollInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_polls_total",
			Help: "Total completed poll cycles.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_fetch_errors_total",
			Help: "Total feed fetch or decode failures.",
		}, []string{"stage"}),
		Observations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_observations_total",
			Help: "Total in-threshold observations fed to the compactor.",
		}),
		NoMatch: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_no_match_total",
			Help: "Total snapshots with no direction-matching stop in threshold.",
		}),
		SkippedVehicles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_skipped_vehicles_total",
			Help: "Total vehicle records skipped for missing attributes.",
		}),
		RecordsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_records_emitted_total",
			Help: "Total finalized records emitted.",
		}, []string{"cause"}),
		ActiveEpisodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_active_episodes",
			Help: "Vehicles currently holding a pending episode.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PollCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_poll_cycle_duration_seconds",
			Help:    "Duration of a full fetch-resolve-compact cycle.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		ThresholdFeet: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_threshold_feet",
			Help: "Configured stop-distance threshold in feet.",
		}),
		PollInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_poll_interval_seconds",
			Help: "Poll interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.Polls, c.FetchErrors,
		c.Observations, c.NoMatch, c.SkippedVehicles,
		c.RecordsEmitted, c.ActiveEpisodes,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.PollCycleDuration, c.PublishDuration,
		c.ThresholdFeet, c.PollInterval,
	)

	c.ThresholdFeet.Set(thresholdFeet)
	c.PollInterval.Set(pollInterval.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
