package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"nextbus-tracker/internal/config"
	"nextbus-tracker/internal/db"
	"nextbus-tracker/internal/metrics"
	"nextbus-tracker/internal/nextbus"
	"nextbus-tracker/internal/poller"
	"nextbus-tracker/internal/publisher"
	"nextbus-tracker/internal/record"
	"nextbus-tracker/internal/track"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := nextbus.NewClient(cfg.FeedURL, cfg.Agency, cfg.Route)

	// Stop set is built once, before the main loop. An empty set is a
	// configuration problem, never "no vehicles tracked".
	stops, err := loadStops(ctx, client, cfg)
	if err != nil {
		log.Fatalf("load stops for %s/%s: %v", cfg.Agency, cfg.Route, err)
	}
	log.Printf("loaded %d stops for route %s (agency %s)", len(stops), cfg.Route, cfg.Agency)

	// Metrics setup
	var mcol *metrics.Collector
	var metricsSrvCancel context.CancelFunc
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(float64(cfg.ThresholdFeet), cfg.PollInterval)
		mctx, mcancel := context.WithCancel(ctx)
		metricsSrvCancel = mcancel
		srv := mcol.Serve(cfg.MetricsAddr)
		go func() {
			<-mctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Record sinks: file/stdout writer plus optional NATS publisher
	out, closeOut, err := openOutput(cfg)
	if err != nil {
		log.Fatalf("open output: %v", err)
	}
	writer := record.NewWriter(out, record.Format(cfg.Format), cfg.Detail)
	sinks := []poller.Sink{writer}

	var pub *publisher.NATSPublisher
	if cfg.NATSURL != "" {
		pub, err = publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.Agency, cfg.Route,
			cfg.Detail, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	resolver := track.NewResolver(stops, float64(cfg.ThresholdFeet))
	pipe := track.NewPipeline(track.NewCompactor(), track.NewWindowManager(cfg.WindowLocation), wrapTrackMetrics(mcol))
	p := poller.New(client, resolver, pipe, sinks, cfg.PollInterval, cfg.RetryDelay, cfg.FetchRetries, wrapPollerMetrics(mcol))

	// Run blocks until cancellation or retry exhaustion; pending episodes are
	// drained to the sinks either way.
	if err := p.Run(ctx); err != nil {
		log.Printf("tracking ended: %v", err)
	}

	if err := writer.Flush(); err != nil {
		log.Printf("flush output: %v", err)
	}
	closeOut()
	if metricsSrvCancel != nil {
		metricsSrvCancel()
	}
	log.Println("shutdown complete")
}

// loadStops fetches the stop set from the configured source, retrying
// transient feed failures under the same retry budget as the poll loop.
func loadStops(ctx context.Context, client *nextbus.Client, cfg *config.Config) ([]track.Stop, error) {
	if cfg.StopsSource == "db" {
		sqlDB, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		defer sqlDB.Close()
		if err := db.Ping(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("db ping: %w", err)
		}
		return db.FetchRouteStops(ctx, sqlDB, cfg.Route)
	}

	attempts := 0
	for {
		stops, err := client.RouteConfig(ctx)
		if err == nil {
			return stops, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !nextbus.Retryable(err) {
			return nil, err
		}
		attempts++
		if cfg.FetchRetries > 0 && attempts >= cfg.FetchRetries {
			return nil, err
		}
		log.Printf("route config fetch failed (attempt %d): %v; retrying in %s", attempts, err, cfg.RetryDelay)
		if err := poller.Sleep(ctx, cfg.RetryDelay); err != nil {
			return nil, err
		}
	}
}

// openOutput resolves the OUT setting: "-" is stdout, a directory gets a
// date-stamped log file, anything else is opened for append.
func openOutput(cfg *config.Config) (*os.File, func(), error) {
	if cfg.Output == "-" || cfg.Output == "" {
		return os.Stdout, func() {}, nil
	}
	path := cfg.Output
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		date := time.Now().In(cfg.WindowLocation).Format("20060102")
		path = filepath.Join(path, fmt.Sprintf("nextbus-%s-%s-%s.log", cfg.Agency, cfg.Route, date))
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() {
		if err := f.Close(); err != nil {
			log.Printf("close output: %v", err)
		}
	}, nil
}

// wrapTrackMetrics adapts the Collector to the pipeline's metrics interface.
func wrapTrackMetrics(c *metrics.Collector) track.Metrics {
	if c == nil {
		return nil
	}
	return &trackMetrics{c: c}
}

type trackMetrics struct{ c *metrics.Collector }

func (t *trackMetrics) EmittedInc(cause string, n int) {
	t.c.RecordsEmitted.WithLabelValues(cause).Add(float64(n))
}
func (t *trackMetrics) SetActiveEpisodes(n int) { t.c.ActiveEpisodes.Set(float64(n)) }

// wrapPollerMetrics adapts the Collector to the poller's metrics interface.
func wrapPollerMetrics(c *metrics.Collector) poller.Metrics {
	if c == nil {
		return nil
	}
	return &pollMetrics{c: c}
}

type pollMetrics struct{ c *metrics.Collector }

func (p *pollMetrics) PollInc()                        { p.c.Polls.Inc() }
func (p *pollMetrics) FetchErrInc(stage string)        { p.c.FetchErrors.WithLabelValues(stage).Inc() }
func (p *pollMetrics) ObservationInc()                 { p.c.Observations.Inc() }
func (p *pollMetrics) NoMatchInc()                     { p.c.NoMatch.Inc() }
func (p *pollMetrics) SkippedAdd(n int)                { p.c.SkippedVehicles.Add(float64(n)) }
func (p *pollMetrics) CycleObserve(d time.Duration)    { p.c.PollCycleDuration.Observe(d.Seconds()) }

// wrapPublisherMetrics adapts the Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
