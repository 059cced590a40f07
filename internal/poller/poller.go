package poller

import (
	"context"
	"errors"
	"log"
	"time"

	"nextbus-tracker/internal/nextbus"
	"nextbus-tracker/internal/track"
)

// Source supplies one poll cycle of vehicle snapshots. skipped counts
// malformed records dropped at the decode boundary.
type Source interface {
	VehicleLocations(ctx context.Context) (snaps []track.VehicleSnapshot, skipped int, err error)
}

// Sink receives finalized records.
type Sink interface {
	Write(o track.Observation) error
}

// Metrics is implemented by callers that want poll-loop counts; nil is valid.
type Metrics interface {
	PollInc()
	FetchErrInc(stage string)
	ObservationInc()
	NoMatchInc()
	SkippedAdd(n int)
	CycleObserve(d time.Duration)
}

// Poller drives the live tracking loop: fetch a snapshot cycle (with retry),
// resolve every snapshot, feed the results serially to the pipeline, and
// write whatever the pipeline finalizes. All pipeline access happens on the
// Run goroutine.
type Poller struct {
	src      Source
	resolver *track.Resolver
	pipe     *track.Pipeline
	sinks    []Sink

	interval   time.Duration
	retryDelay time.Duration
	maxRetries int // 0 = retry until cancelled

	metrics Metrics
}

func New(src Source, resolver *track.Resolver, pipe *track.Pipeline, sinks []Sink, interval, retryDelay time.Duration, maxRetries int, m Metrics) *Poller {
	return &Poller{
		src:        src,
		resolver:   resolver,
		pipe:       pipe,
		sinks:      sinks,
		interval:   interval,
		retryDelay: retryDelay,
		maxRetries: maxRetries,
		metrics:    m,
	}
}

// Run polls until the context is cancelled or the retry budget is exhausted.
// Both exits drain the pipeline first; pending episodes are never lost to a
// shutdown.
func (p *Poller) Run(ctx context.Context) error {
	// first cycle immediately, then on the ticker
	if err := p.cycle(ctx); err != nil {
		p.drain()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}

	tick := time.NewTicker(p.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return nil
		case <-tick.C:
			if err := p.cycle(ctx); err != nil {
				p.drain()
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				return err
			}
		}
	}
}

// cycle runs one fetch-resolve-compact pass. A failed fetch feeds nothing:
// the pipeline only ever sees fully resolved cycles.
func (p *Poller) cycle(ctx context.Context) error {
	start := time.Now()
	snaps, skipped, err := p.fetchWithRetry(ctx)
	if err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.PollInc()
		p.metrics.SkippedAdd(skipped)
	}
	// Snapshots are processed in feed document order, which keeps output
	// deterministic across vehicles within a cycle.
	for _, v := range snaps {
		obs, ok := p.resolver.Resolve(v)
		if !ok {
			if p.metrics != nil {
				p.metrics.NoMatchInc()
			}
			continue
		}
		if p.metrics != nil {
			p.metrics.ObservationInc()
		}
		p.emit(p.pipe.Feed(obs))
	}
	if p.metrics != nil {
		p.metrics.CycleObserve(time.Since(start))
	}
	return nil
}

func (p *Poller) fetchWithRetry(ctx context.Context) ([]track.VehicleSnapshot, int, error) {
	attempts := 0
	for {
		snaps, skipped, err := p.src.VehicleLocations(ctx)
		if err == nil {
			return snaps, skipped, nil
		}
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		stage := "vehicleLocations"
		var fe *nextbus.FetchError
		if errors.As(err, &fe) {
			stage = fe.Op
		}
		if p.metrics != nil {
			p.metrics.FetchErrInc(stage)
		}
		if !nextbus.Retryable(err) {
			return nil, 0, err
		}
		attempts++
		if p.maxRetries > 0 && attempts >= p.maxRetries {
			return nil, 0, err
		}
		log.Printf("fetch failed (attempt %d): %v; retrying in %s", attempts, err, p.retryDelay)
		if err := Sleep(ctx, p.retryDelay); err != nil {
			return nil, 0, err
		}
	}
}

func (p *Poller) drain() {
	p.emit(p.pipe.Drain())
}

func (p *Poller) emit(recs []track.Observation) {
	for _, rec := range recs {
		for _, s := range p.sinks {
			if err := s.Write(rec); err != nil {
				log.Printf("sink error for vehicle %s: %v", rec.VehicleID, err)
			}
		}
	}
}

// Sleep waits for d or until the context is cancelled, returning the
// context error in the latter case. Retry loops use it so cancellation
// never waits out a delay.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
