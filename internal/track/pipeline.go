package track

// Emission causes, used as metric labels by the callers.
const (
	CauseStopChange = "stop_change"
	CauseWindow     = "window"
	CauseDrain      = "drain"
)

// Metrics is implemented by callers that want emission counts; a nil Metrics
// is valid and ignored.
type Metrics interface {
	EmittedInc(cause string, n int)
	SetActiveEpisodes(n int)
}

// Pipeline composes the compactor with window-boundary flushing so the live
// poller and the re-compaction binary share one entry point.
type Pipeline struct {
	compactor *Compactor
	windows   *WindowManager
	metrics   Metrics
}

func NewPipeline(c *Compactor, w *WindowManager, m Metrics) *Pipeline {
	return &Pipeline{compactor: c, windows: w, metrics: m}
}

// Feed processes one observation in arrival order and returns the finalized
// records it forced out: a full window flush when the observation crosses a
// window boundary, then at most one stop-change record.
func (p *Pipeline) Feed(o Observation) []Observation {
	var out []Observation
	if p.windows.Advance(o.EffectiveTime) {
		flushed := p.compactor.Flush()
		out = append(out, flushed...)
		if p.metrics != nil && len(flushed) > 0 {
			p.metrics.EmittedInc(CauseWindow, len(flushed))
		}
	}
	if rec, ok := p.compactor.Observe(o); ok {
		out = append(out, rec)
		if p.metrics != nil {
			p.metrics.EmittedInc(CauseStopChange, 1)
		}
	}
	if p.metrics != nil {
		p.metrics.SetActiveEpisodes(p.compactor.Pending())
	}
	return out
}

// Drain emits everything still pending, ordered by effective timestamp. It is
// called at stream end and on external interruption; draining twice is safe.
func (p *Pipeline) Drain() []Observation {
	out := p.compactor.Flush()
	if p.metrics != nil {
		if len(out) > 0 {
			p.metrics.EmittedInc(CauseDrain, len(out))
		}
		p.metrics.SetActiveEpisodes(0)
	}
	return out
}
