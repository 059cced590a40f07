package track

import "time"

// WindowManager partitions the stream into calendar-day windows in a fixed
// reference location. It bounds ledger memory and guarantees periodic output
// even for vehicles that never leave a stop.
type WindowManager struct {
	loc    *time.Location
	active string
	seen   bool
}

func NewWindowManager(loc *time.Location) *WindowManager {
	if loc == nil {
		loc = time.UTC
	}
	return &WindowManager{loc: loc}
}

// Key returns the window key for an effective timestamp.
func (w *WindowManager) Key(t time.Time) string {
	return t.In(w.loc).Format("20060102")
}

// Advance adopts the window for t and reports whether a boundary was crossed.
// The first call establishes the initial window without a crossing.
func (w *WindowManager) Advance(t time.Time) bool {
	key := w.Key(t)
	if !w.seen {
		w.active = key
		w.seen = true
		return false
	}
	if key == w.active {
		return false
	}
	w.active = key
	return true
}
