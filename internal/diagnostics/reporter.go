// Package diagnostics drives periodic pool status reports independently of
// any particular frame loop.
package diagnostics

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is used when a Reporter is built with a non-positive interval.
const DefaultInterval = time.Second

// Flusher emits pending diagnostics and reports whether anything was emitted.
type Flusher interface {
	FlushDiagnostics() bool
}

// Reporter schedules Flusher calls either from a caller's update loop (Tick)
// or from its own timer (Run).
type Reporter struct {
	flusher  Flusher
	interval time.Duration
	gate     *rate.Sometimes
}

// NewReporter builds a reporter flushing at most once per interval from Tick.
func NewReporter(flusher Flusher, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reporter{
		flusher:  flusher,
		interval: interval,
		gate:     &rate.Sometimes{Interval: interval},
	}
}

// Interval returns the reporting cadence.
func (r *Reporter) Interval() time.Duration { return r.interval }

// Tick is meant to be called from a per-frame update hook. The first call
// flushes; later calls flush only once the interval has elapsed.
func (r *Reporter) Tick() bool {
	flushed := false
	r.gate.Do(func() {
		flushed = r.flusher.FlushDiagnostics()
	})
	return flushed
}

// Run flushes on every interval until ctx is done, then flushes once more.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.flusher.FlushDiagnostics()
			return
		case <-ticker.C:
			r.flusher.FlushDiagnostics()
		}
	}
}
