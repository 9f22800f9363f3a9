package transport

import "sync/atomic"

// MetricsSnapshot is a read-only point-in-time copy of Metrics' counters.
type MetricsSnapshot struct {
	ActiveTransports int64
	Swaps            int64
	TimerFires       int64
}

// Metrics tracks process-wide instance counters: how many transports are
// currently running, how many swap actions have been applied across every
// instance, and how many timers have actually fired (a cancelled or
// superseded firing, suppressed via the generation counter in
// handleTimerFire, is not counted). Every Transport reports into the same
// Metrics unless Opts.Metrics supplies an isolated one, the same
// process-wide-by-default/override-for-tests shape Registry uses.
type Metrics struct {
	activeTransports atomic.Int64
	swaps            atomic.Int64
	timerFires       atomic.Int64
}

// globalMetrics is the process-wide counters every Transport reports into
// by default.
var globalMetrics = NewMetrics()

// NewMetrics constructs an empty counter set. Exported for tests that want
// isolated counters rather than the process-wide default.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// GlobalMetrics returns the process-wide instance counters.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

func (m *Metrics) incActiveTransports() { m.activeTransports.Add(1) }
func (m *Metrics) decActiveTransports() { m.activeTransports.Add(-1) }
func (m *Metrics) incSwaps()            { m.swaps.Add(1) }
func (m *Metrics) incTimerFires()       { m.timerFires.Add(1) }

// Snapshot returns a point-in-time copy of the counters. Concurrent writers
// may advance individual fields between reads within a single Snapshot
// call; callers needing an atomic multi-field view must coordinate
// externally, matching Registry.Stack's copy-out semantics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ActiveTransports: m.activeTransports.Load(),
		Swaps:            m.swaps.Load(),
		TimerFires:       m.timerFires.Load(),
	}
}
