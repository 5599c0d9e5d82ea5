package simulation

import (
	"sync"
	"time"
)

// TickMetricsSnapshot summarises observed server tick durations.
type TickMetricsSnapshot struct {
	Samples int
	Average time.Duration
	Max     time.Duration
	Last    time.Duration
}

// AverageFPS derives the frames-per-second equivalent of the sampled tick duration.
func (s TickMetricsSnapshot) AverageFPS() float64 {
	if s.Average <= 0 {
		return 0
	}
	return float64(time.Second) / float64(s.Average)
}

// TickMonitor accumulates timing statistics for the simulation loop.
type TickMonitor struct {
	mu      sync.Mutex
	samples int
	total   time.Duration
	max     time.Duration
	last    time.Duration
}

// NewTickMonitor constructs an empty monitor ready to collect samples.
func NewTickMonitor() *TickMonitor {
	return &TickMonitor{}
}

// Observe records the duration of a completed simulation tick.
func (m *TickMonitor) Observe(duration time.Duration) {
	if m == nil || duration <= 0 {
		return
	}
	m.mu.Lock()
	// //1.- Accumulate the sample count and aggregate duration for average calculations.
	m.samples++
	m.total += duration
	// //2.- Track the worst-case tick so operators can spot spikes quickly.
	if duration > m.max {
		m.max = duration
	}
	// //3.- Remember the latest tick for real-time dashboards.
	m.last = duration
	m.mu.Unlock()
}

// Snapshot returns a copy of the aggregated tick statistics.
func (m *TickMonitor) Snapshot() TickMetricsSnapshot {
	if m == nil {
		return TickMetricsSnapshot{}
	}
	m.mu.Lock()
	samples := m.samples
	total := m.total
	max := m.max
	last := m.last
	m.mu.Unlock()

	average := time.Duration(0)
	if samples > 0 {
		average = total / time.Duration(samples)
	}
	return TickMetricsSnapshot{Samples: samples, Average: average, Max: max, Last: last}
}

// Reset clears the accumulated statistics so a fresh match can begin cleanly.
func (m *TickMonitor) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	// //1.- Zero out all internal counters so subsequent snapshots start from scratch.
	m.samples = 0
	m.total = 0
	m.max = 0
	m.last = 0
	m.mu.Unlock()
}

// CPUSampler is a lightweight wall-clock-vs-busy estimator: callers report
// how long each tick's work took, and the sampler periodically reports that
// busy time as a percentage of the wall-clock elapsed since the last sample,
// clamped to [0, 100]. It is a coarse single-core approximation, not an
// OS-level CPU reading.
type CPUSampler struct {
	mu          sync.Mutex
	busy        time.Duration
	windowStart time.Time
}

// NewCPUSampler constructs an estimator with no open window yet; the first
// Sample call after at least one Observe establishes the baseline.
func NewCPUSampler() *CPUSampler {
	return &CPUSampler{}
}

// Observe adds one tick's measured busy duration to the open window. now
// should be the caller's own clock so the estimator stays deterministic
// under test.
func (c *CPUSampler) Observe(busy time.Duration, now time.Time) {
	if c == nil || busy <= 0 {
		return
	}
	c.mu.Lock()
	if c.windowStart.IsZero() {
		c.windowStart = now
	}
	c.busy += busy
	c.mu.Unlock()
}

// Sample reports busy-time as a percentage of wall-clock time elapsed since
// the previous Sample (or the first Observe, for the initial window), then
// resets the window. now should be the caller's own clock so tests stay
// deterministic.
func (c *CPUSampler) Sample(now time.Time) float64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.windowStart.IsZero() {
		return 0
	}
	wall := now.Sub(c.windowStart)
	c.windowStart = now
	busy := c.busy
	c.busy = 0
	if wall <= 0 {
		return 0
	}
	pct := float64(busy) / float64(wall) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}
