package simulation

import (
	"testing"
	"time"
)

func TestTickMonitorAveragesSamples(t *testing.T) {
	m := NewTickMonitor()
	m.Observe(10 * time.Millisecond)
	m.Observe(20 * time.Millisecond)

	snap := m.Snapshot()
	if snap.Samples != 2 {
		t.Fatalf("expected 2 samples, got %d", snap.Samples)
	}
	if snap.Average != 15*time.Millisecond {
		t.Fatalf("expected average of 15ms, got %v", snap.Average)
	}
	if snap.Max != 20*time.Millisecond {
		t.Fatalf("expected max of 20ms, got %v", snap.Max)
	}
}

func TestCPUSamplerReportsBusyFractionOfWallClock(t *testing.T) {
	c := NewCPUSampler()
	start := time.Unix(0, 0)

	c.Observe(5*time.Millisecond, start)
	c.Observe(5*time.Millisecond, start.Add(10*time.Millisecond))

	pct := c.Sample(start.Add(20 * time.Millisecond))
	// 10ms busy out of a 20ms window is 50%.
	if pct != 50 {
		t.Fatalf("expected 50%% busy, got %v", pct)
	}
}

func TestCPUSamplerClampsToHundredAndResetsWindow(t *testing.T) {
	c := NewCPUSampler()
	start := time.Unix(0, 0)

	c.Observe(30*time.Millisecond, start)
	pct := c.Sample(start.Add(10 * time.Millisecond))
	if pct != 100 {
		t.Fatalf("expected busy time to clamp at 100%%, got %v", pct)
	}

	// The window resets after Sample; with no further Observe calls the
	// next sample reports zero rather than reusing stale busy time.
	pct = c.Sample(start.Add(20 * time.Millisecond))
	if pct != 0 {
		t.Fatalf("expected reset window to report 0%%, got %v", pct)
	}
}

func TestCPUSamplerZeroBeforeFirstObserve(t *testing.T) {
	c := NewCPUSampler()
	if pct := c.Sample(time.Unix(0, 0)); pct != 0 {
		t.Fatalf("expected 0%% before any observation, got %v", pct)
	}
}
