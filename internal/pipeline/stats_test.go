package pipeline

import (
	"testing"
	"time"
)

func TestLatencyWindowSnapshotPercentiles(t *testing.T) {
	w := NewLatencyWindow(time.Hour)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		w.Record(time.Duration(ms) * time.Millisecond)
	}

	snap := w.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"min", snap.MinMs, 100},
		{"max", snap.MaxMs, 500},
		{"avg", snap.AvgMs, 300},
		{"p50", snap.P50Ms, 300},
		{"p95", snap.P95Ms, 480},
		{"p99", snap.P99Ms, 496},
	}
	for _, c := range checks {
		if diff := c.got - c.want; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("expected %s=%v, got %v", c.name, c.want, c.got)
		}
	}
}

func TestLatencyWindowPrunesExpiredSamples(t *testing.T) {
	w := NewLatencyWindow(10 * time.Millisecond)
	w.Record(100 * time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	snap := w.Snapshot()
	if snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	w.Record(200 * time.Millisecond)
	snap = w.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1 for fresh sample, got %d", snap.Count)
	}
	if snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected min=max=200, got min=%v max=%v", snap.MinMs, snap.MaxMs)
	}
}

func TestLatencyWindowRecordClampsNegativeDuration(t *testing.T) {
	w := NewLatencyWindow(time.Hour)
	w.Record(-10)
	snap := w.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1, got %d", snap.Count)
	}
	if snap.MinMs != 0 || snap.MaxMs != 0 {
		t.Fatalf("expected clamped duration=0, got min=%v max=%v", snap.MinMs, snap.MaxMs)
	}
}

func TestStatsTimingSummary(t *testing.T) {
	s := Stats{ChunkTimings: []time.Duration{3 * time.Millisecond, time.Millisecond, 2 * time.Millisecond}}
	sum := s.TimingSummary()
	if sum.Count != 3 || sum.MinMs != 1 || sum.MaxMs != 3 || sum.P50Ms != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if empty := (Stats{}).TimingSummary(); empty.Count != 0 {
		t.Fatalf("expected empty summary, got %+v", empty)
	}
}

func TestRecorderSnapshotIsIndependent(t *testing.T) {
	var r recorder
	r.update(func(s *Stats) { s.ChunkTimings = append(s.ChunkTimings, time.Millisecond) })
	snap := r.snapshot()
	r.update(func(s *Stats) { s.ChunkTimings[0] = time.Hour })
	if snap.ChunkTimings[0] != time.Millisecond {
		t.Fatalf("snapshot shares timings with recorder")
	}
	if snap.Timings.Count != 1 {
		t.Fatalf("expected summarized timings, got %+v", snap.Timings)
	}
}
