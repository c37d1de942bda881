package pipeline

import (
	"slices"
	"sync"
	"time"

	"github.com/dgallion1/docrender/internal/chunker"
	"github.com/dgallion1/docrender/internal/scheduler"
)

// Stats describes one render.
type Stats struct {
	RenderID        string             `json:"render_id"`
	Mode            Mode               `json:"mode"`
	Decision        scheduler.Decision `json:"decision"`
	Strategy        chunker.Strategy   `json:"strategy"`
	ChunksTotal     int                `json:"chunks_total"`
	ChunksProcessed int                `json:"chunks_processed"`
	ChunksFailed    int                `json:"chunks_failed"`
	Retries         int                `json:"retries"`
	CacheHits       int                `json:"cache_hits"`
	CacheMisses     int                `json:"cache_misses"`
	PeakHeapBytes   uint64             `json:"peak_heap_bytes"`
	StagedOnDisk    bool               `json:"staged_on_disk"`
	FellBack        bool               `json:"fell_back_to_memory"`
	ElapsedMs       int64              `json:"elapsed_ms"`
	Timings         TimingSummary      `json:"timings"`

	// ChunkTimings holds the wall time spent on each rendered chunk, in
	// processing order.
	ChunkTimings []time.Duration `json:"-"`
}

// TimingSummary aggregates a set of durations.
type TimingSummary struct {
	Count int     `json:"count"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// TimingSummary summarizes ChunkTimings.
func (s Stats) TimingSummary() TimingSummary {
	return summarize(s.ChunkTimings)
}

func summarize(ds []time.Duration) TimingSummary {
	if len(ds) == 0 {
		return TimingSummary{}
	}
	values := make([]int64, len(ds))
	var sum int64
	for i, d := range ds {
		values[i] = int64(d)
		sum += int64(d)
	}
	slices.Sort(values)
	return TimingSummary{
		Count: len(values),
		MinMs: ms(float64(values[0])),
		MaxMs: ms(float64(values[len(values)-1])),
		AvgMs: ms(float64(sum) / float64(len(values))),
		P50Ms: ms(percentile(values, 50)),
		P95Ms: ms(percentile(values, 95)),
		P99Ms: ms(percentile(values, 99)),
	}
}

func ms(ns float64) float64 { return ns / float64(time.Millisecond) }

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}

// recorder guards Stats while chunks render concurrently.
type recorder struct {
	mu sync.Mutex
	s  Stats
}

func (r *recorder) update(fn func(*Stats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.s)
}

func (r *recorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.s
	s.ChunkTimings = slices.Clone(r.s.ChunkTimings)
	s.Timings = summarize(s.ChunkTimings)
	return s
}

type sample struct {
	timestamp time.Time
	duration  time.Duration
}

// LatencyWindow tracks recent latencies within a rolling window.
type LatencyWindow struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewLatencyWindow(maxAge time.Duration) *LatencyWindow {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &LatencyWindow{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

func (w *LatencyWindow) Record(d time.Duration) {
	if d < 0 {
		d = 0
	}
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	w.samples = append(w.samples, sample{timestamp: now, duration: d})
}

// Snapshot summarizes the samples still inside the window.
func (w *LatencyWindow) Snapshot() TimingSummary {
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	ds := make([]time.Duration, len(w.samples))
	for i, sm := range w.samples {
		ds[i] = sm.duration
	}
	return summarize(ds)
}

func (w *LatencyWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.maxAge)
	writeIdx := 0
	for _, sm := range w.samples {
		if !sm.timestamp.Before(cutoff) {
			w.samples[writeIdx] = sm
			writeIdx++
		}
	}
	w.samples = w.samples[:writeIdx]
}
