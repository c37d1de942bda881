package scheduler

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSampleInterval is how often a Sampler polls the heap.
const DefaultSampleInterval = 100 * time.Millisecond

// HeapUsage returns the bytes of allocated heap objects.
func HeapUsage() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

// Sampler polls heap usage on its own ticker and remembers the peak.
type Sampler struct {
	interval time.Duration
	read     func() uint64
	peak     atomic.Uint64

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewSampler returns a sampler reading HeapUsage every interval.
func NewSampler(interval time.Duration) *Sampler {
	return newSampler(interval, HeapUsage)
}

func newSampler(interval time.Duration, read func() uint64) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{interval: interval, read: read}
}

// Start takes an immediate sample and begins polling. Starting a running
// sampler is a no-op.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.observe()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
}

func (s *Sampler) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.observe()
		}
	}
}

// Stop halts polling, takes a final sample and returns the peak. It waits
// for the polling goroutine to exit.
func (s *Sampler) Stop() uint64 {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
	s.observe()
	return s.Peak()
}

// Peak returns the highest heap reading so far.
func (s *Sampler) Peak() uint64 { return s.peak.Load() }

func (s *Sampler) observe() {
	v := s.read()
	for {
		cur := s.peak.Load()
		if v <= cur || s.peak.CompareAndSwap(cur, v) {
			return
		}
	}
}
