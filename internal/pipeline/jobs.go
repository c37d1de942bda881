package pipeline

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"sync"
	"time"
)

// JobStatus represents the state of an async render job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRendering JobStatus = "rendering"
	StatusCompleted JobStatus = "completed"
	StatusPartial   JobStatus = "partial"
	StatusFailed    JobStatus = "failed"
)

// Job tracks one queued render.
type Job struct {
	mu sync.Mutex

	ID       string    `json:"job_id"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Progress JobProgress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	request Request
	output  string
	stats   *Stats
	errors  []string
}

// JobProgress tracks chunk progress.
type JobProgress struct {
	TotalChunks     int      `json:"total_chunks"`
	ChunksProcessed int      `json:"chunks_processed"`
	Percent         float64  `json:"percent"`
	Errors          []string `json:"errors"`
}

// NewJob returns a queued job for req.
func NewJob(id, filename string, req Request) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		Status:      StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		ContentHash: ContentHashHex([]byte(req.Document)),
		CreatedAt:   now,
		UpdatedAt:   now,
		request:     req,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs and returns how many it removed.
func (s *JobStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	n := 0
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetProgress records the latest chunk progress.
func (j *Job) SetProgress(p Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = p.TotalChunks
	j.Progress.ChunksProcessed = p.ChunkIndex + 1
	j.Progress.Percent = p.Percent
	j.UpdatedAt = time.Now()
}

// Finish stores the render output and stats.
func (j *Job) Finish(output string, stats Stats) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.output = output
	j.stats = &stats
	j.Progress.TotalChunks = stats.ChunksTotal
	j.Progress.ChunksProcessed = stats.ChunksProcessed
	if stats.ChunksTotal > 0 {
		j.Progress.Percent = float64(stats.ChunksProcessed) * 100 / float64(stats.ChunksTotal)
	}
	j.UpdatedAt = time.Now()
}

// Request returns the render request the job was created with.
func (j *Job) Request() Request {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.request
}

// releaseRequest drops the document once it has been rendered.
func (j *Job) releaseRequest() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.request = Request{}
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string      `json:"job_id"`
	Status      JobStatus   `json:"status"`
	Phase       string      `json:"phase"`
	Filename    string      `json:"filename"`
	ContentHash string      `json:"content_hash,omitempty"`
	Progress    JobProgress `json:"progress"`
	Stats       *Stats      `json:"stats,omitempty"`
	Output      string      `json:"output,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state. The output is
// included only when withOutput is set.
func (j *Job) Snapshot(withOutput bool) JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	snap := JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		ContentHash: j.ContentHash,
		Progress: JobProgress{
			TotalChunks:     j.Progress.TotalChunks,
			ChunksProcessed: j.Progress.ChunksProcessed,
			Percent:         j.Progress.Percent,
			Errors:          slices.Clone(errs),
		},
	}
	if j.stats != nil {
		st := *j.stats
		snap.Stats = &st
	}
	if withOutput {
		snap.Output = j.output
	}
	return snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
