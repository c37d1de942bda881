package pipeline

import (
	"testing"
	"time"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	h1 := ContentHashHex([]byte("aaa"))
	h2 := ContentHashHex([]byte("bbb"))
	if h1 == h2 {
		t.Error("expected different hashes for different inputs")
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	// SHA-256 of empty input is well-known.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob("job-1", "page.html", Request{Document: "hello world"})
	if job.Status != StatusQueued || job.Phase != "queued" {
		t.Errorf("expected queued job, got status %q phase %q", job.Status, job.Phase)
	}
	if job.ContentHash != ContentHashHex([]byte("hello world")) {
		t.Errorf("unexpected content hash %q", job.ContentHash)
	}
	if got := job.Request().Document; got != "hello world" {
		t.Errorf("expected request document to be kept, got %q", got)
	}
	job.releaseRequest()
	if got := job.Request().Document; got != "" {
		t.Errorf("expected request to be released, got %q", got)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusRendering, "rendering"},
		{StatusPartial, "done"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("chunk 3 failed")
	job.AddError("chunk 7 failed")

	snap := job.Snapshot(false)
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "chunk 3 failed" {
		t.Errorf("expected first error %q, got %q", "chunk 3 failed", snap.Progress.Errors[0])
	}

	// Snapshots do not share the error slice with the job.
	snap.Progress.Errors[0] = "changed"
	if got := job.Snapshot(false).Progress.Errors[0]; got != "chunk 3 failed" {
		t.Errorf("snapshot mutation leaked into job: %q", got)
	}
}

func TestJob_SetProgress(t *testing.T) {
	job := &Job{ID: "progress-test", UpdatedAt: time.Now()}
	job.SetProgress(Progress{ChunkIndex: 2, TotalChunks: 8, Percent: 37.5})

	snap := job.Snapshot(false)
	if snap.Progress.ChunksProcessed != 3 {
		t.Errorf("expected 3 chunks processed, got %d", snap.Progress.ChunksProcessed)
	}
	if snap.Progress.TotalChunks != 8 {
		t.Errorf("expected 8 total chunks, got %d", snap.Progress.TotalChunks)
	}
	if snap.Progress.Percent != 37.5 {
		t.Errorf("expected 37.5%%, got %f", snap.Progress.Percent)
	}
}

func TestJob_FinishAndOutput(t *testing.T) {
	job := &Job{ID: "finish-test", UpdatedAt: time.Now()}
	job.Finish("<p>done</p>", Stats{ChunksTotal: 4, ChunksProcessed: 4})

	snap := job.Snapshot(false)
	if snap.Output != "" {
		t.Errorf("expected no output without asking, got %q", snap.Output)
	}
	if snap.Stats == nil || snap.Stats.ChunksTotal != 4 {
		t.Fatalf("expected stats with 4 chunks, got %+v", snap.Stats)
	}
	if snap.Progress.Percent != 100 {
		t.Errorf("expected 100%%, got %f", snap.Progress.Percent)
	}

	snap = job.Snapshot(true)
	if snap.Output != "<p>done</p>" {
		t.Errorf("expected output, got %q", snap.Output)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot(false)
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	if n := store.Cleanup(); n != 1 {
		t.Errorf("expected 1 job evicted, got %d", n)
	}

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	if n := store.Cleanup(); n != 0 {
		t.Errorf("expected nothing to evict, got %d", n)
	}
}
