package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docrender/internal/config"
)

func TestWorker_CompletedJob(t *testing.T) {
	raw := buildDocument(uniform(10, 500))
	w := NewWorker(newRenderer(&echo{}, nil, testOptions()), quietLog())
	job := NewJob("job-ok", "page.html", Request{Document: raw})

	w.Process(context.Background(), job)

	snap := job.Snapshot(true)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, "done", snap.Phase)
	require.NotNil(t, snap.Stats)
	assert.Equal(t, snap.Stats.ChunksTotal, snap.Progress.TotalChunks)
	assert.Equal(t, snap.Stats.ChunksTotal, snap.Progress.ChunksProcessed)
	assert.Equal(t, 100.0, snap.Progress.Percent)
	assert.NotEmpty(t, snap.Output)
	assert.Empty(t, job.Request().Document, "document is released after rendering")
}

func TestWorker_PartialJob(t *testing.T) {
	raw := buildDocument(uniform(10, 500))
	c := CompilerFunc(func(_ context.Context, fragment string, data map[string]any) (string, error) {
		if data[KeyChunkIndex].(int) == 1 {
			return "", errors.New("boom")
		}
		return fragment, nil
	})
	opts := testOptions()
	opts.MaxRetries = 1
	w := NewWorker(newRenderer(c, nil, opts), quietLog())
	job := NewJob("job-partial", "page.html", Request{Document: raw})

	w.Process(context.Background(), job)

	snap := job.Snapshot(true)
	assert.Equal(t, StatusPartial, snap.Status)
	require.Len(t, snap.Progress.Errors, 1)
	assert.Contains(t, snap.Progress.Errors[0], "1 of")
	assert.Contains(t, snap.Output, PlaceholderPrefix)
}

func TestWorker_FailedJobKeepsPartialOutput(t *testing.T) {
	raw := buildDocument(uniform(10, 500))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var reported []Progress
	opts := testOptions()
	opts.OnProgress = func(p Progress) {
		reported = append(reported, p)
		cancel()
	}
	w := NewWorker(newRenderer(&echo{}, nil, testOptions()), quietLog())
	job := NewJob("job-failed", "page.html", Request{Document: raw, Options: &opts})

	w.Process(ctx, job)

	snap := job.Snapshot(true)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Len(t, reported, 1, "caller progress hook still runs")
	assert.Equal(t, 1, snap.Progress.ChunksProcessed)
	assert.NotEmpty(t, snap.Output)
	require.NotEmpty(t, snap.Progress.Errors)
	assert.Contains(t, snap.Progress.Errors[0], "render canceled")
}

func testConfig() config.Config {
	return config.Config{WorkerCount: 2, MaxQueueSize: 2, JobTTL: time.Hour}
}

func TestOrchestrator_RunsJobs(t *testing.T) {
	o := NewOrchestrator(testConfig(), newRenderer(&echo{}, nil, testOptions()), quietLog())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("job-1", "page.html", Request{Document: "<p>hi</p>"})
	require.NoError(t, o.Submit(job))
	assert.Same(t, job, o.GetJob("job-1"))
	assert.Nil(t, o.GetJob("missing"))

	assert.Eventually(t, func() bool {
		return job.Snapshot(false).Status == StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "<p>hi</p>", job.Snapshot(true).Output)
}

func TestOrchestrator_QueueFull(t *testing.T) {
	// Workers are never started, so the queue only fills.
	o := NewOrchestrator(testConfig(), newRenderer(&echo{}, nil, testOptions()), quietLog())

	for i := range 2 {
		require.NoError(t, o.Submit(NewJob(string(rune('a'+i)), "", Request{Document: "x"})))
	}
	assert.Equal(t, 2, o.QueueDepth())

	overflow := NewJob("overflow", "", Request{Document: "x"})
	err := o.Submit(overflow)
	assert.ErrorContains(t, err, "queue is full")
	assert.Equal(t, StatusFailed, overflow.Snapshot(false).Status)
}
