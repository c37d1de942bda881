package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Worker runs queued render jobs.
type Worker struct {
	renderer *Renderer
	log      *slog.Logger
}

func NewWorker(renderer *Renderer, log *slog.Logger) *Worker {
	return &Worker{renderer: renderer, log: log}
}

// Process renders a job's document and records the outcome on the job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	job.SetStatus(StatusRendering, "rendering")

	req := job.Request()
	opts := w.renderer.Options()
	if req.Options != nil {
		opts = *req.Options
	}
	userProgress := opts.OnProgress
	opts.OnProgress = func(p Progress) {
		job.SetProgress(p)
		if userProgress != nil {
			userProgress(p)
		}
	}
	req.Options = &opts

	res, err := w.renderer.Render(ctx, req, nil)
	job.releaseRequest()
	if err != nil {
		var re *RenderError
		if errors.As(err, &re) {
			job.Finish(re.Partial, re.Stats)
		}
		log.Error("render job failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "rendering")
		return
	}

	job.Finish(res.Output, res.Stats)
	if res.Stats.ChunksFailed > 0 {
		job.AddError(fmt.Sprintf("%d of %d chunks failed", res.Stats.ChunksFailed, res.Stats.ChunksTotal))
		job.SetStatus(StatusPartial, "done")
		log.Warn("render job finished with failed chunks", "failed", res.Stats.ChunksFailed)
		return
	}
	job.SetStatus(StatusCompleted, "done")
	log.Info("render job complete", "chunks", res.Stats.ChunksTotal, "cache_hit", res.CacheHit)
}
