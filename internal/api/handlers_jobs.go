package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dgallion1/docrender/internal/pipeline"
)

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	body, filename, ok := s.readRenderBody(w, r)
	if !ok {
		return
	}

	job := pipeline.NewJob(uuid.NewString(), filename, s.request(body, pipeline.ModeFull))
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	snap := job.Snapshot(false)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   snap.ID,
		"status":   snap.Status,
		"filename": snap.Filename,
		"poll_url": fmt.Sprintf("/api/jobs/%s", snap.ID),
	})
}

// handleJobStatus reports job progress; ?output=true adds the rendered
// output once the job has finished.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	withOutput, _ := strconv.ParseBool(r.URL.Query().Get("output"))
	writeJSON(w, http.StatusOK, job.Snapshot(withOutput))
}
