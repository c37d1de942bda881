package api

import (
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"renders":     s.renderer.Totals(r.Context()),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	tc := s.renderer.Cache()
	if tc == nil {
		jsonError(w, "cache is disabled", http.StatusServiceUnavailable)
		return
	}
	n := tc.Clear(r.Context())
	s.log.Info("render cache cleared", "entries", n)
	writeJSON(w, http.StatusOK, map[string]any{"cleared": n})
}
