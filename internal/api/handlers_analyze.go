package api

import (
	"net/http"
	"strconv"

	"github.com/dgallion1/docrender/internal/analyzer"
	"github.com/dgallion1/docrender/internal/chunker"
)

// chunkSummary describes a planned chunk without its markup unless asked.
type chunkSummary struct {
	Index    int              `json:"index"`
	Size     int              `json:"size"`
	Offset   int              `json:"offset"`
	IsFirst  bool             `json:"is_first"`
	IsLast   bool             `json:"is_last"`
	Strategy chunker.Strategy `json:"strategy"`
	Priority analyzer.Tier    `json:"priority"`
	Markup   string           `json:"markup,omitempty"`
}

// handleAnalyze returns the priority map for a document.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	body, _, ok := s.readRenderBody(w, r)
	if !ok {
		return
	}
	opts := body.Options.apply(s.renderer.Options())
	pm, _ := s.renderer.Plan(body.Document, &opts)
	if pm.Rules == nil {
		pm.Rules = []analyzer.Rule{}
	}
	writeJSON(w, http.StatusOK, pm)
}

// handleSplit returns the chunk plan for a document; ?markup=true includes
// each chunk's standalone markup.
func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	body, _, ok := s.readRenderBody(w, r)
	if !ok {
		return
	}
	withMarkup, _ := strconv.ParseBool(r.URL.Query().Get("markup"))
	opts := body.Options.apply(s.renderer.Options())
	_, chunks := s.renderer.Plan(body.Document, &opts)

	out := make([]chunkSummary, len(chunks))
	for i, c := range chunks {
		out[i] = chunkSummary{
			Index:    c.Index,
			Size:     c.Size,
			Offset:   c.Offset,
			IsFirst:  c.IsFirst,
			IsLast:   c.IsLast,
			Strategy: c.Strategy,
			Priority: c.Priority,
		}
		if withMarkup {
			out[i].Markup = c.Markup
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":  len(chunks),
		"chunks": out,
	})
}
