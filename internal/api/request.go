package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docrender/internal/pipeline"
	"github.com/dgallion1/docrender/internal/source"
)

// renderBody is the JSON form of a render request. Uploads carry the same
// data and options as JSON-encoded form fields.
type renderBody struct {
	Document string         `json:"document"`
	Data     map[string]any `json:"data,omitempty"`
	Options  *renderOptions `json:"options,omitempty"`
}

// renderOptions are per-request overrides of the server's render options.
type renderOptions struct {
	TargetChunkBytes   *int     `json:"target_chunk_bytes,omitempty"`
	MaxRetries         *int     `json:"max_retries,omitempty"`
	ChunkTimeoutMs     *int64   `json:"chunk_timeout_ms,omitempty"`
	RenderTimeoutMs    *int64   `json:"render_timeout_ms,omitempty"`
	Cache              *bool    `json:"cache,omitempty"`
	Concurrency        *int     `json:"concurrency,omitempty"`
	IndependentChunks  *bool    `json:"independent_chunks,omitempty"`
	AnnotateBoundaries *bool    `json:"annotate_boundaries,omitempty"`
	CriticalSelectors  []string `json:"critical_selectors,omitempty"`
	// Mode picks how POST /api/render answers: one JSON result (full) or
	// an NDJSON chunk stream (streaming).
	Mode *pipeline.Mode `json:"mode,omitempty"`
}

func (o *renderOptions) apply(opts pipeline.Options) pipeline.Options {
	if o == nil {
		return opts
	}
	if o.TargetChunkBytes != nil {
		opts.TargetChunkBytes = *o.TargetChunkBytes
		// Keep small documents rendered whole relative to the new target.
		opts.SmallDocumentThreshold = *o.TargetChunkBytes
	}
	if o.MaxRetries != nil {
		opts.MaxRetries = *o.MaxRetries
	}
	if o.ChunkTimeoutMs != nil {
		opts.ChunkTimeout = time.Duration(*o.ChunkTimeoutMs) * time.Millisecond
	}
	if o.RenderTimeoutMs != nil {
		opts.RenderTimeout = time.Duration(*o.RenderTimeoutMs) * time.Millisecond
	}
	if o.Cache != nil {
		opts.CacheEnabled = *o.Cache
	}
	if o.Concurrency != nil {
		opts.Concurrency = *o.Concurrency
	}
	if o.IndependentChunks != nil {
		opts.IndependentChunks = *o.IndependentChunks
	}
	if o.AnnotateBoundaries != nil {
		opts.AnnotateBoundaries = *o.AnnotateBoundaries
	}
	if o.CriticalSelectors != nil {
		opts.CriticalSelectors = o.CriticalSelectors
	}
	if o.Mode != nil {
		opts.Mode = *o.Mode
	}
	return opts
}

// request turns a decoded body into a pipeline request with the server's
// defaults under any overrides. A non-empty mode is forced by the endpoint.
func (s *Server) request(body renderBody, mode pipeline.Mode) pipeline.Request {
	opts := body.Options.apply(s.renderer.Options())
	if mode != "" {
		opts.Mode = mode
	}
	return pipeline.Request{Document: body.Document, Data: body.Data, Options: &opts}
}

// readRenderBody decodes a JSON body or a multipart upload. It writes the
// error response itself and reports false on failure.
func (s *Server) readRenderBody(w http.ResponseWriter, r *http.Request) (renderBody, string, bool) {
	// Limit total request size; extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return s.readUpload(w, r)
	}

	var body renderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return body, "", false
	}
	if body.Document == "" {
		jsonError(w, "document is required", http.StatusBadRequest)
		return body, "", false
	}
	return body, "document.html", true
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (renderBody, string, bool) {
	var body renderBody
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return body, "", false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return body, "", false
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !source.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return body, "", false
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return body, "", false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return body, "", false
	}

	if v := r.FormValue("data"); v != "" {
		if err := json.Unmarshal([]byte(v), &body.Data); err != nil {
			jsonError(w, "invalid data field: "+err.Error(), http.StatusBadRequest)
			return body, "", false
		}
	}
	if v := r.FormValue("options"); v != "" {
		body.Options = &renderOptions{}
		if err := json.Unmarshal([]byte(v), body.Options); err != nil {
			jsonError(w, "invalid options field: "+err.Error(), http.StatusBadRequest)
			return body, "", false
		}
	}

	doc, err := source.Import(bytes.NewReader(data), filename)
	if err != nil {
		jsonError(w, "failed to import "+filename+": "+err.Error(), http.StatusUnprocessableEntity)
		return body, "", false
	}
	body.Document = doc
	return body, filename, true
}

// renderFailed maps a render error onto a status code and reports any
// partial output.
func (s *Server) renderFailed(w http.ResponseWriter, err error) {
	writeJSON(w, renderStatus(err), renderErrorBody(err))
}

func renderStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrRenderTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, pipeline.ErrDiskStaging):
		return http.StatusInsufficientStorage
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func renderErrorBody(err error) map[string]any {
	body := map[string]any{"error": err.Error()}
	var re *pipeline.RenderError
	if errors.As(err, &re) {
		body["partial_output"] = re.Partial
		body["stats"] = re.Stats
	}
	return body
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
