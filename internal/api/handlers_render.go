package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/dgallion1/docrender/internal/pipeline"
)

// streamEvent is one line of a streamed render: a chunk, then a final
// done or error event.
type streamEvent struct {
	Type string `json:"type"`
	*pipeline.Delivery
	RenderID string          `json:"render_id,omitempty"`
	Stats    *pipeline.Stats `json:"stats,omitempty"`
	Error    string          `json:"error,omitempty"`
	Partial  bool            `json:"partial,omitempty"`
}

const (
	eventChunk = "chunk"
	eventDone  = "done"
	eventError = "error"
)

func finalEvent(res *pipeline.Result, err error) streamEvent {
	if err != nil {
		ev := streamEvent{Type: eventError, Error: err.Error()}
		var re *pipeline.RenderError
		if errors.As(err, &re) {
			st := re.Stats
			ev.Stats = &st
			ev.RenderID = st.RenderID
			ev.Partial = st.ChunksProcessed > 0
		}
		return ev
	}
	st := res.Stats
	return streamEvent{Type: eventDone, RenderID: res.RenderID, Stats: &st}
}

// handleRender renders a document in the configured mode, or the mode the
// request asks for: the whole output as JSON, or an NDJSON chunk stream.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	body, _, ok := s.readRenderBody(w, r)
	if !ok {
		return
	}
	req := s.request(body, "")
	if req.Options.Mode == pipeline.ModeStreaming {
		s.streamNDJSON(w, r, req)
		return
	}
	req.Options.Mode = pipeline.ModeFull
	res, err := s.renderer.Render(r.Context(), req, nil)
	if err != nil {
		s.renderFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRenderStream writes one NDJSON event per chunk as it is rendered.
func (s *Server) handleRenderStream(w http.ResponseWriter, r *http.Request) {
	body, _, ok := s.readRenderBody(w, r)
	if !ok {
		return
	}
	s.streamNDJSON(w, r, s.request(body, pipeline.ModeStreaming))
}

func (s *Server) streamNDJSON(w http.ResponseWriter, r *http.Request, req pipeline.Request) {
	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	sink := func(d pipeline.Delivery) error {
		if err := enc.Encode(streamEvent{Type: eventChunk, Delivery: &d}); err != nil {
			return err
		}
		return rc.Flush()
	}
	res, err := s.renderer.Render(r.Context(), req, sink)
	if err := enc.Encode(finalEvent(res, err)); err != nil {
		s.log.Debug("stream client went away", "error", err)
		return
	}
	rc.Flush()
}

// handleRenderSocket renders over a websocket. The client sends one render
// request as JSON and receives chunk events followed by a done or error
// event, after which the server closes the connection.
func (s *Server) handleRenderSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.cfg.MaxUploadBytes)

	ctx := r.Context()
	var body renderBody
	if err := wsjson.Read(ctx, conn, &body); err != nil {
		s.log.Warn("invalid websocket render request", "error", err)
		conn.Close(websocket.StatusUnsupportedData, "invalid render request")
		return
	}
	if body.Document == "" {
		conn.Close(websocket.StatusPolicyViolation, "document is required")
		return
	}

	sink := func(d pipeline.Delivery) error {
		return wsjson.Write(ctx, conn, streamEvent{Type: eventChunk, Delivery: &d})
	}
	res, err := s.renderer.Render(ctx, s.request(body, pipeline.ModeStreaming), sink)
	if err := wsjson.Write(ctx, conn, finalEvent(res, err)); err != nil {
		if websocket.CloseStatus(err) == -1 {
			s.log.Debug("websocket client went away", "error", err)
		}
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
