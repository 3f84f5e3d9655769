package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/soyeahso/steve/internal/agent"
	"github.com/soyeahso/steve/internal/domain"
	"github.com/soyeahso/steve/internal/version"
)

const maxBodyBytes = 1 << 20

// ChatRequest is the body of the chat endpoints.
type ChatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status           string `json:"status"`
	AgentInitialized bool   `json:"agent_initialized"`
	Version          string `json:"version,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail writes an error body in the {"detail": ...} shape.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"Welcome": "You are now inside Rhyliieee's AI API."})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:           "ok",
		AgentInitialized: s.graph != nil,
		Version:          version.Version,
	})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, http.StatusNotFound, "Not Found")
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

// decodeChat reads and checks a chat request body.
func (s *Server) decodeChat(r *http.Request) (ChatRequest, error) {
	var req ChatRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return req, errors.New("request body must be a JSON object with a message")
	}
	return s.normalizeChat(req)
}

func (s *Server) normalizeChat(req ChatRequest) (ChatRequest, error) {
	if strings.TrimSpace(req.Message) == "" {
		return req, errors.New("message must not be empty")
	}
	if req.ThreadID == "" {
		req.ThreadID = s.cfg.Gateway.DefaultThread
	}
	if req.ThreadID == "" {
		req.ThreadID = "thread-1"
	}
	return req, nil
}

// chatHandler serves one of the NDJSON chat endpoints.
func (s *Server) chatHandler(streamTokens bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := s.decodeChat(r)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		s.log.Info().
			Str("thread", req.ThreadID).
			Str("principal", Principal(r.Context())).
			Bool("streamTokens", streamTokens).
			Msg("chat request")

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)

		out := newNDJSON(w)
		s.runTurn(r, agent.Turn{
			ThreadID:     req.ThreadID,
			Message:      req.Message,
			StreamTokens: streamTokens,
		}, out.write)
	}
}

// runTurn executes a turn and reports failures as a trailing error event.
func (s *Server) runTurn(r *http.Request, turn agent.Turn, emit func(domain.Event)) {
	if s.graph == nil {
		s.log.Warn().Msg("agent graph not initialized")
		emit(domain.ErrorEvent(agent.NotInitializedMessage))
		return
	}

	ctx, cancel := contextWithTurnTimeout(r.Context(), s.turnTimeout)
	defer cancel()

	if _, err := s.graph.Run(ctx, turn, emit); err != nil {
		emit(domain.ErrorEvent("An error occurred: " + err.Error()))
	}
}

// ndjson writes one JSON document per line and flushes after each.
type ndjson struct {
	mu  sync.Mutex
	rc  *http.ResponseController
	enc *json.Encoder
}

func newNDJSON(w http.ResponseWriter) *ndjson {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &ndjson{rc: http.NewResponseController(w), enc: enc}
}

func (n *ndjson) write(ev domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.enc.Encode(ev); err != nil {
		return
	}
	n.rc.Flush()
}
