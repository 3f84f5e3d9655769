package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/steve/internal/agent"
	"github.com/soyeahso/steve/internal/domain"
	"github.com/soyeahso/steve/internal/logging"
)

const (
	wsReadLimit    = 64 * 1024
	wsWriteTimeout = 10 * time.Second
)

// WSRequest is one chat message sent over the WebSocket.
type WSRequest struct {
	ChatRequest
	Stream bool `json:"stream"`
}

// wsConn serializes writes to a WebSocket connection.
type wsConn struct {
	id     string
	socket *websocket.Conn
	log    *logging.Logger

	mu     sync.Mutex
	closed bool
}

func (c *wsConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	c.socket.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.socket.WriteJSON(v)
}

func (c *wsConn) emit(ev domain.Event) {
	if err := c.send(ev); err != nil {
		c.log.Debug().Err(err).Msg("dropping event")
	}
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.socket.Close()
}

// handleWebSocket upgrades an authenticated request and runs one turn per
// received message, replying with the same events as the NDJSON endpoints.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	socket.SetReadLimit(wsReadLimit)

	c := &wsConn{id: uuid.NewString(), socket: socket}
	c.log = s.log.With("connId", c.id)
	defer c.close()

	c.log.Info().Str("principal", Principal(r.Context())).Msg("websocket connected")

	for {
		_, msg, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Msg("client closed connection")
			} else {
				c.log.Debug().Err(err).Msg("read error")
			}
			return
		}

		var req WSRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			c.emit(domain.ErrorEvent("An error occurred: invalid message frame"))
			continue
		}
		chat, err := s.normalizeChat(req.ChatRequest)
		if err != nil {
			c.emit(domain.ErrorEvent("An error occurred: " + err.Error()))
			continue
		}

		s.runTurn(r, agent.Turn{
			ThreadID:     chat.ThreadID,
			Message:      chat.Message,
			StreamTokens: req.Stream,
		}, c.emit)
	}
}

// checkWebSocketOrigin validates the Origin header of a handshake. Requests
// without an Origin come from non-browser clients and are allowed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}
