// Package gateway serves Steve over HTTP: NDJSON chat endpoints, a
// WebSocket chat endpoint and a health probe, behind API-key auth.
package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/steve/internal/agent"
	"github.com/soyeahso/steve/internal/config"
	"github.com/soyeahso/steve/internal/hooks"
	"github.com/soyeahso/steve/internal/logging"
)

// defaultTurnTimeout bounds a single chat turn, including every model and
// tool call it makes.
const defaultTurnTimeout = 5 * time.Minute

// Server is the Steve HTTP + WebSocket server.
type Server struct {
	cfg         config.Config
	keys        *KeyRing
	log         *logging.Logger
	graph       *agent.Graph
	hooks       *hooks.Manager
	limiter     *authRateLimiter
	upgrader    websocket.Upgrader
	turnTimeout time.Duration

	httpServer *http.Server
	startedAt  time.Time
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithGraph sets the conversation graph. Without one, chat endpoints report
// that the agent is not initialized.
func WithGraph(g *agent.Graph) ServerOption {
	return func(s *Server) {
		s.graph = g
	}
}

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithTurnTimeout overrides the per-turn deadline.
func WithTurnTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.turnTimeout = d
	}
}

// New creates a new gateway server.
func New(cfg config.Config, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		keys:        NewKeyRing(cfg.Auth),
		log:         log.Sub("gateway"),
		limiter:     newAuthRateLimiter(),
		turnTimeout: defaultTurnTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Gateway.AllowedOrigins),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.log))
	r.Use(securityHeaders)
	r.Use(corsMiddleware(s.cfg.Gateway.AllowedOrigins, s.keys.Header))
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Route("/ai", func(r chi.Router) {
		r.Get("/steve/v1/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.requireKey)
			r.Get("/", s.handleRoot)
			r.Route("/steve/v1/chat", func(r chi.Router) {
				r.Post("/no-stream", s.chatHandler(false))
				r.Post("/stream-tokens", s.chatHandler(true))
				r.Get("/ws", s.handleWebSocket)
			})
		})
	})
	return r
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Gateway)

	// No WriteTimeout: chat responses stream for as long as the turn runs,
	// which turnTimeout already bounds.
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.Gateway.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.Gateway.TLS.CertPath, s.cfg.Gateway.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
		s.log.Info().Msg("TLS enabled")
	} else if s.cfg.Gateway.Bind != "loopback" {
		s.log.Warn().Msg("TLS is not enabled, API keys will be transmitted in cleartext")
	}

	if s.keys.Len() == 0 {
		s.log.Warn().Msg("no API keys configured, every authenticated route will return 403")
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Gateway.Bind).
		Int("keys", s.keys.Len()).
		Bool("agent", s.graph != nil).
		Msg("gateway server ready")

	s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{
		"addr": ln.Addr().String(),
	})

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		s.hooks.Emit(context.Background(), hooks.EventGatewayStop, map[string]any{
			"uptime_s": int(time.Since(s.startedAt).Seconds()),
		})
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.limiter.close()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

func contextWithTurnTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
