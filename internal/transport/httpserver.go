package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/agentfleet/conductor/internal/engine"
	"github.com/agentfleet/conductor/internal/event"
	"github.com/agentfleet/conductor/internal/logging"
	"github.com/agentfleet/conductor/pkg/types"
)

// HTTPConfig holds the HTTP transport's own settings, mirroring the
// teacher's server.Config split from the engine's own types.Config.
type HTTPConfig struct {
	Addr         string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultHTTPConfig(addr string) HTTPConfig {
	return HTTPConfig{
		Addr:        addr,
		EnableCORS:  true,
		ReadTimeout: 30 * time.Second,
		// No write timeout: /api/events holds its connection open
		// indefinitely, same reasoning as the teacher's SSE endpoint.
		WriteTimeout: 0,
	}
}

// HTTPServer exposes conductor's command/result protocol and event
// stream over HTTP: POST /api/command for request/response dispatch,
// GET /api/events for a live WebSocket feed, plus /health and
// /api/shutdown for operational use.
type HTTPServer struct {
	config   HTTPConfig
	router   *chi.Mux
	engine   *engine.Engine
	httpSrv  *http.Server
	addr     string
	upgrader websocket.Upgrader

	shutdownRequested chan struct{}
}

func NewHTTPServer(cfg HTTPConfig, e *engine.Engine) *HTTPServer {
	s := &HTTPServer{
		config: cfg,
		router: chi.NewRouter(),
		engine: e,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Control-plane clients are expected to be operator tooling
			// on a trusted network, not arbitrary browser origins, so
			// the same permissive-by-default stance as the CORS policy
			// below applies here too.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		shutdownRequested: make(chan struct{}, 1),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *HTTPServer) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

func (s *HTTPServer) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/api/command", s.handleCommand)
	s.router.Get("/api/events", s.handleEvents)
	s.router.Post("/api/shutdown", s.handleShutdown)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd types.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrInvalidInput, "malformed command: "+err.Error())
		return
	}

	result := s.engine.Dispatch(r.Context(), cmd)
	status := http.StatusOK
	if !result.Success {
		status = statusForKind(result.Error)
	}
	writeJSON(w, status, result)
}

// handleEvents upgrades to a WebSocket and streams every event
// published on the global bus, JSON-encoded one frame per message,
// until the client disconnects or the request context ends.
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("transport: websocket upgrade failed")
		return
	}
	defer conn.Close()

	events := make(chan types.Event, 64)
	unsubscribe := event.SubscribeAll(func(evt types.Event) {
		select {
		case events <- evt:
		default:
			logging.Warn().Str("eventType", evt.Type).Msg("transport: dropping event, websocket client too slow")
		}
	})
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}
}

func (s *HTTPServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	select {
	case s.shutdownRequested <- struct{}{}:
	default:
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ShutdownRequested returns a channel that receives once when a client
// posts to /api/shutdown, for a cmd/conductor main loop to select on
// alongside OS signals.
func (s *HTTPServer) ShutdownRequested() <-chan struct{} {
	return s.shutdownRequested
}

func (s *HTTPServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("transport: listening on http %s: %w", s.config.Addr, err)
	}

	s.httpSrv = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.addr = listener.Addr().String()
	logging.Info().Str("addr", s.addr).Msg("http transport listening")

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logging.Error().Err(err).Msg("http transport exited")
		}
	}()
	return nil
}

// Addr returns the bound address, resolving a ":0" ephemeral port
// after Start.
func (s *HTTPServer) Addr() string {
	return s.addr
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the chi router for testing, matching the teacher's
// own Router() accessor.
func (s *HTTPServer) Router() *chi.Mux {
	return s.router
}
