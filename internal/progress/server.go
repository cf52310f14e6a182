package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/velopack/velopack/internal/apply"
)

// Server exposes an Engine over HTTP: check/download/apply as POST
// actions, a status snapshot as GET, and a websocket feed of status
// transitions for a progress UI that wants to react live rather than poll.
type Server struct {
	router   *chi.Mux
	engine   *Engine
	port     int
	listener net.Listener
}

// Config configures a Server.
type Config struct {
	// Port to bind. Zero picks an OS-assigned port, read back via ActualPort.
	Port int
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The progress UI is always served from the same localhost-bound
	// instance as this API, so origin checks would only get in the way of
	// the desktop shell's embedded webview, which doesn't send one.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// New builds a Server that drives engine.
func New(cfg Config, engine *Engine) *Server {
	s := &Server{router: chi.NewRouter(), engine: engine, port: cfg.Port}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api/update", func(r chi.Router) {
		// The websocket feed has no fixed timeout; everything else gets one
		// so a stuck feed fetch can't wedge the HTTP server.
		r.Get("/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Post("/check", s.handleCheck)
			r.Post("/download", s.handleDownload)
			r.Get("/status", s.handleStatus)
			r.Post("/apply", s.handleApply)
		})
	})
}

// Start binds the configured port and serves until the listener errors
// (typically on Stop closing it).
func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = ln
	log.Printf("[progress] serving update status on http://%s", ln.Addr())
	return http.Serve(ln, s.router)
}

// ActualPort returns the bound port, useful when Config.Port was zero.
func (s *Server) ActualPort() int {
	if s.listener == nil {
		return s.port
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Stop closes the listener, ending Start's serve loop.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.CheckForUpdates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if info == nil {
		writeJSON(w, map[string]any{"updateAvailable": false})
		return
	}
	writeJSON(w, map[string]any{
		"updateAvailable": true,
		"targetVersion":   info.TargetFullRelease.Version,
		"isDowngrade":     info.IsDowngrade,
		"viaDeltas":       len(info.DeltasToTarget),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	// The download runs in the background past this request's lifetime, so
	// it is started against context.Background rather than r.Context().
	if err := s.engine.StartDownload(context.Background()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, s.engine.Status())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Status())
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Restart bool `json:"restart"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	// Apply must not be cancelled by this handler's own request timeout —
	// a half-finished swap is worse than a slow HTTP response.
	_, err := s.engine.Apply(context.Background(), apply.Options{Restart: req.Restart, RunHooks: true})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, s.engine.Status())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[progress] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := s.engine.subscribe()
	defer s.engine.unsubscribe(sub)

	// Detect client disconnects: gorilla/websocket has no read deadline by
	// default, so a dead read loop is the standard way to notice a closed
	// connection without a dedicated ping/pong handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case st := <-sub.ch:
			if err := conn.WriteJSON(st); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[progress] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		log.Printf("[progress] encode error response: %v", err)
	}
}
