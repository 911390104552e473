// Package server provides the HTTP server for the mudra drawing board.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/canvas"
	"github.com/ayusman/mudra/internal/persist"
	"github.com/ayusman/mudra/internal/server/api"
)

// Controller is the live board as seen by the server.
type Controller interface {
	api.Controller
	// Snapshot returns a copy of the committed canvas and its revision.
	Snapshot(ctx context.Context) (*canvas.Canvas, uint64, error)
}

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Controller Controller
	Persister  *persist.Persister
	Frames     *FrameBuffer
	Hub        *Hub
}

// Server represents the HTTP server for the drawing board.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	hub    *Hub
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		hub:    config.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub()
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/events", s.hub)

	if ctrl := s.config.Controller; ctrl != nil {
		s.mux.Handle("/api/actions", api.NewActionHandler(ctrl))
		s.mux.Handle("/api/canvas", NewCanvasHandler(ctrl))
		s.hub.Hello = func() any {
			status, err := ctrl.Status(context.Background())
			if err != nil {
				return nil
			}
			return Message{Type: MessageStatus, Status: &status}
		}
	}

	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames))
	}

	if p := s.config.Persister; p != nil && p.Store() != nil {
		drawings := api.NewDrawingHandler(p)
		s.mux.Handle("/api/drawings", drawings)
		s.mux.Handle("/api/drawings/", drawings)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// Hub returns the WebSocket hub feeding /api/events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.start).String(),
		"clients": s.hub.Clients(),
	}
	if s.config.Controller != nil {
		if status, err := s.config.Controller.Status(r.Context()); err == nil {
			response["revision"] = status.Revision
			response["mode"] = status.Mode
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	log.WithField("addr", addr).Info("server listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
