// Package server implements the tripwire HTTP status server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dwsmith1983/tripwire/internal/journal"
	"github.com/dwsmith1983/tripwire/internal/publish"
	"github.com/dwsmith1983/tripwire/internal/server/handlers"
)

// Server is the tripwire HTTP status server.
type Server struct {
	watchdog handlers.Watchdog
	journal  journal.Journal
	hub      *publish.Hub
	logger   *slog.Logger
	router   chi.Router
	addr     string
	srv      *http.Server
}

// New creates a new HTTP server. hub may be nil, in which case the stream
// endpoint is not registered. A non-empty apiKey protects every route
// except the health check.
func New(addr string, wd handlers.Watchdog, j journal.Journal, hub *publish.Hub, apiKey string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		watchdog: wd,
		journal:  j,
		hub:      hub,
		logger:   logger,
		addr:     addr,
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(APIKeyMiddleware(apiKey))

	s.router = r
	s.registerRoutes(r)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves HTTP requests until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("watchdog: status server listening", "addr", s.addr)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
