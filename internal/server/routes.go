package server

import (
	"expvar"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dwsmith1983/tripwire/internal/server/handlers"
)

func (s *Server) registerRoutes(r chi.Router) {
	h := handlers.New(s.watchdog, s.journal)
	h.SetLogger(s.logger)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.SetHeader("Content-Type", "application/json"))

			r.Get("/health", h.Health)

			// Warning state
			r.Get("/warnings", h.ListWarnings)
			r.Get("/pausecount", h.GetPauseCount)

			// Configuration
			r.Get("/entries", h.ListEntries)
			r.Get("/rejected", h.ListRejected)
			r.Get("/setups", h.GetSetups)

			// Audit journal
			r.Get("/events", h.ListEvents)
		})

		if s.hub != nil {
			r.Handle("/stream", s.hub)
		}
	})

	r.Handle("/debug/vars", expvar.Handler())
}
