// Package handlers implements HTTP request handlers for the tripwire API.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dwsmith1983/tripwire/internal/engine"
	"github.com/dwsmith1983/tripwire/internal/journal"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// Watchdog is the read-only engine view the handlers serve.
type Watchdog interface {
	Warnings() []types.WarningView
	PauseCount() []string
	Setups() []string
	Entries() []types.EntryView
	Rejected() []engine.Rejection
}

// Handlers contains all HTTP handler dependencies.
type Handlers struct {
	watchdog Watchdog
	journal  journal.Journal
	logger   *slog.Logger
}

// New creates a new Handlers instance. A nil journal serves no events.
func New(wd Watchdog, j journal.Journal) *Handlers {
	if j == nil {
		j = journal.Noop{}
	}
	return &Handlers{
		watchdog: wd,
		journal:  j,
		logger:   slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (h *Handlers) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

// writeError logs the internal error and returns a sanitized JSON error to the client.
func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		h.logger.Error(msg, "error", err, "status", status)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("watchdog: encoding response failed", "error", err)
	}
}
