package handlers

import (
	"net/http"

	"github.com/dwsmith1983/tripwire/internal/engine"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// ListWarnings returns the open warnings in the order they were raised.
func (h *Handlers) ListWarnings(w http.ResponseWriter, _ *http.Request) {
	warnings := h.watchdog.Warnings()
	if warnings == nil {
		warnings = []types.WarningView{}
	}
	h.writeJSON(w, warnings)
}

// GetPauseCount returns the active pause reasons.
func (h *Handlers) GetPauseCount(w http.ResponseWriter, _ *http.Request) {
	reasons := h.watchdog.PauseCount()
	if reasons == nil {
		reasons = []string{}
	}
	h.writeJSON(w, map[string]any{"paused": len(reasons) > 0, "reasons": reasons})
}

// ListEntries returns the accepted watch entries.
func (h *Handlers) ListEntries(w http.ResponseWriter, _ *http.Request) {
	entries := h.watchdog.Entries()
	if entries == nil {
		entries = []types.EntryView{}
	}
	h.writeJSON(w, entries)
}

// ListRejected returns the watch entries skipped at startup.
func (h *Handlers) ListRejected(w http.ResponseWriter, _ *http.Request) {
	rejected := h.watchdog.Rejected()
	if rejected == nil {
		rejected = []engine.Rejection{}
	}
	h.writeJSON(w, rejected)
}

// GetSetups returns the loaded setups.
func (h *Handlers) GetSetups(w http.ResponseWriter, _ *http.Request) {
	setups := h.watchdog.Setups()
	if setups == nil {
		setups = []string{}
	}
	h.writeJSON(w, setups)
}
