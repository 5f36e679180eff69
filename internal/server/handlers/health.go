package handlers

import (
	"net/http"
)

// Health reports liveness together with the entry and warning counts.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, map[string]any{
		"status":   "ok",
		"entries":  len(h.watchdog.Entries()),
		"warnings": len(h.watchdog.Warnings()),
	})
}
