package handlers

import (
	"net/http"
	"strconv"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// ListEvents returns recent journal events, newest first.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list events", err)
		return
	}
	if events == nil {
		events = []types.Event{}
	}
	h.writeJSON(w, events)
}
