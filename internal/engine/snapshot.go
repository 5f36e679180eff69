package engine

import (
	"sort"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// Warnings returns the open warnings in the order they were raised.
func (e *Engine) Warnings() []types.WarningView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.WarningView, 0, e.warnings.len())
	e.warnings.each(func(id string, w warning) {
		out = append(out, types.WarningView{EntryID: id, Real: w.real, Description: w.desc})
	})
	return out
}

// PauseCount returns the active pause reasons.
func (e *Engine) PauseCount() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, e.pausecount.len())
	e.pausecount.each(func(_ string, r string) { out = append(out, r) })
	return out
}

// Setups returns the currently loaded setups.
func (e *Engine) Setups() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.setups...)
}

// Entries summarizes the accepted watch entries.
func (e *Engine) Entries() []types.EntryView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.EntryView, 0, len(e.entries))
	for _, entry := range e.entries {
		cfg := entry.Config
		out = append(out, types.EntryView{
			ID:           entry.ID,
			Condition:    cfg.Condition,
			Message:      cfg.Message,
			Setup:        cfg.Setup,
			Type:         cfg.Type,
			ScriptAction: cfg.ScriptAction,
			Enabled:      entry.Cond.Enabled(),
			Keys:         entry.Cond.Keys(),
			Triggered:    entry.Cond.Triggered(),
		})
	}
	return out
}

// Rejected returns the watch entries skipped at construction.
func (e *Engine) Rejected() []Rejection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Rejection(nil), e.rejected...)
}

// Keys returns every telemetry key some entry subscribes to, sorted.
func (e *Engine) Keys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.keymap))
	for k := range e.keymap {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
