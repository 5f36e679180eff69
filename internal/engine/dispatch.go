package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dwsmith1983/tripwire/internal/cacheproto"
	"github.com/dwsmith1983/tripwire/internal/journal"
	"github.com/dwsmith1983/tripwire/internal/metrics"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// DefaultTickInterval is the period of the idle tick driving debounce
// timers and expiry.
const DefaultTickInterval = time.Second

// Run consumes updates and ticks until ctx is cancelled or updates is
// closed. Updates and ticks never run concurrently.
func (e *Engine) Run(ctx context.Context, updates <-chan types.Update, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	e.actionsCtx = context.WithoutCancel(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			e.HandleUpdate(u)
		case <-ticker.C:
			e.Tick(e.now())
		}
	}
}

// HandleUpdate applies one telemetry update.
func (e *Engine) HandleUpdate(u types.Update) {
	metrics.UpdatesReceived.Add(1)
	key := NormalizeKey(e.prefix, u.Key)

	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case key == e.setupKey:
		if !u.Expired() {
			e.handleSetups(u)
		}
		return
	case e.mailKey != "" && key == e.mailKey:
		if !u.Expired() {
			e.handleMailReceivers(u)
		}
		return
	}

	subscribers, ok := e.keymap[key]
	if !ok {
		return
	}

	if u.Expired() {
		delete(e.keydict, key)
	} else if v, err := cacheproto.Decode(u.Value); err != nil {
		metrics.UpdatesCorrupt.Add(1)
		e.logger.Warn("watchdog: corrupt value, treating key as missing", "key", u.Key, "error", err)
		delete(e.keydict, key)
	} else {
		e.keydict[key] = v
	}

	for _, entry := range subscribers {
		entry.Cond.Update(u.Time, e.keydict)
		e.checkState(entry, u.Time)
	}
}

// Tick advances time-based condition state and re-checks every entry whose
// state may have changed.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, entry := range e.entries {
		if entry.Cond.Tick(now) || entry.Cond.Expired(now) {
			e.checkState(entry, now)
		}
	}
}

func (e *Engine) handleSetups(u types.Update) {
	setups, err := decodeStrings(u.Value)
	if err != nil {
		metrics.UpdatesCorrupt.Add(1)
		e.logger.Warn("watchdog: cannot decode setup list", "value", u.Value, "error", err)
		return
	}
	e.setups = setups
	e.logger.Info("watchdog: setups changed", "setups", setups)
	e.record(types.EventSetupChange, "", strings.Join(setups, ","), "", u.Time)

	for _, entry := range e.entries {
		entry.Cond.NewSetups(setups)
		entry.Cond.Update(u.Time, e.keydict)
		e.checkState(entry, u.Time)
	}
}

func (e *Engine) handleMailReceivers(u types.Update) {
	receivers, err := decodeStrings(u.Value)
	if err != nil {
		metrics.UpdatesCorrupt.Add(1)
		e.logger.Warn("watchdog: cannot decode mail receivers", "value", u.Value, "error", err)
		return
	}
	n := e.notifier.UpdateReceivers(receivers)
	e.logger.Info("watchdog: updated mail receivers", "receivers", receivers, "notifiers", n)
}

// decodeStrings decodes a list or tuple of strings; a single string is a
// one-element list.
func decodeStrings(raw string) ([]string, error) {
	v, err := cacheproto.Decode(raw)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case string:
		return []string{x}, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list item %v is not a string", item)
			}
			out = append(out, s)
		}
		return out, nil
	case map[any]any:
		// set-like dict of names
		out := make([]string, 0, len(x))
		for k := range x {
			s, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("key %v is not a string", k)
			}
			out = append(out, s)
		}
		sort.Strings(out)
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of strings, got %T", v)
}

func (e *Engine) record(kind types.EventKind, entryID, message, detail string, ts time.Time) {
	ev := journal.NewEvent(kind, entryID, message, detail, ts)
	if err := e.journal.Append(context.Background(), ev); err != nil {
		e.logger.Warn("watchdog: journal append failed", "kind", kind, "error", err)
	}
}
