// Package condition implements the watch condition tree: formula leaves,
// debounce decorators and precondition latches.
//
// A tree is built once per watch entry and is driven from a single goroutine;
// no type in this package is safe for concurrent use.
package condition

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dwsmith1983/tripwire/internal/expr"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// MissingDataGrace is how long a formula may reference an absent value
// before its condition is reported expired.
const MissingDataGrace = 6 * time.Second

// Condition is a node of a watch condition tree.
type Condition interface {
	// Update re-evaluates the node against the full telemetry namespace.
	Update(now time.Time, env expr.Env)
	// Tick advances time-based state and reports whether the triggered or
	// expired status may have changed.
	Tick(now time.Time) bool
	// Expired reports whether required telemetry has been missing too long.
	Expired(now time.Time) bool
	// Triggered reports the current alarm state.
	Triggered() bool
	// Keys returns the telemetry keys the node depends on, sorted.
	Keys() []string
	// NewSetups re-evaluates setup scoping against the loaded setups.
	NewSetups(setups []string)
	// SetEnabled enables or disables the node and its children.
	SetEnabled(enabled bool)
	// Enabled reports whether the node is enabled.
	Enabled() bool
}

// Build compiles the condition tree of a watch entry: the condition formula,
// debounced by the gracetime, optionally gated by a debounced precondition.
func Build(w types.WatchConfig, logger *slog.Logger) (Condition, error) {
	leaf, err := NewExpression(w.Condition, w.Setup, logger)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", w.Condition, err)
	}
	var cond Condition = leaf
	if d := w.GraceDuration(); d > 0 {
		cond = NewDelayed(cond, d)
	}

	if w.Precondition != "" {
		preLeaf, err := NewExpression(w.Precondition, w.Setup, logger)
		if err != nil {
			return nil, fmt.Errorf("precondition %q: %w", w.Precondition, err)
		}
		var pre Condition = preLeaf
		if d := w.PrecondDuration(); d > 0 {
			pre = NewDelayed(pre, d)
		}
		cond = NewPrecondition(pre, cond)
	}

	if !w.IsEnabled() {
		cond.SetEnabled(false)
	}
	return cond, nil
}

func unionKeys(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, k := range a {
		set[k] = struct{}{}
	}
	for _, k := range b {
		set[k] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
