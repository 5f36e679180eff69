package condition

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dwsmith1983/tripwire/internal/expr"
)

// Expression is the leaf condition: a formula over the telemetry namespace,
// optionally restricted to a setup scope.
type Expression struct {
	formula *expr.Expr
	setup   *expr.Expr // nil when the expression applies to every setup

	enabled      bool
	setupEnabled bool
	triggered    bool
	deadline     time.Time // zero when no value is missing

	logger *slog.Logger
}

// NewExpression compiles a condition formula and its optional setup scope.
// A scoped expression stays disabled until NewSetups reports a match.
func NewExpression(formula, setup string, logger *slog.Logger) (*Expression, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := expr.Compile(formula)
	if err != nil {
		return nil, err
	}
	e := &Expression{formula: f, enabled: true, setupEnabled: true, logger: logger}
	if setup != "" {
		s, err := expr.Compile(setup)
		if err != nil {
			return nil, err
		}
		e.setup = s
		e.setupEnabled = false
	}
	return e, nil
}

// Update evaluates the formula. Every evaluation that misses a value moves
// the expiry deadline to now plus the grace window; other evaluation errors
// leave the state untouched.
func (e *Expression) Update(now time.Time, env expr.Env) {
	ok, err := e.formula.EvalBool(env)
	if err != nil {
		var undef *expr.UndefinedError
		if errors.As(err, &undef) {
			if e.setupEnabled && e.enabled {
				e.deadline = now.Add(MissingDataGrace)
			}
			return
		}
		e.logger.Warn("watchdog: error evaluating condition",
			"condition", e.formula.String(), "error", err)
		return
	}
	e.deadline = time.Time{}
	e.triggered = ok && e.enabled && e.setupEnabled
}

// Tick is a no-op; expiry is derived from the deadline in Expired.
func (e *Expression) Tick(time.Time) bool { return false }

// Expired reports whether the missing-value deadline has passed.
func (e *Expression) Expired(now time.Time) bool {
	return !e.deadline.IsZero() && now.After(e.deadline)
}

// Triggered implements Condition.
func (e *Expression) Triggered() bool { return e.triggered }

// Keys returns the free names of the formula.
func (e *Expression) Keys() []string { return e.formula.Names() }

// NewSetups re-evaluates the setup scope and forgets any pending expiry.
func (e *Expression) NewSetups(setups []string) {
	e.deadline = time.Time{}
	if e.setup == nil {
		e.setupEnabled = true
		return
	}
	ok, err := e.setup.EvalBool(expr.NewSetupEnv(setups))
	if err != nil {
		e.logger.Warn("watchdog: error evaluating setup scope",
			"setup", e.setup.String(), "error", err)
		ok = false
	}
	e.setupEnabled = ok
	if !ok {
		e.triggered = false
	}
}

// SetEnabled implements Condition.
func (e *Expression) SetEnabled(enabled bool) {
	e.enabled = enabled
	if !enabled {
		e.triggered = false
		e.deadline = time.Time{}
	}
}

// Enabled implements Condition.
func (e *Expression) Enabled() bool { return e.enabled }

// SetupEnabled reports whether the loaded setups match the setup scope.
func (e *Expression) SetupEnabled() bool { return e.setupEnabled }
