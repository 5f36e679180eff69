// Package action spawns warning actions as script-runner subprocesses.
package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/tripwire/internal/metrics"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// Runner defaults.
const (
	DefaultScript  = "run-script"
	DefaultAppName = "watchdog-action"
	DefaultTimeout = 60
)

// Runner launches warning actions. Spawn returns once the action has been
// started; its outcome is never reported back.
type Runner interface {
	Spawn(ctx context.Context, code string, setups []string) error
}

// ScriptRunner runs actions through an external script interpreter:
//
//	<script> -M -S <timeout> -A <appname> <setup,setup,...> <code>
type ScriptRunner struct {
	script  string
	appName string
	timeout int
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewScriptRunner creates a runner from the action configuration, filling
// in defaults for unset fields.
func NewScriptRunner(cfg types.ActionConfig, logger *slog.Logger) *ScriptRunner {
	if cfg.Script == "" {
		cfg.Script = DefaultScript
	}
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScriptRunner{script: cfg.Script, appName: cfg.AppName, timeout: cfg.Timeout, logger: logger}
}

// Args returns the argument list passed to the script.
func (r *ScriptRunner) Args(code string, setups []string) []string {
	return []string{
		"-M",
		"-S", strconv.Itoa(r.timeout),
		"-A", r.appName,
		strings.Join(setups, ","),
		code,
	}
}

// Spawn starts the script and reaps it in the background.
func (r *ScriptRunner) Spawn(ctx context.Context, code string, setups []string) error {
	_, span := otel.Tracer("tripwire/action").Start(ctx, "action.spawn",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("action.code", code),
			attribute.StringSlice("action.setups", setups),
		))
	defer span.End()

	cmd := exec.CommandContext(ctx, r.script, r.Args(code, setups)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		metrics.ActionsFailed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("starting action %q: %w", r.script, err)
	}
	span.SetAttributes(attribute.Int("action.pid", cmd.Process.Pid))
	metrics.ActionsSpawned.Add(1)
	r.logger.Info("watchdog: action spawned", "pid", cmd.Process.Pid, "code", code)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := cmd.Wait(); err != nil {
			metrics.ActionsFailed.Add(1)
			r.logger.Error("watchdog: action failed",
				"code", code, "exitCode", exitCode(err), "error", err,
				"stderr", strings.TrimSpace(stderr.String()))
			return
		}
		r.logger.Debug("watchdog: action finished", "code", code)
	}()
	return nil
}

// Wait blocks until all spawned actions have exited or ctx is done.
func (r *ScriptRunner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
