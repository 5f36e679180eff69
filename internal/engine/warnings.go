package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/dwsmith1983/tripwire/internal/lifecycle"
	"github.com/dwsmith1983/tripwire/internal/metrics"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// Notification subjects.
const (
	SubjectWarning  = "New warning"
	SubjectExpired  = "Watchdog: cannot check condition"
	SubjectResolved = "Warning resolved"
)

const descTimeLayout = "2006-01-02 15:04"

// checkState compares the condition with the entry's warning record and
// performs the transition, if any. Repeated calls in one state are no-ops.
func (e *Engine) checkState(entry *Entry, now time.Time) {
	w, present := e.warnings.get(entry.ID)
	from := lifecycle.Current(present, w.real)
	to := lifecycle.Classify(entry.Cond.Expired(now), entry.Cond.Triggered())

	switch lifecycle.Next(from, to) {
	case lifecycle.ActionRaise:
		e.emitWarning(entry)
	case lifecycle.ActionRaiseExpired:
		e.emitExpiredWarning(entry)
	case lifecycle.ActionClear:
		e.clearWarning(entry)
	}
}

func (e *Engine) emitWarning(entry *Entry) {
	cfg := entry.Config
	now := e.now()
	e.logger.Info("watchdog: new warning", "entry", entry.ID, "condition", cfg.Condition)
	metrics.WarningsRaised.Add(1)

	desc := now.Format(descTimeLayout) + " -- " + cfg.Message
	if cfg.Action != "" {
		desc += fmt.Sprintf(" -- executing '%s'", cfg.Action)
	}

	switch cfg.ScriptAction {
	case types.ScriptActionNone:
	case types.ScriptActionPauseCount:
		desc += " -- counting paused"
		e.pausecount.set(entry.ID, cfg.Message)
		e.publishPauseCount()
	default:
		e.publisher.Publish(types.Message{
			Type:    types.MessageScriptAction,
			Payload: []any{string(cfg.ScriptAction), cfg.Message},
			Time:    now,
		})
	}

	e.notifier.Dispatch(cfg.Type, types.Notification{
		Subject:   SubjectWarning,
		Body:      desc,
		What:      cfg.Message,
		Short:     cfg.Message,
		Important: true,
	})
	e.publisher.Publish(types.Message{Type: types.MessageWarning, Payload: cfg.Message, Time: now})

	e.warnings.set(entry.ID, warning{real: true, desc: desc})
	e.publishWarnings()
	e.record(types.EventWarning, entry.ID, cfg.Message, desc, now)

	if cfg.Action != "" {
		e.runAction(entry, cfg.Action, now)
	}
}

func (e *Engine) emitExpiredWarning(entry *Entry) {
	cfg := entry.Config
	now := e.now()
	e.logger.Info("watchdog: condition cannot be checked", "entry", entry.ID, "condition", cfg.Condition)
	metrics.WarningsExpired.Add(1)

	msg := fmt.Sprintf("current value missing for condition '%s', cannot check watchdog condition", cfg.Condition)
	desc := now.Format(descTimeLayout) + " -- " + msg

	if cfg.Type != "" {
		e.notifier.Dispatch(cfg.Type, types.Notification{
			Subject: SubjectExpired,
			Body:    desc,
			What:    cfg.Message,
			Short:   msg,
		})
	}
	e.publisher.Publish(types.Message{Type: types.MessageWarning, Payload: msg, Time: now})

	// An expired record replacing a real one keeps its pause reason until
	// the warning clears.
	e.warnings.set(entry.ID, warning{real: false, desc: desc})
	e.publishWarnings()
	e.record(types.EventExpired, entry.ID, cfg.Message, desc, now)
}

func (e *Engine) clearWarning(entry *Entry) {
	cfg := entry.Config
	now := e.now()
	w, _ := e.warnings.get(entry.ID)
	e.logger.Info("watchdog: warning cleared", "entry", entry.ID, "condition", cfg.Condition)
	metrics.WarningsCleared.Add(1)

	e.warnings.remove(entry.ID)
	if e.pausecount.remove(entry.ID) {
		e.publishPauseCount()
	}
	e.publishWarnings()
	e.record(types.EventCleared, entry.ID, cfg.Message, w.desc, now)

	if w.real && cfg.OKMessage != "" {
		e.notifier.Dispatch(cfg.Type, types.Notification{
			Subject: SubjectResolved,
			Body:    cfg.OKMessage + "\n\nThe original warning was: " + cfg.Message,
			What:    cfg.OKMessage,
			Short:   cfg.OKMessage,
		})
	}
	if cfg.OKAction != "" {
		e.runAction(entry, cfg.OKAction, now)
	}
}

func (e *Engine) runAction(entry *Entry, code string, now time.Time) {
	e.publisher.Publish(types.Message{Type: types.MessageAction, Payload: code, Time: now})
	e.record(types.EventAction, entry.ID, code, strings.Join(e.setups, ","), now)
	if e.runner == nil {
		return
	}
	setups := append([]string(nil), e.setups...)
	if err := e.runner.Spawn(e.actionsCtx, code, setups); err != nil {
		e.logger.Error("watchdog: cannot spawn action", "entry", entry.ID, "action", code, "error", err)
	}
}

func (e *Engine) publishWarnings() {
	descs := make([]string, 0, e.warnings.len())
	e.warnings.each(func(_ string, w warning) { descs = append(descs, w.desc) })
	e.publisher.Publish(types.Message{Type: types.MessageWarnings, Payload: strings.Join(descs, "\n")})
}

func (e *Engine) publishPauseCount() {
	reasons := make([]string, 0, e.pausecount.len())
	e.pausecount.each(func(_ string, r string) { reasons = append(reasons, r) })
	e.publisher.Publish(types.Message{Type: types.MessagePauseCount, Payload: strings.Join(reasons, ", ")})
}
