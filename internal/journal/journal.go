// Package journal records watchdog events: warnings raised and cleared,
// actions spawned and setup changes.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dwsmith1983/tripwire/internal/metrics"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// Journal is an append-only event log.
type Journal interface {
	Append(ctx context.Context, ev types.Event) error
	// Recent returns up to n events, newest first.
	Recent(ctx context.Context, n int) ([]types.Event, error)
}

// NewEvent creates an event with a time-ordered ID.
func NewEvent(kind types.EventKind, entryID, message, detail string, ts time.Time) types.Event {
	return types.Event{
		ID:        ulid.MustNew(ulid.Timestamp(ts), ulid.DefaultEntropy()).String(),
		Kind:      kind,
		EntryID:   entryID,
		Message:   message,
		Detail:    detail,
		Timestamp: ts,
	}
}

// Noop discards every event.
type Noop struct{}

// Append does nothing.
func (Noop) Append(context.Context, types.Event) error { return nil }

// Recent returns nothing.
func (Noop) Recent(context.Context, int) ([]types.Event, error) { return nil, nil }

const defaultAsyncQueue = 256

// Async moves appends off the caller's goroutine. Events that do not fit
// the queue are dropped and counted.
type Async struct {
	inner  Journal
	queue  chan types.Event
	logger *slog.Logger
	done   chan struct{}

	closeOnce sync.Once
}

// NewAsync starts the background writer for j.
func NewAsync(j Journal, size int, logger *slog.Logger) *Async {
	if size <= 0 {
		size = defaultAsyncQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{inner: j, queue: make(chan types.Event, size), logger: logger, done: make(chan struct{})}
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer close(a.done)
	for ev := range a.queue {
		if err := a.inner.Append(context.Background(), ev); err != nil {
			metrics.JournalErrors.Add(1)
			a.logger.Error("watchdog: journal append failed", "kind", ev.Kind, "error", err)
		}
	}
}

// Append queues ev and never blocks.
func (a *Async) Append(_ context.Context, ev types.Event) error {
	select {
	case a.queue <- ev:
		return nil
	default:
		metrics.JournalErrors.Add(1)
		return fmt.Errorf("journal queue full, dropping %s event", ev.Kind)
	}
}

// Recent reads through to the wrapped journal.
func (a *Async) Recent(ctx context.Context, n int) ([]types.Event, error) {
	return a.inner.Recent(ctx, n)
}

// Close flushes queued events. Append must not be called afterwards.
func (a *Async) Close(ctx context.Context) error {
	a.closeOnce.Do(func() { close(a.queue) })
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
