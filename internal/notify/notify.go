// Package notify delivers warning notifications to groups of notifier sinks.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dwsmith1983/tripwire/internal/metrics"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

const defaultSendTimeout = 30 * time.Second

// Notifier is a notification destination.
type Notifier interface {
	Send(ctx context.Context, n types.Notification) error
	Name() string
}

// ReceiverSetter is implemented by notifiers whose receiver list can be
// replaced while running.
type ReceiverSetter interface {
	SetReceivers(receivers []string)
}

// Wrapper is implemented by notifier decorators.
type Wrapper interface {
	Unwrap() Notifier
}

// Unwrap strips all decorators from n.
func Unwrap(n Notifier) Notifier {
	for {
		w, ok := n.(Wrapper)
		if !ok {
			return n
		}
		n = w.Unwrap()
	}
}

// Dispatcher routes notifications to channel groups of notifiers.
// Sends run in their own goroutines and never block the caller.
type Dispatcher struct {
	channels map[string][]Notifier
	all      []Notifier
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithSendTimeout bounds each individual send.
func WithSendTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = t }
}

// NewDispatcher builds channel groups from named notifiers. channels maps a
// channel name to notifier names; the "" channel always exists.
func NewDispatcher(notifiers []Notifier, channels map[string][]string, opts ...DispatcherOption) (*Dispatcher, error) {
	d := &Dispatcher{
		channels: map[string][]Notifier{"": nil},
		all:      notifiers,
		timeout:  defaultSendTimeout,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}

	byName := make(map[string]Notifier, len(notifiers))
	for _, n := range notifiers {
		if _, dup := byName[n.Name()]; dup {
			return nil, fmt.Errorf("duplicate notifier name %q", n.Name())
		}
		byName[n.Name()] = n
	}
	for channel, names := range channels {
		group := make([]Notifier, 0, len(names))
		for _, name := range names {
			n, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("channel %q references unknown notifier %q", channel, name)
			}
			group = append(group, n)
		}
		d.channels[channel] = group
	}
	return d, nil
}

// HasChannel reports whether a channel group exists.
func (d *Dispatcher) HasChannel(channel string) bool {
	_, ok := d.channels[channel]
	return ok
}

// Channels returns the configured channel names, sorted.
func (d *Dispatcher) Channels() []string {
	out := make([]string, 0, len(d.channels))
	for c := range d.channels {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Dispatch sends n to every notifier of the channel in the background.
// Failures are logged and never retried.
func (d *Dispatcher) Dispatch(channel string, n types.Notification) {
	for _, notifier := range d.channels[channel] {
		d.wg.Add(1)
		go func(notifier Notifier) {
			defer d.wg.Done()
			d.send(notifier, n)
		}(notifier)
	}
}

func (d *Dispatcher) send(notifier Notifier, n types.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	ctx, span := otel.Tracer("tripwire/notify").Start(ctx, "notify.send")
	span.SetAttributes(
		attribute.String("notifier", notifier.Name()),
		attribute.String("subject", n.Subject),
	)
	defer span.End()

	if err := notifier.Send(ctx, n); err != nil {
		metrics.NotificationsFailed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Error("watchdog: notification failed", "notifier", notifier.Name(), "error", err)
		return
	}
	metrics.NotificationsSent.Add(1)
}

// UpdateReceivers replaces the receiver list of every notifier that
// supports it and returns how many were updated.
func (d *Dispatcher) UpdateReceivers(receivers []string) int {
	updated := 0
	for _, n := range d.all {
		if rs, ok := Unwrap(n).(ReceiverSetter); ok {
			rs.SetReceivers(receivers)
			updated++
		}
	}
	return updated
}

// Wait blocks until in-flight sends finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
