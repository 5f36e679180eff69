// Package metrics exposes runtime counters via expvar, mirrored to
// OpenTelemetry once a meter is installed.
package metrics

import (
	"context"
	"expvar"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
)

// Counter is a monotonically increasing expvar counter.
type Counter struct {
	name string
	v    *expvar.Int
	otel atomic.Value // metric.Int64Counter
}

var all []*Counter

func newCounter(name string) *Counter {
	c := &Counter{name: name, v: expvar.NewInt(name)}
	all = append(all, c)
	return c
}

// Add increments the counter.
func (c *Counter) Add(n int64) {
	c.v.Add(n)
	if oc, ok := c.otel.Load().(metric.Int64Counter); ok {
		oc.Add(context.Background(), n)
	}
}

// Value returns the current count.
func (c *Counter) Value() int64 { return c.v.Value() }

// Name returns the expvar name.
func (c *Counter) Name() string { return c.name }

var (
	UpdatesReceived      = newCounter("updates_received")
	UpdatesCorrupt       = newCounter("updates_corrupt")
	WarningsRaised       = newCounter("warnings_raised")
	WarningsExpired      = newCounter("warnings_expired")
	WarningsCleared      = newCounter("warnings_cleared")
	EntriesRejected      = newCounter("entries_rejected")
	NotificationsSent    = newCounter("notifications_sent")
	NotificationsFailed  = newCounter("notifications_failed")
	NotificationsDropped = newCounter("notifications_dropped")
	ActionsSpawned       = newCounter("actions_spawned")
	ActionsFailed        = newCounter("actions_failed")
	MessagesPublished    = newCounter("messages_published")
	MessagesDropped      = newCounter("messages_dropped")
	JournalErrors        = newCounter("journal_errors")
)

// Init registers an OpenTelemetry counter for every expvar counter.
func Init(meter metric.Meter) error {
	for _, c := range all {
		oc, err := meter.Int64Counter("tripwire." + c.name)
		if err != nil {
			return fmt.Errorf("registering counter %s: %w", c.name, err)
		}
		c.otel.Store(oc)
	}
	return nil
}
