// Package testutil provides shared test fakes for tripwire.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// Dispatch is one recorded notification.
type Dispatch struct {
	Channel      string
	Notification types.Notification
}

// MockNotifier records dispatched notifications. Channels lists the known
// channel groups; "" always exists.
type MockNotifier struct {
	Channels []string

	mu         sync.Mutex
	dispatches []Dispatch
	receivers  [][]string
}

// Dispatch records n.
func (m *MockNotifier) Dispatch(channel string, n types.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatches = append(m.dispatches, Dispatch{Channel: channel, Notification: n})
}

// HasChannel reports whether channel is "" or listed in Channels.
func (m *MockNotifier) HasChannel(channel string) bool {
	if channel == "" {
		return true
	}
	for _, c := range m.Channels {
		if c == channel {
			return true
		}
	}
	return false
}

// UpdateReceivers records the receiver list.
func (m *MockNotifier) UpdateReceivers(receivers []string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receivers = append(m.receivers, receivers)
	return 1
}

// Dispatches returns the recorded notifications.
func (m *MockNotifier) Dispatches() []Dispatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Dispatch(nil), m.dispatches...)
}

// Receivers returns every receiver list that was set.
func (m *MockNotifier) Receivers() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.receivers...)
}

// Spawn is one recorded action launch.
type Spawn struct {
	Code   string
	Setups []string
}

// MockRunner records action launches instead of running them.
type MockRunner struct {
	Err error

	mu     sync.Mutex
	spawns []Spawn
}

// Spawn records the launch and returns Err.
func (m *MockRunner) Spawn(_ context.Context, code string, setups []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spawns = append(m.spawns, Spawn{Code: code, Setups: setups})
	return m.Err
}

// Spawns returns the recorded launches.
func (m *MockRunner) Spawns() []Spawn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Spawn(nil), m.spawns...)
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock set to t.
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
