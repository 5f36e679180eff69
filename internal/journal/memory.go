package journal

import (
	"context"
	"sync"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// DefaultCapacity is the number of events kept by the memory journal.
const DefaultCapacity = 500

// Memory keeps the most recent events in a ring buffer.
type Memory struct {
	mu    sync.Mutex
	buf   []types.Event
	next  int
	count int
}

// NewMemory creates a memory journal holding up to capacity events.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{buf: make([]types.Event, capacity)}
}

// Append stores ev, overwriting the oldest event when full.
func (m *Memory) Append(_ context.Context, ev types.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf[m.next] = ev
	m.next = (m.next + 1) % len(m.buf)
	if m.count < len(m.buf) {
		m.count++
	}
	return nil
}

// Recent returns up to n events, newest first. n <= 0 returns all.
func (m *Memory) Recent(_ context.Context, n int) ([]types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > m.count {
		n = m.count
	}
	out := make([]types.Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (m.next - i + len(m.buf)) % len(m.buf)
		out = append(out, m.buf[idx])
	}
	return out, nil
}
