// Package publish delivers outbound watchdog messages to downstream
// subscribers. Publishers never block the caller.
package publish

import (
	"log/slog"
	"sync"

	"github.com/dwsmith1983/tripwire/internal/metrics"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// Publisher receives outbound messages.
type Publisher interface {
	Publish(msg types.Message)
}

// Multi fans a message out to several publishers.
type Multi []Publisher

// Publish forwards msg to every publisher in order.
func (m Multi) Publish(msg types.Message) {
	for _, p := range m {
		p.Publish(msg)
	}
}

// Recorder keeps every published message. It backs the check command and
// tests.
type Recorder struct {
	mu   sync.Mutex
	msgs []types.Message
}

// Publish records msg.
func (r *Recorder) Publish(msg types.Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []types.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Message(nil), r.msgs...)
}

// Last returns the most recent message of the given type.
func (r *Recorder) Last(t types.MessageType) (types.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].Type == t {
			return r.msgs[i], true
		}
	}
	return types.Message{}, false
}

const defaultQueueSize = 128

// Queue decouples a slow publisher from the caller with a bounded buffer.
// Messages that do not fit are dropped.
type Queue struct {
	inner  Publisher
	ch     chan types.Message
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
}

// NewQueue starts a worker draining into inner.
func NewQueue(inner Publisher, size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{inner: inner, ch: make(chan types.Message, size), logger: logger, done: make(chan struct{})}
	go q.loop()
	return q
}

func (q *Queue) loop() {
	defer close(q.done)
	for msg := range q.ch {
		q.inner.Publish(msg)
	}
}

// Publish enqueues msg without blocking.
func (q *Queue) Publish(msg types.Message) {
	select {
	case q.ch <- msg:
	default:
		metrics.MessagesDropped.Add(1)
		q.logger.Warn("watchdog: publish queue full, dropping message", "type", msg.Type)
	}
}

// Close stops accepting messages and waits for the queue to drain.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.ch) })
	<-q.done
}
