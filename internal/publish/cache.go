package publish

import (
	"log/slog"
	"time"

	"github.com/dwsmith1983/tripwire/internal/cacheproto"
	"github.com/dwsmith1983/tripwire/internal/metrics"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// Putter queues tell messages on the cache connection.
type Putter interface {
	Put(key, value string) bool
	PutAt(t time.Time, key, value string) bool
}

// Cache publishes messages as keys under <prefix>watchdog/.
type Cache struct {
	client Putter
	prefix string
	logger *slog.Logger
}

// NewCache creates a cache publisher. prefix is the cache key prefix,
// e.g. "nicos/".
func NewCache(client Putter, prefix string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, prefix: prefix, logger: logger}
}

// Key returns the cache key a message type is written to.
func (c *Cache) Key(t types.MessageType) string {
	return c.prefix + "watchdog/" + string(t)
}

// Publish encodes the payload and queues it on the cache connection.
func (c *Cache) Publish(msg types.Message) {
	value, err := cacheproto.Encode(msg.Payload)
	if err != nil {
		metrics.MessagesDropped.Add(1)
		c.logger.Error("watchdog: cannot encode message", "type", msg.Type, "error", err)
		return
	}
	var ok bool
	if msg.Timestamped() {
		ok = c.client.PutAt(msg.Time, c.Key(msg.Type), value)
	} else {
		ok = c.client.Put(c.Key(msg.Type), value)
	}
	if !ok {
		metrics.MessagesDropped.Add(1)
		return
	}
	metrics.MessagesPublished.Add(1)
}
