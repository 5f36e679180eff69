package publish

import (
	"fmt"
	"log/slog"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// Deps carries the collaborators publishers are built from. Fields only
// need to be set for the publisher types that are configured.
type Deps struct {
	Cache       Putter
	KeyPrefix   string
	EventBridge EventBridgeAPI
	Hub         *Hub
	Logger      *slog.Logger
}

// Build creates the configured publishers. The returned function drains
// and stops any background queues.
func Build(cfgs []types.PublisherConfig, deps Deps) (Multi, func(), error) {
	var (
		out    Multi
		queues []*Queue
	)
	closeAll := func() {
		for _, q := range queues {
			q.Close()
		}
	}
	for _, cfg := range cfgs {
		switch cfg.Type {
		case types.PublisherCache:
			if deps.Cache == nil {
				closeAll()
				return nil, nil, fmt.Errorf("cache publisher requires the cache source")
			}
			out = append(out, NewCache(deps.Cache, deps.KeyPrefix, deps.Logger))
		case types.PublisherEventBridge:
			if deps.EventBridge == nil {
				closeAll()
				return nil, nil, fmt.Errorf("eventbridge publisher requires a client")
			}
			q := NewQueue(NewEventBridge(deps.EventBridge, cfg.EventBusName, cfg.EventSource, deps.Logger),
				cfg.QueueSize, deps.Logger)
			queues = append(queues, q)
			out = append(out, q)
		case types.PublisherHub:
			if deps.Hub == nil {
				closeAll()
				return nil, nil, fmt.Errorf("hub publisher requires the HTTP server")
			}
			out = append(out, deps.Hub)
		default:
			closeAll()
			return nil, nil, fmt.Errorf("unknown publisher type %q", cfg.Type)
		}
	}
	return out, closeAll, nil
}
