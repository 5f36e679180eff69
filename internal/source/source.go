// Package source provides the telemetry feeds the engine consumes.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dwsmith1983/tripwire/internal/cacheproto"
	"github.com/dwsmith1983/tripwire/internal/schedule"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// Source streams telemetry updates until its context is cancelled.
type Source interface {
	Run(ctx context.Context, out chan<- types.Update) error
}

// Deps carries clients for the source types that need one.
type Deps struct {
	Cache  *cacheproto.Client
	SQS    SQSAPI
	Logger *slog.Logger
}

// New builds the configured source. prefix is the key prefix the cache
// and MQTT sources subscribe to.
func New(cfg types.SourceConfig, prefix string, deps Deps) (Source, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	switch cfg.Type {
	case "", types.SourceCache:
		if deps.Cache == nil {
			return nil, fmt.Errorf("cache source requires a cache client")
		}
		return deps.Cache, nil
	case types.SourceMQTT:
		return NewMQTT(cfg.Broker, cfg.ClientID, cfg.Topic, prefix, deps.Logger)
	case types.SourceSQS:
		if deps.SQS == nil {
			return nil, fmt.Errorf("sqs source requires a client")
		}
		src, err := NewSQS(deps.SQS, cfg.QueueURL, cfg.WaitSeconds, deps.Logger)
		if err != nil {
			return nil, err
		}
		if src.policy, err = ReconnectPolicy(cfg); err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("unknown source type %q", cfg.Type)
}

// ReconnectPolicy returns the backoff for a source, honouring a configured
// base delay.
func ReconnectPolicy(cfg types.SourceConfig) (schedule.ReconnectPolicy, error) {
	p := schedule.DefaultReconnectPolicy()
	if cfg.ReconnectDelay == "" {
		return p, nil
	}
	d, err := time.ParseDuration(cfg.ReconnectDelay)
	if err != nil {
		return p, fmt.Errorf("invalid reconnectDelay %q: %w", cfg.ReconnectDelay, err)
	}
	if d > 0 {
		p.Base = d
	}
	return p, nil
}
