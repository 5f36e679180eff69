package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dwsmith1983/tripwire/internal/secrets"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// DefaultMinInterval is the minimum time between two sends of one notifier.
const DefaultMinInterval = 60 * time.Second

// Deps carries the shared collaborators notifiers may need.
type Deps struct {
	Logger     *slog.Logger
	Secrets    *secrets.Resolver
	CloudWatch CloudWatchLogsAPI
}

// New builds a notifier from its configuration and wraps it in a rate
// limiter.
func New(ctx context.Context, cfg types.NotifierConfig, deps Deps) (Notifier, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Secrets == nil {
		deps.Secrets = secrets.NewResolver(nil)
	}

	interval := DefaultMinInterval
	if cfg.MinInterval != "" {
		d, err := time.ParseDuration(cfg.MinInterval)
		if err != nil {
			return nil, fmt.Errorf("notifier %q: invalid minInterval %q: %w", cfg.Name, cfg.MinInterval, err)
		}
		interval = d
	}

	resolve := func(field, v string) (string, error) {
		out, err := deps.Secrets.Resolve(ctx, v)
		if err != nil {
			return "", fmt.Errorf("notifier %q %s: %w", cfg.Name, field, err)
		}
		return out, nil
	}

	var (
		n   Notifier
		err error
	)
	switch cfg.Type {
	case types.NotifierConsole:
		n = NewConsoleNotifier(cfg.Name)
	case types.NotifierFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("notifier %q: file notifier requires path", cfg.Name)
		}
		n, err = NewFileNotifier(cfg.Name, cfg.Path)
	case types.NotifierMattermost:
		url, rerr := resolve("url", cfg.URL)
		if rerr != nil {
			return nil, rerr
		}
		n, err = NewMattermostNotifier(cfg.Name, url, cfg.Channel, cfg.Username)
	case types.NotifierTelegram:
		token, rerr := resolve("token", cfg.Token)
		if rerr != nil {
			return nil, rerr
		}
		n, err = NewTelegramNotifier(cfg.Name, cfg.URL, token, cfg.ChatID)
	case types.NotifierSMS:
		url, rerr := resolve("url", cfg.URL)
		if rerr != nil {
			return nil, rerr
		}
		n, err = NewSMSNotifier(cfg.Name, url, cfg.Receivers)
	case types.NotifierMailer:
		password, rerr := resolve("password", cfg.Password)
		if rerr != nil {
			return nil, rerr
		}
		n, err = NewMailNotifier(cfg.Name, cfg.Host, cfg.Port, cfg.Sender,
			cfg.Username, password, cfg.Subject, cfg.Receivers)
	case types.NotifierCloudWatch:
		n, err = NewCloudWatchNotifier(cfg.Name, deps.CloudWatch, cfg.LogGroup, cfg.LogStream)
	default:
		return nil, fmt.Errorf("notifier %q: unknown type %q", cfg.Name, cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("notifier %q: %w", cfg.Name, err)
	}
	return NewRateLimited(n, interval, deps.Logger), nil
}
