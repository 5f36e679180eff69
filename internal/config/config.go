// Package config handles loading and validation of tripwire.yaml.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/tripwire/internal/engine"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "tripwire.yaml"

// EnvDir overrides the configuration directory when no directory is given.
const EnvDir = "TRIPWIRE_CONFIG_DIR"

// ErrInvalid marks configuration structure errors.
var ErrInvalid = errors.New("invalid configuration")

// Dir returns dir, the EnvDir override when dir is empty, or ".".
func Dir(dir string) string {
	if dir != "" {
		return dir
	}
	if env := os.Getenv(EnvDir); env != "" {
		return env
	}
	return "."
}

// Load reads and parses tripwire.yaml from the given directory, merges any
// watch files, fills defaults and validates the result.
func Load(dir string) (*types.ProjectConfig, error) {
	dir = Dir(dir)
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for _, name := range cfg.WatchFiles {
		watch, err := loadWatchFile(dir, name)
		if err != nil {
			return nil, err
		}
		cfg.Watch = append(cfg.Watch, watch...)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func loadWatchFile(dir, name string) ([]types.WatchConfig, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading watch file: %w", err)
	}
	var watch []types.WatchConfig
	if err := yaml.Unmarshal(data, &watch); err != nil {
		return nil, fmt.Errorf("parsing watch file %s: %w", name, err)
	}
	return watch, nil
}

func applyDefaults(cfg *types.ProjectConfig) {
	if cfg.Name == "" {
		cfg.Name = "tripwire"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = engine.DefaultKeyPrefix
	}
	if !strings.HasSuffix(cfg.KeyPrefix, "/") {
		cfg.KeyPrefix += "/"
	}
	if cfg.SetupKey == "" {
		cfg.SetupKey = engine.DefaultSetupKey
	}
	if cfg.TickInterval == "" {
		cfg.TickInterval = engine.DefaultTickInterval.String()
	}
	if cfg.Source.Type == "" {
		cfg.Source.Type = types.SourceCache
	}
	if cfg.Source.Type == types.SourceCache && cfg.Source.Addr == "" {
		cfg.Source.Addr = "localhost"
	}
	if cfg.Journal.Type == "" {
		cfg.Journal.Type = types.JournalMemory
	}
}

func validate(cfg *types.ProjectConfig) error {
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if err := validDuration("tickInterval", cfg.TickInterval); err != nil {
		return err
	}
	if err := validateSource(cfg.Source); err != nil {
		return err
	}
	for i, p := range cfg.Publishers {
		switch p.Type {
		case types.PublisherCache:
			if cfg.Source.Type != types.SourceCache {
				return fmt.Errorf("%w: publishers[%d]: cache publisher requires the cache source", ErrInvalid, i)
			}
		case types.PublisherEventBridge:
			if p.EventBusName == "" {
				return fmt.Errorf("%w: publishers[%d]: eventBusName is required", ErrInvalid, i)
			}
		case types.PublisherHub:
			if cfg.Server == nil {
				return fmt.Errorf("%w: publishers[%d]: hub publisher requires server", ErrInvalid, i)
			}
		default:
			return fmt.Errorf("%w: publishers[%d]: unknown type %q", ErrInvalid, i, p.Type)
		}
	}

	names := make(map[string]bool, len(cfg.Notifiers))
	for i, n := range cfg.Notifiers {
		if n.Name == "" {
			return fmt.Errorf("%w: notifiers[%d]: name is required", ErrInvalid, i)
		}
		if names[n.Name] {
			return fmt.Errorf("%w: notifiers[%d]: duplicate name %q", ErrInvalid, i, n.Name)
		}
		names[n.Name] = true
		if err := validateNotifier(n); err != nil {
			return fmt.Errorf("%w: notifiers[%d]: %w", ErrInvalid, i, err)
		}
	}
	for channel, members := range cfg.Channels {
		for _, m := range members {
			if !names[m] {
				return fmt.Errorf("%w: channel %q references unknown notifier %q", ErrInvalid, channel, m)
			}
		}
	}

	switch cfg.Journal.Type {
	case types.JournalNone, types.JournalMemory:
	case types.JournalDynamoDB:
		if cfg.Journal.TableName == "" {
			return fmt.Errorf("%w: journal.tableName is required for dynamodb", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: journal: unknown type %q", ErrInvalid, cfg.Journal.Type)
	}

	if cfg.Server != nil && cfg.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalid)
	}
	if cfg.Observability != nil && cfg.Observability.Endpoint == "" {
		return fmt.Errorf("%w: observability.endpoint is required", ErrInvalid)
	}
	return nil
}

func validateSource(s types.SourceConfig) error {
	switch s.Type {
	case types.SourceCache:
	case types.SourceMQTT:
		if s.Broker == "" {
			return fmt.Errorf("%w: source.broker is required for mqtt", ErrInvalid)
		}
	case types.SourceSQS:
		if s.QueueURL == "" {
			return fmt.Errorf("%w: source.queueUrl is required for sqs", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: source: unknown type %q", ErrInvalid, s.Type)
	}
	return validDuration("source.reconnectDelay", s.ReconnectDelay)
}

func validateNotifier(n types.NotifierConfig) error {
	if err := validDuration("minInterval", n.MinInterval); err != nil {
		return err
	}
	switch n.Type {
	case types.NotifierConsole:
	case types.NotifierFile:
		if n.Path == "" {
			return fmt.Errorf("path is required")
		}
	case types.NotifierMattermost, types.NotifierSMS:
		if n.URL == "" {
			return fmt.Errorf("url is required")
		}
	case types.NotifierTelegram:
		if n.Token == "" || n.ChatID == "" {
			return fmt.Errorf("token and chatId are required")
		}
	case types.NotifierMailer:
		if n.Host == "" || n.Sender == "" {
			return fmt.Errorf("host and sender are required")
		}
	case types.NotifierCloudWatch:
		if n.LogGroup == "" {
			return fmt.Errorf("logGroup is required")
		}
	default:
		return fmt.Errorf("unknown type %q", n.Type)
	}
	return nil
}

func validDuration(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.ParseDuration(v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, field, err)
	}
	return nil
}

// TickInterval returns the parsed tick interval; Load has validated it.
func TickInterval(cfg *types.ProjectConfig) time.Duration {
	d, err := time.ParseDuration(cfg.TickInterval)
	if err != nil || d <= 0 {
		return engine.DefaultTickInterval
	}
	return d
}

// ParseLevel maps a logLevel setting to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: logLevel %q", ErrInvalid, s)
	}
	return l, nil
}
