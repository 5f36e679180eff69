// Package commands implements the CLI subcommands for the tripwire binary.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dwsmith1983/tripwire/internal/config"
	"github.com/dwsmith1983/tripwire/internal/secrets"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// newLogger builds the process logger. The daemon logs JSON, the
// interactive commands plain text.
func newLogger(w io.Writer, level string, json bool) *slog.Logger {
	l, err := config.ParseLevel(level)
	if err != nil {
		l = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: l}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// channelSet answers channel lookups from the configuration without
// building any notifier.
type channelSet map[string]bool

func newChannelSet(cfg *types.ProjectConfig) channelSet {
	s := channelSet{"": true}
	for name := range cfg.Channels {
		s[name] = true
	}
	return s
}

func (s channelSet) Dispatch(string, types.Notification) {}
func (s channelSet) HasChannel(c string) bool           { return s[c] }
func (s channelSet) UpdateReceivers([]string) int       { return 0 }

// needsAWS reports whether any configured component talks to AWS.
func needsAWS(cfg *types.ProjectConfig) bool {
	if cfg.AWS != nil || cfg.Source.Type == types.SourceSQS || cfg.Journal.Type == types.JournalDynamoDB {
		return true
	}
	for _, p := range cfg.Publishers {
		if p.Type == types.PublisherEventBridge {
			return true
		}
	}
	for _, n := range cfg.Notifiers {
		if n.Type == types.NotifierCloudWatch || secrets.NeedsSecretsManager(n.URL, n.Token, n.Password) {
			return true
		}
	}
	return cfg.Server != nil && secrets.NeedsSecretsManager(cfg.Server.APIKey)
}

// parseAssignment splits a key=value command-line argument.
func parseAssignment(arg string) (string, string, error) {
	key, value, ok := strings.Cut(arg, "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", arg)
	}
	return key, value, nil
}
