// Package engine implements the watchdog: it routes telemetry updates to the
// condition trees of the configured watch entries, detects warning state
// transitions and emits warnings, clears and actions.
package engine

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dwsmith1983/tripwire/internal/action"
	"github.com/dwsmith1983/tripwire/internal/condition"
	"github.com/dwsmith1983/tripwire/internal/expr"
	"github.com/dwsmith1983/tripwire/internal/journal"
	"github.com/dwsmith1983/tripwire/internal/metrics"
	"github.com/dwsmith1983/tripwire/internal/publish"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// Defaults for the reserved keys.
const (
	DefaultKeyPrefix = "nicos/"
	DefaultSetupKey  = "session/mastersetup"
)

// Notifier routes notifications to channel groups.
type Notifier interface {
	Dispatch(channel string, n types.Notification)
	HasChannel(channel string) bool
	UpdateReceivers(receivers []string) int
}

// Entry is one accepted watch entry with its compiled condition tree.
type Entry struct {
	ID     string
	Config types.WatchConfig
	Cond   condition.Condition
}

// Rejection records a watch entry that was skipped at construction.
type Rejection struct {
	Index     int    `json:"index"`
	Condition string `json:"condition"`
	Reason    string `json:"reason"`
}

// warning is one open warning record.
type warning struct {
	real bool
	desc string
}

// Options configures an Engine. Nil collaborators are replaced by no-ops.
type Options struct {
	KeyPrefix       string
	SetupKey        string
	MailReceiverKey string
	Notifier        Notifier
	Publisher       publish.Publisher
	Runner          action.Runner
	Journal         journal.Journal
	Logger          *slog.Logger
	Clock           func() time.Time
}

// Engine owns the watch entries and all warning bookkeeping. Mutation
// happens under mu from a single processing path; snapshot readers take the
// read lock.
type Engine struct {
	prefix     string
	setupKey   string
	mailKey    string
	notifier   Notifier
	publisher  publish.Publisher
	runner     action.Runner
	journal    journal.Journal
	logger     *slog.Logger
	now        func() time.Time
	actionsCtx context.Context

	mu         sync.RWMutex
	entries    []*Entry
	byID       map[string]*Entry
	keymap     map[string][]*Entry
	keydict    expr.Map
	warnings   *ordered[warning]
	pausecount *ordered[string]
	setups     []string
	rejected   []Rejection
}

// New builds an engine from the watch list. Invalid entries are logged,
// recorded as rejections and skipped; New never fails.
func New(watch []types.WatchConfig, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	if opts.SetupKey == "" {
		opts.SetupKey = DefaultSetupKey
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Publisher == nil {
		opts.Publisher = publish.Multi(nil)
	}
	if opts.Journal == nil {
		opts.Journal = journal.Noop{}
	}

	e := &Engine{
		prefix:     opts.KeyPrefix,
		setupKey:   NormalizeKey(opts.KeyPrefix, opts.SetupKey),
		notifier:   opts.Notifier,
		publisher:  opts.Publisher,
		runner:     opts.Runner,
		journal:    opts.Journal,
		logger:     opts.Logger,
		now:        opts.Clock,
		actionsCtx: context.Background(),
		byID:       make(map[string]*Entry),
		keymap:     make(map[string][]*Entry),
		keydict:    make(expr.Map, len(types.StatusConstants)),
		warnings:   newOrdered[warning](),
		pausecount: newOrdered[string](),
	}
	if opts.MailReceiverKey != "" {
		e.mailKey = NormalizeKey(opts.KeyPrefix, opts.MailReceiverKey)
	}
	for name, v := range types.StatusConstants {
		e.keydict[name] = v
	}

	for i, w := range watch {
		e.add(i, w)
	}
	e.logger.Info("watchdog: engine ready", "entries", len(e.entries), "rejected", len(e.rejected))
	return e
}

func (e *Engine) add(i int, w types.WatchConfig) {
	if w.Condition == "" {
		e.reject(i, w, "missing condition", slog.LevelWarn)
		return
	}
	if w.Message == "" {
		e.reject(i, w, "missing message", slog.LevelWarn)
		return
	}
	if !w.ScriptAction.Valid() {
		e.logger.Warn("watchdog: invalid scriptaction, ignoring it",
			"condition", w.Condition, "scriptaction", w.ScriptAction)
		w.ScriptAction = types.ScriptActionNone
	}
	if !e.notifier.HasChannel(w.Type) {
		e.reject(i, w, "unknown notifier type "+w.Type, slog.LevelError)
		return
	}

	cond, err := condition.Build(w, e.logger)
	if err != nil {
		e.reject(i, w, err.Error(), slog.LevelError)
		return
	}

	id := EntryID(w)
	if _, dup := e.byID[id]; dup {
		e.reject(i, w, "duplicate entry", slog.LevelError)
		return
	}

	entry := &Entry{ID: id, Config: w, Cond: cond}
	e.entries = append(e.entries, entry)
	e.byID[id] = entry
	for _, key := range cond.Keys() {
		e.keymap[key] = append(e.keymap[key], entry)
	}
}

func (e *Engine) reject(i int, w types.WatchConfig, reason string, level slog.Level) {
	metrics.EntriesRejected.Add(1)
	e.rejected = append(e.rejected, Rejection{Index: i, Condition: w.Condition, Reason: reason})
	e.logger.Log(context.Background(), level, "watchdog: rejecting watch entry",
		"index", i, "condition", w.Condition, "reason", reason)
}

// EntryID derives the identity of a watch entry from its setup scope,
// condition and precondition.
func EntryID(w types.WatchConfig) string {
	sum := sha1.Sum([]byte(w.Setup + "|" + w.Condition + "|" + w.Precondition))
	return hex.EncodeToString(sum[:8])
}

// NormalizeKey maps a bus key to a namespace name: the prefix is stripped,
// path separators become underscores and the result is lower-cased.
func NormalizeKey(prefix, key string) string {
	key = strings.TrimPrefix(key, prefix)
	return strings.ToLower(strings.ReplaceAll(key, "/", "_"))
}

type nopNotifier struct{}

func (nopNotifier) Dispatch(string, types.Notification) {}
func (nopNotifier) HasChannel(c string) bool           { return c == "" }
func (nopNotifier) UpdateReceivers([]string) int       { return 0 }
