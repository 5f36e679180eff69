package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/tripwire/internal/action"
	"github.com/dwsmith1983/tripwire/internal/awsclient"
	"github.com/dwsmith1983/tripwire/internal/cacheproto"
	"github.com/dwsmith1983/tripwire/internal/config"
	"github.com/dwsmith1983/tripwire/internal/engine"
	"github.com/dwsmith1983/tripwire/internal/journal"
	"github.com/dwsmith1983/tripwire/internal/notify"
	"github.com/dwsmith1983/tripwire/internal/observability"
	"github.com/dwsmith1983/tripwire/internal/publish"
	"github.com/dwsmith1983/tripwire/internal/secrets"
	"github.com/dwsmith1983/tripwire/internal/server"
	"github.com/dwsmith1983/tripwire/internal/source"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

const (
	shutdownTimeout = 10 * time.Second
	updateBuffer    = 256
)

// NewServeCmd creates the serve command.
func NewServeCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the watchdog daemon",
		Long: `Connects to the telemetry source, evaluates every watch entry and emits
warnings, notifications and actions until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, *configDir)
		},
	}
}

// daemon holds everything serve wires together.
type daemon struct {
	cfg        *types.ProjectConfig
	logger     *slog.Logger
	aws        *awsclient.Factory
	cache      *cacheproto.Client
	dispatcher *notify.Dispatcher
	publishers publish.Multi
	closePubs  func()
	hub        *publish.Hub
	journal    *journal.Async
	runner     *action.ScriptRunner
	engine     *engine.Engine
	source     source.Source
	server     *server.Server
}

func runServe(ctx context.Context, dir string) error {
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(os.Stderr, cfg.LogLevel, true)
	slog.SetDefault(logger)

	shutdownOtel, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("setting up observability: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOtel(sctx); err != nil {
			logger.Warn("watchdog: observability shutdown failed", "error", err)
		}
	}()

	d, err := buildDaemon(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.close()
	return d.run(ctx)
}

func buildDaemon(ctx context.Context, cfg *types.ProjectConfig, logger *slog.Logger) (*daemon, error) {
	d := &daemon{cfg: cfg, logger: logger, closePubs: func() {}}

	if needsAWS(cfg) {
		f, err := awsclient.New(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		d.aws = f
	}

	var sm secrets.SecretsManagerAPI
	if d.aws != nil {
		sm = d.aws.SecretsManager()
	}
	resolver := secrets.NewResolver(sm)

	// Notifiers
	var cw notify.CloudWatchLogsAPI
	if d.aws != nil {
		cw = d.aws.CloudWatchLogs()
	}
	notifiers := make([]notify.Notifier, 0, len(cfg.Notifiers))
	for _, nc := range cfg.Notifiers {
		n, err := notify.New(ctx, nc, notify.Deps{Logger: logger, Secrets: resolver, CloudWatch: cw})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	dispatcher, err := notify.NewDispatcher(notifiers, cfg.Channels, notify.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating notification dispatcher: %w", err)
	}
	d.dispatcher = dispatcher

	// Telemetry source
	srcDeps := source.Deps{Logger: logger}
	switch cfg.Source.Type {
	case types.SourceCache:
		policy, err := source.ReconnectPolicy(cfg.Source)
		if err != nil {
			return nil, err
		}
		d.cache = cacheproto.NewClient(cfg.Source.Addr, cfg.KeyPrefix,
			cacheproto.WithLogger(logger), cacheproto.WithReconnectPolicy(policy))
		srcDeps.Cache = d.cache
	case types.SourceSQS:
		srcDeps.SQS = d.aws.SQS()
	}
	d.source, err = source.New(cfg.Source, cfg.KeyPrefix, srcDeps)
	if err != nil {
		return nil, fmt.Errorf("creating source: %w", err)
	}

	// Publishers
	if cfg.Server != nil {
		d.hub = publish.NewHub(logger)
	}
	pubDeps := publish.Deps{KeyPrefix: cfg.KeyPrefix, Hub: d.hub, Logger: logger}
	if d.cache != nil {
		pubDeps.Cache = d.cache
	}
	if d.aws != nil {
		pubDeps.EventBridge = d.aws.EventBridge()
	}
	d.publishers, d.closePubs, err = publish.Build(cfg.Publishers, pubDeps)
	if err != nil {
		return nil, fmt.Errorf("creating publishers: %w", err)
	}

	// Journal
	var ddb journal.DDBAPI
	if cfg.Journal.Type == types.JournalDynamoDB {
		ddb = d.aws.DynamoDB()
	}
	j, err := journal.New(cfg.Journal, cfg.Name, ddb)
	if err != nil {
		d.closePubs()
		return nil, fmt.Errorf("creating journal: %w", err)
	}
	d.journal = journal.NewAsync(j, 0, logger)

	d.runner = action.NewScriptRunner(cfg.Action, logger)
	d.engine = engine.New(cfg.Watch, engine.Options{
		KeyPrefix:       cfg.KeyPrefix,
		SetupKey:        cfg.SetupKey,
		MailReceiverKey: cfg.MailReceiverKey,
		Notifier:        d.dispatcher,
		Publisher:       d.publishers,
		Runner:          d.runner,
		Journal:         d.journal,
		Logger:          logger,
	})

	if cfg.Server != nil {
		apiKey, err := resolver.Resolve(ctx, cfg.Server.APIKey)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("resolving server apiKey: %w", err)
		}
		d.server = server.New(cfg.Server.Addr, d.engine, d.journal, d.hub, apiKey, logger)
	}
	return d, nil
}

// run drives the source, engine, stream hub and status server until ctx
// is cancelled or one of them fails.
func (d *daemon) run(ctx context.Context) error {
	updates := make(chan types.Update, updateBuffer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := d.source.Run(gctx, updates); err != nil {
			return fmt.Errorf("telemetry source: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return d.engine.Run(gctx, updates, config.TickInterval(d.cfg))
	})
	if d.hub != nil {
		g.Go(func() error {
			d.hub.Run(gctx)
			return nil
		})
	}
	if d.server != nil {
		g.Go(d.server.Start)
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return d.server.Stop(sctx)
		})
	}

	d.logger.Info("watchdog: started",
		"name", d.cfg.Name,
		"source", d.cfg.Source.Type,
		"entries", len(d.engine.Entries()),
		"rejected", len(d.engine.Rejected()),
	)
	err := g.Wait()
	d.logger.Info("watchdog: shutting down")
	return err
}

// close drains background work: queued publishes, in-flight
// notifications, running actions and journal writes.
func (d *daemon) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	d.closePubs()
	if err := d.dispatcher.Wait(ctx); err != nil {
		d.logger.Warn("watchdog: notifications still in flight at shutdown", "error", err)
	}
	if d.runner != nil {
		if err := d.runner.Wait(ctx); err != nil {
			d.logger.Warn("watchdog: actions still running at shutdown", "error", err)
		}
	}
	if d.journal != nil {
		if err := d.journal.Close(ctx); err != nil {
			d.logger.Warn("watchdog: journal flush failed", "error", err)
		}
	}
}
