package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/tripwire/internal/config"
	"github.com/dwsmith1983/tripwire/internal/engine"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// NewCheckCmd creates the check command.
func NewCheckCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and compile every watch entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runCheck(cmd.OutOrStdout(), cfg)
		},
	}
}

// checkEngine builds an engine with no side effects so that every entry
// goes through the same validation as in the daemon.
func checkEngine(cfg *types.ProjectConfig) *engine.Engine {
	return engine.New(cfg.Watch, engine.Options{
		KeyPrefix:       cfg.KeyPrefix,
		SetupKey:        cfg.SetupKey,
		MailReceiverKey: cfg.MailReceiverKey,
		Notifier:        newChannelSet(cfg),
		Logger:          newLogger(os.Stderr, "error", false),
	})
}

func runCheck(w io.Writer, cfg *types.ProjectConfig) error {
	eng := checkEngine(cfg)
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	_, _ = bold.Fprintf(w, "Watch entries (%d accepted)\n", len(eng.Entries()))
	for _, e := range eng.Entries() {
		_, _ = green.Fprintf(w, "  ✓ %s", e.Condition)
		if e.Setup != "" {
			fmt.Fprintf(w, "  [setup: %s]", e.Setup)
		}
		if e.Type != "" {
			fmt.Fprintf(w, "  [type: %s]", e.Type)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "      keys: %s\n", strings.Join(e.Keys, ", "))
	}

	rejected := eng.Rejected()
	if len(rejected) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	_, _ = bold.Fprintf(w, "Rejected entries (%d)\n", len(rejected))
	for _, r := range rejected {
		_, _ = red.Fprintf(w, "  ✗ #%d %q: %s\n", r.Index, r.Condition, r.Reason)
	}
	return fmt.Errorf("%d watch entries rejected", len(rejected))
}
