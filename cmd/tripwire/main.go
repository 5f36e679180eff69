package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/tripwire/internal/commands"
)

var version = "dev"

func main() {
	var configDir string

	root := &cobra.Command{
		Use:   "tripwire",
		Short: "Watchdog daemon for instrument telemetry",
		Long: `Tripwire evaluates operator-written conditions against a live stream of
instrument telemetry. Conditions that stay true past their grace time raise
warnings, notify the configured channels, pause counting or run actions.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configDir, "config", "c", "",
		"directory containing tripwire.yaml (default $TRIPWIRE_CONFIG_DIR or .)")

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewCheckCmd(&configDir),
		commands.NewEvalCmd(),
		commands.NewStatusCmd(),
		commands.NewServeCmd(&configDir),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
