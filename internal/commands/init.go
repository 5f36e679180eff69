package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/tripwire/internal/config"
)

const starterConfig = `name: %s
logLevel: info
keyPrefix: nicos/
source:
  type: cache
  addr: localhost:14869
publishers:
  - type: cache
  - type: hub
notifiers:
  - name: console
    type: console
    minInterval: 0s
  - name: log
    type: file
    path: ./watchdog-notifications.jsonl
channels:
  "": [console, log]
server:
  addr: ":3000"
watchFiles:
  - watch/example.yaml
`

const starterWatch = `# Each entry raises a warning when its condition stays true for gracetime seconds.
- condition: t_value > 100
  message: Sample temperature above 100 K
  gracetime: 10
  scriptaction: pausecount
  okmessage: Sample temperature back to normal

- condition: t_status[0] == error
  message: Temperature controller in error state
  precondition: t_setpoint > 0
`

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter tripwire.yaml and watch list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir)
		},
	}
}

func runInit(dir string) error {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Initializing tripwire in %s\n", dir)

	configPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(filepath.Join(dir, "watch"), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	name := filepath.Base(filepath.Clean(dir))
	if name == "." || name == string(filepath.Separator) {
		name = "tripwire"
	}
	if err := os.WriteFile(configPath, []byte(fmt.Sprintf(starterConfig, name)), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "watch", "example.yaml"), []byte(starterWatch), 0o644); err != nil {
		return fmt.Errorf("writing watch list: %w", err)
	}

	color.Green("  ✓ Configuration written")
	fmt.Println()
	_, _ = bold.Println("Next steps:")
	fmt.Printf("  tripwire check --config %s\n", dir)
	fmt.Printf("  tripwire serve --config %s\n", dir)
	return nil
}
