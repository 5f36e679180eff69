package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// ConsoleNotifier writes notifications to the terminal with color.
type ConsoleNotifier struct {
	name string
	out  io.Writer
}

// NewConsoleNotifier creates a console notifier writing to stdout.
func NewConsoleNotifier(name string) *ConsoleNotifier {
	if name == "" {
		name = "console"
	}
	return &ConsoleNotifier{name: name, out: os.Stdout}
}

// Name returns the notifier identifier.
func (c *ConsoleNotifier) Name() string { return c.name }

// Send writes the notification with an importance-coded prefix.
func (c *ConsoleNotifier) Send(_ context.Context, n types.Notification) error {
	prefix := color.YellowString("[WARN]")
	if n.Important {
		prefix = color.RedString("[ALERT]")
	}
	_, err := fmt.Fprintf(c.out, "%s %s: %s\n", prefix, n.Subject, n.Body)
	return err
}
