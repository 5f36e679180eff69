package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

const statusTimeout = 10 * time.Second

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var (
		url    string
		apiKey string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the open warnings of a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
			defer cancel()
			return runStatus(ctx, cmd.OutOrStdout(), strings.TrimSuffix(url, "/"), apiKey)
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:3000", "status server base URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "status server API key")
	return cmd
}

func getJSON(ctx context.Context, url, apiKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("querying %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("querying %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func runStatus(ctx context.Context, w io.Writer, base, apiKey string) error {
	var warnings []types.WarningView
	if err := getJSON(ctx, base+"/api/warnings", apiKey, &warnings); err != nil {
		return err
	}
	var pause struct {
		Reasons []string `json:"reasons"`
	}
	if err := getJSON(ctx, base+"/api/pausecount", apiKey, &pause); err != nil {
		return err
	}

	bold := color.New(color.Bold)
	if len(warnings) == 0 {
		_, _ = color.New(color.FgGreen).Fprintln(w, "No open warnings")
	} else {
		_, _ = bold.Fprintf(w, "Open warnings (%d)\n", len(warnings))
		for _, wv := range warnings {
			if wv.Real {
				_, _ = color.New(color.FgRed).Fprintf(w, "  ✗ %s\n", wv.Description)
			} else {
				_, _ = color.New(color.FgYellow).Fprintf(w, "  ○ %s\n", wv.Description)
			}
		}
	}
	if len(pause.Reasons) > 0 {
		_, _ = color.New(color.FgYellow).Fprintf(w, "Counting paused: %s\n", strings.Join(pause.Reasons, ", "))
	}
	return nil
}
