package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reva-dev/reva/config"
	"github.com/reva-dev/reva/internal/github"
	"github.com/reva-dev/reva/internal/items"
	"github.com/reva-dev/reva/internal/log"
	"github.com/reva-dev/reva/internal/output"
)

// NewCmdList creates the list command.
func NewCmdList(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open pull requests in the configured organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "output", "o", "text", "Output format (text, json)")

	return cmd
}

func runList(ctx context.Context, opts *Options) error {
	log.Initialize(opts.Verbosity, os.Stderr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Org == "" {
		return fmt.Errorf("no organization configured. Set 'org' in your config file (run 'reva config init')")
	}

	client, err := github.NewClient(ctx, cfg.GetGitHubToken(), cfg.Org)
	if err != nil {
		return err
	}

	snapshot, attention, err := client.FetchOpenItems(ctx)
	if err != nil {
		return err
	}

	store := items.NewStore()
	store.Sync(snapshot, attention)
	states := store.List()

	switch opts.Format {
	case "json":
		data, err := json.MarshalIndent(states, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal items: %w", err)
		}
		fmt.Println(string(data))
	case "text":
		output.PrintItems(os.Stdout, states)
	default:
		return fmt.Errorf("invalid format: %s (must be text or json)", opts.Format)
	}

	return nil
}
