package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/reva-dev/reva/config"
	"github.com/reva-dev/reva/internal/agent"
	"github.com/reva-dev/reva/internal/api"
	"github.com/reva-dev/reva/internal/github"
	"github.com/reva-dev/reva/internal/items"
	"github.com/reva-dev/reva/internal/log"
	"github.com/reva-dev/reva/internal/model"
	"github.com/reva-dev/reva/internal/orchestrator"
	"github.com/reva-dev/reva/internal/prompt"
	"github.com/reva-dev/reva/internal/review"
)

// NewCmdServe creates the serve command.
func NewCmdServe(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the review engine as a local service",
		Long: `Run the review engine as a local service.

The service polls the configured organization for open pull requests,
tracks which ones need your attention, and exposes an HTTP API for
starting, watching, and cancelling AI reviews.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "API listen address (default from config)")
	cmd.Flags().StringVar(&opts.PollInterval, "poll-interval", "", "How often to refresh the working set (e.g. 2m)")
	cmd.Flags().BoolVar(&opts.NoPoll, "no-poll", false, "Disable the background poll loop")

	return cmd
}

func runServe(ctx context.Context, opts *Options) error {
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

	settings, err := resolveAgentSettings(cfg, opts)
	if err != nil {
		return err
	}

	interval, err := resolvePollInterval(cfg, opts)
	if err != nil {
		return err
	}

	client, err := github.NewClient(ctx, cfg.GetGitHubToken(), cfg.Org)
	if err != nil {
		return err
	}

	builder, err := prompt.NewBuilder(cfg.GetPromptAddons(), cfg.GetPromptContext())
	if err != nil {
		return err
	}

	itemStore := items.NewStore()
	reviewStore := review.NewStore()
	executor := agent.NewExecutor(settings.KillGrace)
	orch := orchestrator.New(client, executor, reviewStore, builder, agent.Config{
		Tool:    settings.Tool,
		Model:   settings.Model,
		Timeout: settings.Timeout,
	})
	engine := orchestrator.NewEngine(itemStore, reviewStore, orch, client)

	// Prime the working set before accepting requests.
	if delta, err := engine.PollNow(ctx); err != nil {
		log.Warn("initial sync failed", "error", err)
	} else {
		log.Info("working set primed", "items", itemStore.Count(), "added", len(delta.Added))
	}

	if !opts.NoPoll {
		if err := engine.StartPolling(interval, announceNewItems); err != nil {
			return err
		}
		defer engine.StopPolling()
		log.Info("polling started", "org", cfg.Org, "interval", interval.String())
	}

	listen := cfg.GetListen()
	if opts.Listen != "" {
		listen = opts.Listen
	}

	return api.NewServer(engine).ListenAndServe(ctx, listen)
}

// resolvePollInterval merges the command-line override on top of the config.
func resolvePollInterval(cfg *config.Config, opts *Options) (time.Duration, error) {
	if opts.PollInterval != "" {
		d, err := time.ParseDuration(opts.PollInterval)
		if err != nil {
			return 0, fmt.Errorf("invalid --poll-interval %q: %w", opts.PollInterval, err)
		}
		return d, nil
	}
	return cfg.GetPollInterval()
}

// announceNewItems logs items that entered the working set.
func announceNewItems(added []model.ItemState) {
	for i := range added {
		st := &added[i]
		log.Info("new pull request",
			"item", st.Item.ID(),
			"title", st.Item.Title,
			"attention", st.NeedsReviewerAttention)
	}
}
