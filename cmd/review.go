package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reva-dev/reva/config"
	"github.com/reva-dev/reva/internal/agent"
	"github.com/reva-dev/reva/internal/github"
	"github.com/reva-dev/reva/internal/log"
	"github.com/reva-dev/reva/internal/orchestrator"
	"github.com/reva-dev/reva/internal/output"
	"github.com/reva-dev/reva/internal/prompt"
	"github.com/reva-dev/reva/internal/review"
)

// NewCmdReview creates the review command.
func NewCmdReview(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review <owner/repo#number>",
		Short: "Run an AI review against one pull request",
		Long: `Run an AI review against one pull request and print the result.

The pull request is given as owner/repo#number, e.g.:
  reva review acme/widgets#42

With --publish the finished review is posted back to the pull request;
issues that map onto changed lines become inline comments.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Tool, "tool", "", "Analysis tool binary (default from config)")
	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "Model identifier passed to the analysis tool")
	cmd.Flags().StringSliceVar(&opts.Addons, "focus", nil, "Prompt add-ons (security, performance, tests)")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "Post the review back to the pull request")
	cmd.Flags().StringVarP(&opts.Format, "output", "o", "text", "Output format (text, json)")

	return cmd
}

func runReview(ctx context.Context, ref string, opts *Options) error {
	log.Initialize(opts.Verbosity, os.Stderr)

	owner, repo, number, err := parseItemRef(ref)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	settings, err := resolveAgentSettings(cfg, opts)
	if err != nil {
		return err
	}

	client, err := github.NewClient(ctx, cfg.GetGitHubToken(), cfg.Org)
	if err != nil {
		return err
	}

	item, err := client.GetItem(ctx, owner, repo, number)
	if err != nil {
		return err
	}

	addons := opts.Addons
	if len(addons) == 0 {
		addons = cfg.GetPromptAddons()
	}
	builder, err := prompt.NewBuilder(addons, cfg.GetPromptContext())
	if err != nil {
		return err
	}

	reviewStore := review.NewStore()
	executor := agent.NewExecutor(settings.KillGrace)
	orch := orchestrator.New(client, executor, reviewStore, builder, agent.Config{
		Tool:    settings.Tool,
		Model:   settings.Model,
		Timeout: settings.Timeout,
	})

	log.Info("reviewing", "item", item.ID(), "tool", settings.Tool)

	result, err := orch.Run(ctx, &item)
	if err != nil {
		return err
	}

	st, _ := reviewStore.Get(item.ID())

	switch opts.Format {
	case "json":
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal review: %w", err)
		}
		fmt.Println(string(data))
	case "text":
		output.PrintReview(os.Stdout, &item, &st)
	default:
		return fmt.Errorf("invalid format: %s (must be text or json)", opts.Format)
	}

	if opts.Publish {
		if err := client.PublishReview(ctx, owner, repo, number, result.Review, result.Annotations); err != nil {
			return err
		}
		fmt.Printf("\nReview published to %s\n", item.HTMLURL)
	}

	return nil
}

// resolveAgentSettings merges command-line overrides on top of the config.
func resolveAgentSettings(cfg *config.Config, opts *Options) (config.AgentSettings, error) {
	settings, err := cfg.GetAgentSettings()
	if err != nil {
		return settings, err
	}
	if opts.Tool != "" {
		settings.Tool = opts.Tool
	}
	if opts.Model != "" {
		settings.Model = opts.Model
	}
	return settings, nil
}

// parseItemRef parses an "owner/repo#number" pull request reference.
func parseItemRef(ref string) (owner, repo string, number int, err error) {
	slash := strings.Index(ref, "/")
	hash := strings.LastIndex(ref, "#")
	if slash <= 0 || hash <= slash+1 || hash == len(ref)-1 {
		return "", "", 0, fmt.Errorf("invalid reference %q (expected owner/repo#number)", ref)
	}

	owner = ref[:slash]
	repo = ref[slash+1 : hash]
	number, err = strconv.Atoi(ref[hash+1:])
	if err != nil || number <= 0 {
		return "", "", 0, fmt.Errorf("invalid pull request number in %q", ref)
	}

	return owner, repo, number, nil
}
