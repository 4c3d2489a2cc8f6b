package cmd

import (
	"github.com/spf13/cobra"
)

// New creates the root command with all subcommands registered.
func New() *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:   "reva",
		Short: "AI-assisted pull request review orchestrator",
		Long: `Reva tracks the open pull requests you are asked to review, runs an
AI analysis tool against each one, and turns the tool's free-form output
into a structured review with line-anchored comments.`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	addGlobalFlags(rootCmd, opts)

	rootCmd.AddCommand(NewCmdReview(opts))
	rootCmd.AddCommand(NewCmdList(opts))
	rootCmd.AddCommand(NewCmdServe(opts))
	rootCmd.AddCommand(NewCmdConfig())
	rootCmd.AddCommand(NewCmdVersion())

	return rootCmd
}

// addGlobalFlags registers the flags shared by every subcommand.
func addGlobalFlags(cmd *cobra.Command, opts *Options) {
	cmd.PersistentFlags().CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")
}
