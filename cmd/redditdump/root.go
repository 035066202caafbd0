package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/redditdump/internal/config"
)

// NewRootCmd creates the root command for redditdump.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redditdump [community]",
		Short: "Archive a subreddit's top posts and all their comments to SQLite",
		Long: `redditdump fetches the complete all-time top listing of a subreddit and the
complete comment tree of every listed post, and stores both as the tables
"posts" and "comments" in <data-dir>/<community>.sqlite. Every run replaces
the previous snapshot.

Credentials of a Reddit "script" app are read from credentials.yaml in the
current directory, or from the XDG config directory, and can be overridden
with REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET and REDDIT_USER_AGENT.

Examples:
  # Archive r/poverty into data/poverty.sqlite
  redditdump

  # Archive another community
  redditdump AskEconomics

  # Use an explicit credentials file and data directory
  redditdump -c ~/reddit.yaml -d /srv/archive poverty

Credentials file example:
  client_id: "abc123"
  client_secret: "s3cr3t"
  user_agent: "linux:redditdump:v1.0 (by /u/yourname)"`,
		Args:          cobra.MaximumNArgs(1),
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRootCmd,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.Flags().StringP("name", "n", config.DefaultCommunity,
		"Community (subreddit) to archive; a positional argument takes precedence")
	cmd.Flags().StringP("credentials", "c", "",
		"Credentials file path (default: ./credentials.yaml or the XDG config directory)")
	cmd.Flags().StringP("data-dir", "d", config.DefaultDataDir,
		"Directory that receives <community>.sqlite")
	cmd.Flags().Duration("ratelimit", config.DefaultRateLimitBudget,
		"Total time the run may wait on Reddit's rate limit")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each API request")

	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
