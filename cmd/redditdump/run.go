package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nao1215/redditdump/internal/config"
	"github.com/nao1215/redditdump/internal/database"
	securelog "github.com/nao1215/redditdump/internal/log"
	"github.com/nao1215/redditdump/internal/model"
	"github.com/nao1215/redditdump/internal/pipeline"
	"github.com/nao1215/redditdump/internal/reddit"
)

// getenv looks up credential overrides.
var getenv = os.Getenv

// runRootCmd executes an archive run.
func runRootCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := securelog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.ClientSecret)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := runArchive(ctx, cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), result)
	return nil
}

// buildConfig creates a Config from cobra command flags, the credentials
// file and the environment.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.Community, err = cmd.Flags().GetString("name")
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Community = args[0]
	}

	cfg.CredentialsPath, err = cmd.Flags().GetString("credentials")
	if err != nil {
		return nil, err
	}

	cfg.DataDir, err = cmd.Flags().GetString("data-dir")
	if err != nil {
		return nil, err
	}

	cfg.RateLimitBudget, err = cmd.Flags().GetDuration("ratelimit")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	if err := cfg.LoadCredentials(getenv); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// runResult describes a finished run.
type runResult struct {
	Community string
	Posts     int
	Comments  int
	Path      string
	Digest    string
}

// runArchive authenticates, collects the snapshot and replaces the archive.
// Progress lines go to progress.
func runArchive(ctx context.Context, cfg *config.Config, logger *slog.Logger, progress io.Writer) (*runResult, error) {
	logger.Info("starting run",
		"community", cfg.Community,
		"archive", cfg.ArchivePath(),
		"ratelimit_budget", cfg.RateLimitBudget,
	)

	client, err := reddit.NewClient(ctx, reddit.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		UserAgent:    cfg.UserAgent,
	}, clientOptions(cfg, logger)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Reddit: %w", err)
	}

	archive, err := database.Open(cfg.DataDir, cfg.Community, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	p := pipeline.DefaultPipeline(client, archive,
		pipeline.WithLogger(logger),
		pipeline.WithProgress(progress),
	)
	snap := model.NewSnapshot(cfg.Community)
	if err := p.Execute(ctx, snap); err != nil {
		return nil, fmt.Errorf("run aborted, archive left unchanged: %w", err)
	}

	digest, err := archive.Digest(ctx)
	if err != nil {
		return nil, err
	}

	return &runResult{
		Community: cfg.Community,
		Posts:     len(snap.Posts),
		Comments:  len(snap.Comments),
		Path:      archive.Path(),
		Digest:    digest,
	}, nil
}

// clientOptions maps the configuration to API client options.
func clientOptions(cfg *config.Config, logger *slog.Logger) []reddit.Option {
	opts := []reddit.Option{
		reddit.WithTimeout(cfg.Timeout),
		reddit.WithRateLimitBudget(cfg.RateLimitBudget),
		reddit.WithLogger(logger),
	}
	if cfg.APIURL != "" {
		opts = append(opts, reddit.WithBaseURL(cfg.APIURL))
	}
	if cfg.TokenURL != "" {
		opts = append(opts, reddit.WithTokenURL(cfg.TokenURL))
	}
	if cfg.ProxyAddress != "" {
		opts = append(opts, reddit.WithSOCKS5Proxy(cfg.ProxyAddress))
	}
	return opts
}

// printSummary prints the result of a successful run.
// Color is dropped automatically when stdout is not a terminal.
func printSummary(w io.Writer, r *runResult) {
	fmt.Fprintln(w, color.New(color.Bold, color.FgHiGreen).Sprintf("Archived r/%s", r.Community))
	fmt.Fprintf(w, "  posts:    %d\n", r.Posts)
	fmt.Fprintf(w, "  comments: %d\n", r.Comments)
	fmt.Fprintf(w, "  file:     %s\n", r.Path)
	fmt.Fprintf(w, "  sha3-256: %s\n", r.Digest)
}
