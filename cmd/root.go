// Package cmd defines the CLI commands for the jobcrawler executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobcrawler",
		Short: "Crawls a job board for one job title across US states.",
		Long: `jobcrawler searches a job board for a job title in every configured
state, follows each state's result pages, fetches every posting's detail
page, and writes all postings to a single JSON document.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "path to a config file (yaml, json or toml)")
	cmd.PersistentFlags().String("log-level", "", "minimum log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool("dev", false, "human-readable development logging")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newURLCmd())
	return cmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
