package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-crawler/internal/app"
	"github.com/JakeFAU/jobboard-crawler/internal/config"
	"github.com/JakeFAU/jobboard-crawler/internal/id/uuid"
	"github.com/JakeFAU/jobboard-crawler/internal/logging"
)

func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the job board and writes the results document",
		Long: `Builds one search per state for the configured job title, follows
pagination, fetches each posting's description, and writes the merged
results to <job_title>_USA.json in the configured output backend.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCommand,
	}

	flags := cmd.Flags()
	flags.String("job-title", "", "job title to search for")
	flags.StringSlice("states", nil, "state codes to search (default: all 50 states and DC)")
	flags.String("base-url", "", "job board base url")
	flags.Int("parallelism", 0, "maximum concurrent requests")
	flags.String("output-dir", "", "directory for the local output backend")
	flags.String("backend", "", "output backend: local, gcs or memory")
	flags.String("metrics-addr", "", "serve /metrics and /healthz on this address during the crawl")
	flags.String("run-id", "", "use this UUID as the run id instead of generating one")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := logging.Build(cfg.Logging)
	if err != nil {
		return err
	}
	logger = logger.Named("jobcrawler")

	var opts []app.Option
	if raw, _ := cmd.Flags().GetString("run-id"); raw != "" {
		runID, err := uuid.Validate(raw)
		if err != nil {
			return err
		}
		opts = append(opts, app.WithRunID(runID))
	}

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger, opts...)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer a.Close(ctx)

	report, err := a.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("crawl command finished",
		zap.String("artifact", report.ArtifactURI),
		zap.Int("records", report.RecordsStored),
	)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d postings written to %s\n", report.RecordsStored-report.Overwrites, report.ArtifactURI)
	return err
}
