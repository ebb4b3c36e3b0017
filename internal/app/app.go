// Package app wires configuration, storage, and the crawl engine into a single run.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-crawler/internal/clock/system"
	"github.com/JakeFAU/jobboard-crawler/internal/config"
	"github.com/JakeFAU/jobboard-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/jobboard-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/jobboard-crawler/internal/hash/sha256"
	"github.com/JakeFAU/jobboard-crawler/internal/id/uuid"
	"github.com/JakeFAU/jobboard-crawler/internal/metrics"
	"github.com/JakeFAU/jobboard-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/jobboard-crawler/internal/storage/gcs"
	"github.com/JakeFAU/jobboard-crawler/internal/storage/local"
	"github.com/JakeFAU/jobboard-crawler/internal/storage/memory"
	"github.com/JakeFAU/jobboard-crawler/internal/storage/postgres"
)

const artifactContentType = "application/json"

// App holds the services used by one crawl run.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  crawler.Clock
	runID  string

	artifacts crawler.ArtifactStore
	records   crawler.RecordSink
	notifier  crawler.Notifier
	metrics   *metrics.Server

	closers []func(context.Context) error
}

// Option overrides a service New would otherwise build from config.
type Option func(*App)

// WithArtifactStore replaces the configured output backend.
func WithArtifactStore(store crawler.ArtifactStore) Option {
	return func(a *App) { a.artifacts = store }
}

// WithRecordSink replaces the Postgres sink.
func WithRecordSink(sink crawler.RecordSink) Option {
	return func(a *App) { a.records = sink }
}

// WithNotifier replaces the Pub/Sub notifier.
func WithNotifier(n crawler.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// WithClock replaces the wall clock.
func WithClock(c crawler.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithRunID uses a caller-supplied run id instead of generating one.
func WithRunID(id string) Option {
	return func(a *App) { a.runID = id }
}

// New builds the services named by cfg. Optional services (Postgres, Pub/Sub,
// the metrics listener) are only started when configured.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	if a.clock == nil {
		a.clock = system.New()
	}
	if a.runID == "" {
		id, err := uuid.New().NewID()
		if err != nil {
			return nil, err
		}
		a.runID = id
	}
	a.logger = a.logger.With(zap.String("run_id", a.runID))

	if err := a.init(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	if a.artifacts == nil {
		store, err := a.buildArtifactStore(ctx)
		if err != nil {
			return err
		}
		a.artifacts = store
	}

	if a.records == nil && a.cfg.DB.DSN != "" {
		store, err := postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
			DSN:       a.cfg.DB.DSN,
			Table:     a.cfg.DB.Table,
			RunsTable: a.cfg.DB.RunsTable,
			MaxConns:  a.cfg.DB.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("init postgres: %w", err)
		}
		a.records = store
		a.closers = append(a.closers, func(context.Context) error {
			store.Close()
			return nil
		})
		a.logger.Info("postgres record sink enabled", zap.String("table", a.cfg.DB.Table))
	}

	if a.notifier == nil && a.cfg.PubSub.TopicName != "" {
		pub, err := pubsub.New(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
		if err != nil {
			return fmt.Errorf("init pubsub: %w", err)
		}
		a.notifier = pub
		a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
		a.logger.Info("pubsub notifier enabled", zap.String("topic", a.cfg.PubSub.TopicName))
	}

	if a.cfg.Metrics.Addr != "" {
		srv, err := metrics.Listen(a.cfg.Metrics.Addr, a.logger.Named("metrics"))
		if err != nil {
			return fmt.Errorf("init metrics server: %w", err)
		}
		a.metrics = srv
		a.closers = append(a.closers, srv.Close)
	}
	return nil
}

func (a *App) buildArtifactStore(ctx context.Context) (crawler.ArtifactStore, error) {
	switch a.cfg.Output.Backend {
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Output.GCSBucket, Prefix: a.cfg.Output.Prefix})
		if err != nil {
			return nil, err
		}
		return store.WithMetadata(map[string]string{
			"run_id":    a.runID,
			"job_title": a.cfg.Crawler.JobTitle,
		}), nil
	case config.BackendMemory:
		return memory.NewBlobStore(), nil
	default:
		store, err := local.New(local.Config{BaseDir: a.cfg.Output.Dir})
		if err != nil {
			return nil, fmt.Errorf("init local output: %w", err)
		}
		return store, nil
	}
}

// RunID returns the id attached to this run's logs, artifact and notification.
func (a *App) RunID() string {
	return a.runID
}

// MetricsAddr returns the metrics listener address, or "" when disabled.
func (a *App) MetricsAddr() string {
	if a.metrics == nil {
		return ""
	}
	return a.metrics.Addr()
}

// Run crawls every configured state, writes the JSON artifact, and then feeds
// the optional sinks. The artifact is written even when ctx is canceled
// mid-crawl; sink and notification failures are logged but not returned.
func (a *App) Run(ctx context.Context) (crawler.RunReport, error) {
	crawlCfg := a.cfg.Crawler
	engine, err := collyfetcher.New(collyfetcher.Config{
		UserAgent:      crawlCfg.UserAgent,
		Parallelism:    crawlCfg.Parallelism,
		Delay:          crawlCfg.Delay(),
		RequestTimeout: crawlCfg.RequestTimeout(),
		AllowRevisit:   crawlCfg.AllowRevisit,
		MaxBodySize:    crawlCfg.MaxBodyBytes,
	}, a.logger.Named("fetcher"))
	if err != nil {
		return crawler.RunReport{RunID: a.runID}, fmt.Errorf("init engine: %w", err)
	}

	results := memory.NewResultStore()
	orch := crawler.NewOrchestrator(engine, results, a.cfg.Selectors, a.clock, a.logger.Named("orchestrator"))
	seeds := crawler.Seeds(crawlCfg.BaseURL, crawlCfg.JobTitle, crawlCfg.States)

	a.logger.Info("crawl starting",
		zap.String("job_title", crawlCfg.JobTitle),
		zap.Int("seeds", len(seeds)),
		zap.String("base_url", crawlCfg.BaseURL),
	)
	report, err := orch.Run(ctx, seeds)
	report.RunID = a.runID
	if err != nil {
		return report, fmt.Errorf("run crawl: %w", err)
	}

	// Output and sinks must complete even if the crawl itself was canceled.
	outCtx := context.WithoutCancel(ctx)

	var buf bytes.Buffer
	if err := results.Serialize(&buf); err != nil {
		return report, fmt.Errorf("serialize results: %w", err)
	}
	name := crawler.OutputFilename(crawlCfg.JobTitle, a.cfg.Output.Suffix)
	body := sha256.Reader(&buf)
	uri, err := a.artifacts.PutObject(outCtx, name, artifactContentType, body)
	if err != nil {
		return report, fmt.Errorf("write artifact %s: %w", name, err)
	}
	report.ArtifactURI = uri
	report.ArtifactSHA256 = body.Sum()
	report.ArtifactBytes = body.Size()
	a.logger.Info("results written",
		zap.String("uri", uri),
		zap.Int("postings", results.Len()),
		zap.Stringer("checksum", body),
		zap.Int64("bytes", body.Size()),
	)

	if a.records != nil {
		if err := a.records.StoreRecords(outCtx, a.runID, results.Records()); err != nil {
			a.logger.Error("failed to persist records", zap.Error(err))
		}
		if err := a.records.StoreRun(outCtx, report); err != nil {
			a.logger.Error("failed to persist run summary", zap.Error(err))
		}
	}
	if a.notifier != nil {
		id, err := a.notifier.Publish(outCtx, report)
		if err != nil {
			a.logger.Error("failed to publish run report", zap.Error(err))
		} else {
			a.logger.Info("run report published", zap.String("message_id", id))
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		a.logger.Warn("crawl was canceled; results are partial")
	}
	return report, nil
}

// Close releases every service New started, in reverse order.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}
