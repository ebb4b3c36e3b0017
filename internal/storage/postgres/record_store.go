// Package postgres persists crawl results to Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jobboard-crawler/internal/crawler"
)

const (
	defaultPostingsTable = "job_postings"
	defaultRunsTable     = "crawl_runs"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordStoreConfig controls the Postgres connection pool used for postings.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	RunsTable       string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore upserts job postings keyed by derived id.
type RecordStore struct {
	pool      pool
	table     string
	runsTable string
}

// NewRecordStore connects a pool using cfg.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewRecordStoreWithPool(p, cfg.Table, cfg.RunsTable)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool.
func NewRecordStoreWithPool(p pool, table, runsTable string) (*RecordStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultPostingsTable
	}
	if runsTable == "" {
		runsTable = defaultRunsTable
	}
	for _, name := range []string{table, runsTable} {
		if !validTableName.MatchString(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}
	return &RecordStore{pool: p, table: table, runsTable: runsTable}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StoreRecords upserts every record in one transaction. A later crawl of the
// same derived id replaces the earlier row.
func (s *RecordStore) StoreRecords(ctx context.Context, runID string, records []crawler.JobRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if len(records) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	derived_id,
	run_id,
	title,
	link,
	company,
	location,
	description
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)
ON CONFLICT (derived_id) DO UPDATE SET
	run_id = EXCLUDED.run_id,
	title = EXCLUDED.title,
	link = EXCLUDED.link,
	company = EXCLUDED.company,
	location = EXCLUDED.location,
	description = EXCLUDED.description`, s.table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	for _, rec := range records {
		if err := upsertRecord(ctx, tx, query, runID, rec); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				return fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit postings: %w", err)
	}
	return nil
}

func upsertRecord(ctx context.Context, tx pgx.Tx, query, runID string, rec crawler.JobRecord) error {
	description, err := json.Marshal(nonNil(rec.Description))
	if err != nil {
		return fmt.Errorf("marshal description for %s: %w", rec.DerivedID, err)
	}
	if _, err := tx.Exec(ctx, query,
		rec.DerivedID,
		runID,
		rec.Title,
		rec.Link,
		rec.Company,
		rec.Location,
		description,
	); err != nil {
		return fmt.Errorf("upsert posting %s: %w", rec.DerivedID, err)
	}
	return nil
}

// StoreRun records the summary of a finished crawl.
func (s *RecordStore) StoreRun(ctx context.Context, report crawler.RunReport) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if report.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	job_title,
	started_at,
	finished_at,
	seeds,
	listing_pages,
	detail_pages,
	cards_dropped,
	fetch_failures,
	records_stored,
	artifact_uri
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
ON CONFLICT (run_id) DO UPDATE SET
	finished_at = EXCLUDED.finished_at,
	records_stored = EXCLUDED.records_stored,
	artifact_uri = EXCLUDED.artifact_uri`, s.runsTable)

	if _, err := s.pool.Exec(ctx, query,
		report.RunID,
		report.JobTitle,
		report.StartedAt,
		report.FinishedAt,
		report.Seeds,
		report.ListingPages,
		report.DetailPages,
		report.CardsDropped,
		report.FetchFailures,
		report.RecordsStored,
		report.ArtifactURI,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
