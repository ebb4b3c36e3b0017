package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-crawler/internal/clock/system"
	"github.com/JakeFAU/jobboard-crawler/internal/metrics"
)

// Orchestrator drives listing traversal and detail fetches for a set of seeds
// and feeds the resulting records into a ResultStore.
type Orchestrator struct {
	engine    Engine
	store     ResultStore
	selectors Selectors
	clock     Clock
	tracker   *Tracker
	logger    *zap.Logger

	// done is the run context's Done channel; set once by Run.
	done <-chan struct{}
}

// NewOrchestrator wires an orchestrator to its engine and store.
func NewOrchestrator(
	engine Engine,
	store ResultStore,
	selectors Selectors,
	clock Clock,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	return &Orchestrator{
		engine:    engine,
		store:     store,
		selectors: selectors.withDefaults(),
		clock:     clock,
		tracker:   NewTracker(),
		logger:    logger,
	}
}

// Tracker exposes the completion tracker for inspection.
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// Run submits every seed, blocks until the engine drains, and reports counters.
// Per-page failures never abort the run; ErrNoSeeds is returned only when no
// seed could be scheduled.
func (o *Orchestrator) Run(ctx context.Context, seeds []SearchSeed) (RunReport, error) {
	o.done = ctx.Done()
	o.engine.Bind(o)

	report := RunReport{StartedAt: o.clock.Now()}
	if len(seeds) > 0 {
		report.JobTitle = seeds[0].JobTitle
	}

	accepted := 0
	for _, seed := range seeds {
		task := Task{Kind: TaskListing, URL: seed.URL, Seed: seed.StateCode, PageNumber: 1}
		if o.submit(task) {
			accepted++
		}
	}
	report.Seeds = accepted
	if accepted == 0 {
		o.fillReport(&report)
		return report, ErrNoSeeds
	}

	o.engine.Wait()

	if !o.tracker.Idle() {
		o.logger.Warn("engine drained with tasks still pending",
			zap.Int("pending_listing", o.tracker.Pending(TaskListing)),
			zap.Int("pending_detail", o.tracker.Pending(TaskDetail)),
		)
	}
	o.fillReport(&report)

	o.logger.Info("crawl finished",
		zap.Int("seeds", report.Seeds),
		zap.Int("listing_pages", report.ListingPages),
		zap.Int("detail_pages", report.DetailPages),
		zap.Int("cards_dropped", report.CardsDropped),
		zap.Int("fetch_failures", report.FetchFailures),
		zap.Int("submit_failures", report.SubmitFailures),
		zap.Int("records_stored", report.RecordsStored),
		zap.Int("overwrites", report.Overwrites),
		zap.Int("postings", o.store.Len()),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (o *Orchestrator) fillReport(report *RunReport) {
	stats := o.tracker.Stats()
	report.ListingPages = stats.ListingPages
	report.DetailPages = stats.DetailPages
	report.CardsDropped = stats.CardsDropped
	report.FetchFailures = stats.FetchFailures
	report.SubmitFailures = stats.SubmitFailures
	report.RecordsStored = stats.RecordsStored
	report.Overwrites = stats.Overwrites
	report.FinishedAt = o.clock.Now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)
}

// submit registers the task with the tracker and hands it to the engine.
func (o *Orchestrator) submit(task Task) bool {
	if o.canceled() {
		o.logger.Debug("crawl canceled; not scheduling",
			zap.String("kind", string(task.Kind)),
			zap.String("url", task.URL),
		)
		return false
	}
	o.tracker.Begin(task)
	if err := o.engine.Submit(task); err != nil {
		o.tracker.Abort(task)
		metrics.ObserveSubmitFailure(string(task.Kind))
		o.logger.Warn("task rejected by engine",
			zap.String("kind", string(task.Kind)),
			zap.String("seed", task.Seed),
			zap.String("url", task.URL),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (o *Orchestrator) canceled() bool {
	if o.done == nil {
		return false
	}
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// HandlePage routes a fetched page to the parser for its task kind.
func (o *Orchestrator) HandlePage(task Task, page Page) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		o.HandleFailure(task, fmt.Errorf("parse html: %w", err))
		return
	}

	switch task.Kind {
	case TaskListing:
		o.handleListing(task, page, doc)
	case TaskDetail:
		if task.Summary == nil {
			o.HandleFailure(task, errors.New("detail task carries no summary"))
			return
		}
		o.handleDetail(task, doc)
	default:
		o.HandleFailure(task, fmt.Errorf("unknown task kind %q", task.Kind))
		return
	}
	metrics.ObservePage(string(task.Kind), task.URL, true, len(page.Body), page.Duration)
	o.tracker.Finish(task, OutcomeOK)
}

func (o *Orchestrator) handleListing(task Task, page Page, doc *goquery.Document) {
	result := ParseListingPage(doc, page.URL, o.selectors)
	for _, dropped := range result.Dropped {
		o.logger.Warn("dropping job card",
			zap.String("seed", task.Seed),
			zap.String("url", task.URL),
			zap.Int("card", dropped.Index),
			zap.Error(dropped.Reason),
		)
	}
	o.tracker.CardsDropped(len(result.Dropped))
	metrics.ObserveCardsDropped(len(result.Dropped))

	for i := range result.Summaries {
		summary := result.Summaries[i]
		o.submit(Task{
			Kind:       TaskDetail,
			URL:        summary.Link,
			Seed:       task.Seed,
			PageNumber: task.PageNumber,
			Summary:    &summary,
		})
	}

	if result.NextPage != "" {
		o.submit(Task{
			Kind:       TaskListing,
			URL:        result.NextPage,
			Seed:       task.Seed,
			PageNumber: task.PageNumber + 1,
		})
		return
	}
	o.logger.Debug("listing traversal complete",
		zap.String("seed", task.Seed),
		zap.Int("pages", task.PageNumber),
	)
}

func (o *Orchestrator) handleDetail(task Task, doc *goquery.Document) {
	record := ParseDetailPage(doc, *task.Summary, o.selectors)
	overwrote := o.store.Insert(record)
	o.tracker.Stored(overwrote)
	metrics.ObserveRecord(overwrote)
	if overwrote {
		o.logger.Debug("derived id collision; keeping latest record",
			zap.String("id", record.DerivedID),
			zap.String("url", task.URL),
		)
	}
}

// HandleFailure drops the failed branch and lets the rest of the crawl continue.
func (o *Orchestrator) HandleFailure(task Task, err error) {
	o.logger.Warn("dropping failed page",
		zap.String("kind", string(task.Kind)),
		zap.String("seed", task.Seed),
		zap.String("url", task.URL),
		zap.Int("page", task.PageNumber),
		zap.Error(err),
	)
	metrics.ObservePage(string(task.Kind), task.URL, false, 0, 0)
	o.tracker.Finish(task, OutcomeFailed)
}
