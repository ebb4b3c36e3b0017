// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/url"
	"strings"
	"time"
)

// derivedIDSeparator joins a posting title and its site-assigned card id.
const derivedIDSeparator = "_id_"

// TaskKind identifies which parser a fetched page is routed to.
type TaskKind string

// Task kinds scheduled by the orchestrator.
const (
	TaskListing TaskKind = "listing"
	TaskDetail  TaskKind = "detail"
)

// SearchSeed is the starting point of one per-state listing traversal.
type SearchSeed struct {
	JobTitle  string
	StateCode string
	URL       string
}

// ListingSummary is extracted from one job card on a search-results page.
type ListingSummary struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Company   string `json:"company"`
	Location  string `json:"location"`
	RawID     string `json:"-"`
	DerivedID string `json:"id"`
}

// JobRecord is a ListingSummary with its detail-page description attached.
type JobRecord struct {
	ListingSummary
	// Description holds the raw text nodes of the description container in document order.
	Description []string `json:"description"`
}

// DerivedID builds the result-store key for a posting. It is deterministic
// but not globally unique: the same posting can surface with different card ids.
func DerivedID(title, rawID string) string {
	return title + derivedIDSeparator + rawID
}

// RawIDFromDerived recovers the card id from a derived id and its title.
func RawIDFromDerived(title, derivedID string) string {
	prefix := title + derivedIDSeparator
	if !strings.HasPrefix(derivedID, prefix) {
		return ""
	}
	return strings.TrimPrefix(derivedID, prefix)
}

// Task is one pending fetch. Detail tasks carry the summary they complete.
type Task struct {
	Kind       TaskKind
	URL        string
	Seed       string
	PageNumber int
	Summary    *ListingSummary
}

// Page is a successfully fetched document handed to a Handler.
type Page struct {
	URL        *url.URL
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// DroppedCard records a job card the listing parser could not use.
type DroppedCard struct {
	Index  int
	Reason error
}

// ListingPage is the parse result of a single search-results page.
type ListingPage struct {
	Summaries []ListingSummary
	Dropped   []DroppedCard
	NextPage  string
}

// RunReport summarizes a completed crawl.
type RunReport struct {
	RunID          string        `json:"run_id"`
	JobTitle       string        `json:"job_title"`
	Seeds          int           `json:"seeds"`
	ListingPages   int           `json:"listing_pages"`
	DetailPages    int           `json:"detail_pages"`
	CardsDropped   int           `json:"cards_dropped"`
	FetchFailures  int           `json:"fetch_failures"`
	SubmitFailures int           `json:"submit_failures"`
	RecordsStored  int           `json:"records_stored"`
	Overwrites     int           `json:"overwrites"`
	ArtifactURI    string        `json:"artifact_uri,omitempty"`
	ArtifactSHA256 string        `json:"artifact_sha256,omitempty"`
	ArtifactBytes  int64         `json:"artifact_bytes,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Duration       time.Duration `json:"duration"`
}
