package crawler

import (
	"context"
	"io"
	"time"
)

// Handler receives the outcome of every task an Engine accepted.
type Handler interface {
	HandlePage(task Task, page Page)
	HandleFailure(task Task, err error)
}

// Engine schedules page fetches and delivers each outcome to the bound Handler.
// Implementations must call the Handler exactly once per accepted task and never
// run two Handler calls at the same time.
type Engine interface {
	Bind(handler Handler)
	Submit(task Task) error
	Wait()
}

// ResultStore accumulates job records keyed by derived id.
type ResultStore interface {
	Insert(record JobRecord) bool
	Len() int
	Serialize(w io.Writer) error
}

// ArtifactStore writes the serialized result document and returns its URI.
type ArtifactStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RecordSink persists final job records and the run summary outside the artifact.
type RecordSink interface {
	StoreRecords(ctx context.Context, runID string, records []JobRecord) error
	StoreRun(ctx context.Context, report RunReport) error
}

// Notifier announces a finished run.
type Notifier interface {
	Publish(ctx context.Context, report RunReport) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
