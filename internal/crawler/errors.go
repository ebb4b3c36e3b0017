package crawler

import "errors"

var (
	// ErrMissingField marks a job card lacking a required field.
	ErrMissingField = errors.New("missing required field")
	// ErrNoSeeds is returned when a run has nothing to start from.
	ErrNoSeeds = errors.New("no seeds submitted")
	// ErrUnexpectedStatus marks a fetch that completed with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status code")
)
