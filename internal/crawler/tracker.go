package crawler

import (
	"sort"
	"sync"
)

// BranchState is the lifecycle position of a seed's listing traversal or a
// detail sub-flow.
type BranchState string

// Branch states driven by the orchestrator.
const (
	StateStart               BranchState = "start"
	StateAwaitingListingPage BranchState = "awaiting_listing_page"
	StateAwaitingDetailPage  BranchState = "awaiting_detail_page"
	StateDone                BranchState = "done"
)

// Outcome classifies how a task finished.
type Outcome int

// Task outcomes recorded by the tracker.
const (
	OutcomeOK Outcome = iota
	OutcomeFailed
)

// BranchStatus describes one seed's listing traversal.
type BranchStatus struct {
	Seed           string
	State          BranchState
	ListingPages   int
	PendingDetails int
	Failures       int
}

// TrackerStats is a snapshot of the tracker counters.
type TrackerStats struct {
	ListingPages   int
	DetailPages    int
	CardsDropped   int
	FetchFailures  int
	SubmitFailures int
	RecordsStored  int
	Overwrites     int
}

type branch struct {
	state          BranchState
	pendingListing int
	pendingDetail  int
	listingPages   int
	failures       int
}

// Tracker records pending tasks per seed so the run's terminal condition and
// per-branch failure isolation can be checked without a network engine.
type Tracker struct {
	mu       sync.Mutex
	pending  map[TaskKind]int
	branches map[string]*branch
	stats    TrackerStats
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		pending:  make(map[TaskKind]int),
		branches: make(map[string]*branch),
	}
}

func (t *Tracker) branchFor(seed string) *branch {
	b, ok := t.branches[seed]
	if !ok {
		b = &branch{state: StateStart}
		t.branches[seed] = b
	}
	return b
}

// Begin registers a task before it is handed to the engine.
func (t *Tracker) Begin(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending[task.Kind]++
	b := t.branchFor(task.Seed)
	switch task.Kind {
	case TaskListing:
		b.pendingListing++
		b.state = StateAwaitingListingPage
	case TaskDetail:
		b.pendingDetail++
	}
}

// Abort reverts Begin for a task the engine refused.
func (t *Tracker) Abort(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.SubmitFailures++
	t.release(task)
}

// Finish marks a task complete.
func (t *Tracker) Finish(task Task, outcome Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.branchFor(task.Seed)
	switch {
	case outcome == OutcomeFailed:
		t.stats.FetchFailures++
		b.failures++
	case task.Kind == TaskListing:
		t.stats.ListingPages++
		b.listingPages++
	case task.Kind == TaskDetail:
		t.stats.DetailPages++
	}
	t.release(task)
}

func (t *Tracker) release(task Task) {
	if t.pending[task.Kind] > 0 {
		t.pending[task.Kind]--
	}
	b := t.branchFor(task.Seed)
	switch task.Kind {
	case TaskListing:
		if b.pendingListing > 0 {
			b.pendingListing--
		}
		if b.pendingListing == 0 {
			b.state = StateDone
		}
	case TaskDetail:
		if b.pendingDetail > 0 {
			b.pendingDetail--
		}
	}
}

// CardsDropped adds n unusable listing cards to the stats.
func (t *Tracker) CardsDropped(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.CardsDropped += n
}

// Stored counts a record insertion and whether it replaced an existing key.
func (t *Tracker) Stored(overwrote bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.RecordsStored++
	if overwrote {
		t.stats.Overwrites++
	}
}

// Pending returns the number of outstanding tasks of the given kind.
func (t *Tracker) Pending(kind TaskKind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending[kind]
}

// Idle reports whether every listing branch and detail sub-flow is done.
func (t *Tracker) Idle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range t.pending {
		if n > 0 {
			return false
		}
	}
	return true
}

// Branch returns the status of a seed's traversal.
func (t *Tracker) Branch(seed string) (BranchStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.branches[seed]
	if !ok {
		return BranchStatus{}, false
	}
	return b.status(seed), true
}

// Branches returns every seed's status sorted by seed.
func (t *Tracker) Branches() []BranchStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]BranchStatus, 0, len(t.branches))
	for seed, b := range t.branches {
		out = append(out, b.status(seed))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seed < out[j].Seed })
	return out
}

// Stats returns a copy of the counters.
func (t *Tracker) Stats() TrackerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (b *branch) status(seed string) BranchStatus {
	state := b.state
	if state == StateDone && b.pendingDetail > 0 {
		state = StateAwaitingDetailPage
	}
	return BranchStatus{
		Seed:           seed,
		State:          state,
		ListingPages:   b.listingPages,
		PendingDetails: b.pendingDetail,
		Failures:       b.failures,
	}
}
