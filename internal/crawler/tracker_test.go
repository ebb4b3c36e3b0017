package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerListingBranchLifecycle(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	assert.True(t, tr.Idle())

	first := Task{Kind: TaskListing, Seed: "CA", PageNumber: 1}
	tr.Begin(first)
	status, ok := tr.Branch("CA")
	require.True(t, ok)
	assert.Equal(t, StateAwaitingListingPage, status.State)
	assert.False(t, tr.Idle())

	// The next page and a detail task are registered before the first page finishes.
	second := Task{Kind: TaskListing, Seed: "CA", PageNumber: 2}
	detail := Task{Kind: TaskDetail, Seed: "CA", PageNumber: 1}
	tr.Begin(detail)
	tr.Begin(second)
	tr.Finish(first, OutcomeOK)

	status, _ = tr.Branch("CA")
	assert.Equal(t, StateAwaitingListingPage, status.State)
	assert.Equal(t, 1, tr.Pending(TaskListing))
	assert.Equal(t, 1, tr.Pending(TaskDetail))

	tr.Finish(second, OutcomeOK)
	status, _ = tr.Branch("CA")
	assert.Equal(t, StateAwaitingDetailPage, status.State)
	assert.Equal(t, 2, status.ListingPages)

	tr.Finish(detail, OutcomeOK)
	status, _ = tr.Branch("CA")
	assert.Equal(t, StateDone, status.State)
	assert.True(t, tr.Idle())

	stats := tr.Stats()
	assert.Equal(t, 2, stats.ListingPages)
	assert.Equal(t, 1, stats.DetailPages)
}

func TestTrackerFailureIsolatesBranch(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	ca := Task{Kind: TaskListing, Seed: "CA", PageNumber: 1}
	ny := Task{Kind: TaskListing, Seed: "NY", PageNumber: 1}
	tr.Begin(ca)
	tr.Begin(ny)

	tr.Finish(ca, OutcomeFailed)
	caStatus, _ := tr.Branch("CA")
	nyStatus, _ := tr.Branch("NY")
	assert.Equal(t, StateDone, caStatus.State)
	assert.Equal(t, 1, caStatus.Failures)
	assert.Equal(t, StateAwaitingListingPage, nyStatus.State)
	assert.False(t, tr.Idle())

	tr.Finish(ny, OutcomeOK)
	assert.True(t, tr.Idle())
	assert.Equal(t, 1, tr.Stats().FetchFailures)
	assert.Equal(t, 1, tr.Stats().ListingPages)
}

func TestTrackerAbortCountsSubmitFailure(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	task := Task{Kind: TaskDetail, Seed: "TX"}
	tr.Begin(task)
	tr.Abort(task)

	assert.True(t, tr.Idle())
	assert.Equal(t, 1, tr.Stats().SubmitFailures)
	assert.Equal(t, 0, tr.Stats().FetchFailures)
}

func TestTrackerCountersAndBranches(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Begin(Task{Kind: TaskListing, Seed: "WY"})
	tr.Begin(Task{Kind: TaskListing, Seed: "AK"})
	tr.CardsDropped(2)
	tr.Stored(false)
	tr.Stored(true)

	stats := tr.Stats()
	assert.Equal(t, 2, stats.CardsDropped)
	assert.Equal(t, 2, stats.RecordsStored)
	assert.Equal(t, 1, stats.Overwrites)

	branches := tr.Branches()
	require.Len(t, branches, 2)
	assert.Equal(t, "AK", branches[0].Seed)
	assert.Equal(t, "WY", branches[1].Seed)

	_, ok := tr.Branch("ZZ")
	assert.False(t, ok)
}
