package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard https", "https://www.Indeed.com/jobs?q=x", "www.indeed.com"},
		{"no scheme", "indeed.com/viewjob", "indeed.com"},
		{"host with port", "127.0.0.1:8080", "127.0.0.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObservePage(t *testing.T) {
	Init()
	okBefore := testutil.ToFloat64(crawlerPagesTotal.WithLabelValues("listing", "ok"))
	failedBefore := testutil.ToFloat64(crawlerPagesTotal.WithLabelValues("detail", "failed"))
	bytesBefore := testutil.ToFloat64(crawlerBytesTotal.WithLabelValues("board.test"))

	ObservePage("listing", "https://board.test/jobs", true, 128, 20*time.Millisecond)
	ObservePage("detail", "https://board.test/viewjob", false, 0, 0)

	if got := testutil.ToFloat64(crawlerPagesTotal.WithLabelValues("listing", "ok")) - okBefore; got != 1 {
		t.Errorf("expected one ok listing page, got %f", got)
	}
	if got := testutil.ToFloat64(crawlerPagesTotal.WithLabelValues("detail", "failed")) - failedBefore; got != 1 {
		t.Errorf("expected one failed detail page, got %f", got)
	}
	if got := testutil.ToFloat64(crawlerBytesTotal.WithLabelValues("board.test")) - bytesBefore; got != 128 {
		t.Errorf("expected 128 bytes, got %f", got)
	}
}

func TestObserveRecordAndDrops(t *testing.T) {
	Init()
	insertedBefore := testutil.ToFloat64(crawlerRecordsTotal.WithLabelValues("inserted"))
	overwrittenBefore := testutil.ToFloat64(crawlerRecordsTotal.WithLabelValues("overwritten"))
	droppedBefore := testutil.ToFloat64(crawlerCardsDroppedTotal)

	ObserveRecord(false)
	ObserveRecord(true)
	ObserveCardsDropped(3)
	ObserveCardsDropped(0)

	if got := testutil.ToFloat64(crawlerRecordsTotal.WithLabelValues("inserted")) - insertedBefore; got != 1 {
		t.Errorf("expected one inserted record, got %f", got)
	}
	if got := testutil.ToFloat64(crawlerRecordsTotal.WithLabelValues("overwritten")) - overwrittenBefore; got != 1 {
		t.Errorf("expected one overwritten record, got %f", got)
	}
	if got := testutil.ToFloat64(crawlerCardsDroppedTotal) - droppedBefore; got != 3 {
		t.Errorf("expected three dropped cards, got %f", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://www.indeed.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
