// Package metrics exposes Prometheus collectors for the job crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal          *prometheus.CounterVec
	crawlerBytesTotal          *prometheus.CounterVec
	crawlerFetchDuration       *prometheus.HistogramVec
	crawlerCardsDroppedTotal   prometheus.Counter
	crawlerRecordsTotal        *prometheus.CounterVec
	crawlerSubmitFailuresTotal *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_pages_total",
				Help: "Total number of pages handled, labeled by task kind and outcome.",
			},
			[]string{"kind", "status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerFetchDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobcrawler_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by task kind.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		)

		crawlerCardsDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobcrawler_cards_dropped_total",
				Help: "Total number of listing cards dropped for missing required fields.",
			},
		)

		crawlerRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_records_total",
				Help: "Total number of job records stored, labeled by whether a key was overwritten.",
			},
			[]string{"result"},
		)

		crawlerSubmitFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_submit_failures_total",
				Help: "Total number of tasks the fetch engine refused, labeled by task kind.",
			},
			[]string{"kind"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records a handled page for the given task kind.
func ObservePage(kind, rawURL string, ok bool, bytesFetched int, duration time.Duration) {
	Init()
	status := "ok"
	if !ok {
		status = "failed"
	}
	crawlerPagesTotal.WithLabelValues(kind, status).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(SanitizeSite(rawURL)).Add(float64(bytesFetched))
	}
	if duration > 0 {
		crawlerFetchDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// ObserveCardsDropped adds n dropped listing cards.
func ObserveCardsDropped(n int) {
	Init()
	if n > 0 {
		crawlerCardsDroppedTotal.Add(float64(n))
	}
}

// ObserveRecord counts a stored record.
func ObserveRecord(overwrote bool) {
	Init()
	result := "inserted"
	if overwrote {
		result = "overwritten"
	}
	crawlerRecordsTotal.WithLabelValues(result).Inc()
}

// ObserveSubmitFailure counts a task the engine refused.
func ObserveSubmitFailure(kind string) {
	Init()
	crawlerSubmitFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
