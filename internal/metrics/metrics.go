// Package metrics exposes Prometheus collectors for the scout service.
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
	scoutDiscoveriesTotal       *prometheus.CounterVec
	scoutContinuationFetches    prometheus.Counter
	scoutSurfaceVisitsTotal     *prometheus.CounterVec
	scoutEmailsFoundTotal       *prometheus.CounterVec
	scoutJobsTotal              *prometheus.CounterVec
	scoutPoolSessionsOpen       prometheus.Gauge
	scoutPoolSessionsInUse      prometheus.Gauge
	scoutPoolAcquireWaitSeconds prometheus.Histogram
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scoutDiscoveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_discoveries_total",
				Help: "Total number of discovery sessions, labeled by terminal status.",
			},
			[]string{"status"},
		)

		scoutContinuationFetches = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scout_continuation_fetches_total",
				Help: "Total number of continuation pages fetched during discovery.",
			},
		)

		scoutSurfaceVisitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_surface_visits_total",
				Help: "Total surface navigations, labeled by surface and outcome.",
			},
			[]string{"surface", "outcome"},
		)

		scoutEmailsFoundTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_emails_found_total",
				Help: "Total newly attributed emails, labeled by source.",
			},
			[]string{"source"},
		)

		scoutJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_enrichment_jobs_total",
				Help: "Total enrichment job outcomes, labeled by status.",
			},
			[]string{"status"},
		)

		scoutPoolSessionsOpen = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scout_browser_sessions_open",
				Help: "Number of browser sessions currently alive in the pool.",
			},
		)

		scoutPoolSessionsInUse = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scout_browser_sessions_in_use",
				Help: "Number of browser sessions currently checked out.",
			},
		)

		scoutPoolAcquireWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scout_pool_acquire_wait_seconds",
				Help:    "Histogram of waits for a free browser session.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
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

// ObserveDiscovery increments the discovery counter for a terminal status.
func ObserveDiscovery(status string) {
	scoutDiscoveriesTotal.WithLabelValues(status).Inc()
}

// ObserveContinuationFetch counts one continuation page fetch.
func ObserveContinuationFetch() {
	scoutContinuationFetches.Inc()
}

// ObserveSurfaceVisit records the outcome of one surface navigation.
func ObserveSurfaceVisit(surface, outcome string) {
	scoutSurfaceVisitsTotal.WithLabelValues(surface, outcome).Inc()
}

// ObserveEmailsFound adds newly attributed emails for a source.
func ObserveEmailsFound(source string, count int) {
	if count > 0 {
		scoutEmailsFoundTotal.WithLabelValues(source).Add(float64(count))
	}
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	scoutJobsTotal.WithLabelValues(status).Inc()
}

// SetPoolSessions updates the pool gauges.
func SetPoolSessions(open, inUse int) {
	scoutPoolSessionsOpen.Set(float64(open))
	scoutPoolSessionsInUse.Set(float64(inUse))
}

// ObserveAcquireWait records how long a caller waited for a session.
func ObserveAcquireWait(d time.Duration) {
	scoutPoolAcquireWaitSeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
