// Package metrics exposes Prometheus collectors for the golfmetrics
// pipeline, plus an optional scrape endpoint for long-running fetches.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal     *prometheus.CounterVec
	captureFilesReadTotal prometheus.Counter
	coursesReadTotal      prometheus.Counter
	duplicatesDropped     prometheus.Counter
	regionsRanked         prometheus.Gauge
	tableWriteSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "golfmetrics_pages_fetched_total",
				Help: "Capture pages fetched from the TeeRadar API, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		captureFilesReadTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "golfmetrics_capture_files_read_total",
				Help: "Capture files read during consolidation.",
			},
		)
		coursesReadTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "golfmetrics_courses_read_total",
				Help: "Course observations flattened out of capture files.",
			},
		)
		duplicatesDropped = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "golfmetrics_duplicates_dropped_total",
				Help: "Stale duplicate observations dropped by deduplication.",
			},
		)
		regionsRanked = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "golfmetrics_regions_ranked",
				Help: "Region rows produced by the most recent ranking run.",
			},
		)
		tableWriteSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "golfmetrics_table_write_duration_seconds",
				Help:    "Time spent publishing output tables, labeled by format.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"format"},
		)
	})
}

// PageFetched records one page fetch attempt with its outcome
// ("ok", "rate_limited", "server_error", "transport_error").
func PageFetched(outcome string) {
	Init()
	pagesFetchedTotal.WithLabelValues(outcome).Inc()
}

// CaptureFilesRead records capture files read during consolidation.
func CaptureFilesRead(n int) {
	Init()
	captureFilesReadTotal.Add(float64(n))
}

// CoursesRead records flattened course observations.
func CoursesRead(n int) {
	Init()
	coursesReadTotal.Add(float64(n))
}

// DuplicatesDropped records observations removed by deduplication.
func DuplicatesDropped(n int) {
	Init()
	duplicatesDropped.Add(float64(n))
}

// RegionsRanked records the size of the published ranking.
func RegionsRanked(n int) {
	Init()
	regionsRanked.Set(float64(n))
}

// ObserveTableWrite records the duration of one table publication.
func ObserveTableWrite(format string, d time.Duration) {
	Init()
	tableWriteSeconds.WithLabelValues(format).Observe(d.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// Router builds the debug router served when a metrics address is
// configured: /metrics for Prometheus scrapes, /healthz for liveness.
func Router() http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
