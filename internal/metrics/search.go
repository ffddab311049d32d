package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"mode", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docdex",
			Name:      "search_duration_seconds",
			Help:      "Search request duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"mode"},
	)

	SearchFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "search_fallbacks_total",
			Help:      "Total number of degraded bm25-fallback responses",
		},
		[]string{"reason"},
	)

	SearchSourceTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "search_source_timeouts_total",
			Help:      "Per-source search timeouts",
		},
		[]string{"source"},
	)

	GhostsFilteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "ghosts_filtered_total",
			Help:      "Stale index entries removed from search responses",
		},
	)

	GhostCleanupJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "ghost_cleanup_jobs_total",
			Help:      "Background ghost cleanup jobs by outcome",
		},
		[]string{"status"}, // "ok" / "error" / "rejected"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchFallbacksTotal)
	prometheus.MustRegister(SearchSourceTimeoutsTotal)
	prometheus.MustRegister(GhostsFilteredTotal)
	prometheus.MustRegister(GhostCleanupJobsTotal)
	searchMetricsRegistered = true
}
