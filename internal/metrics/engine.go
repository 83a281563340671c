package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine Prometheus metrics.
var (
	EngineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scoutx",
			Name:      "engine_requests_total",
			Help:      "Total number of search engine requests",
		},
		[]string{"operation", "status"},
	)

	EngineRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scoutx",
			Name:      "engine_request_duration_seconds",
			Help:      "Search engine request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	EngineDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scoutx",
			Name:      "engine_documents_total",
			Help:      "Total documents sent in bulk requests",
		},
		[]string{"operation"},
	)

	SearchHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scoutx",
			Name:      "search_hits_total",
			Help:      "Total hits returned by searches",
		},
		[]string{"index"},
	)
)

var registerOnce sync.Once

// Register registers the engine metrics with the default registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(EngineRequestsTotal)
		prometheus.MustRegister(EngineRequestDuration)
		prometheus.MustRegister(EngineDocumentsTotal)
		prometheus.MustRegister(SearchHitsTotal)
	})
}
