package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query-path Prometheus metrics.
var (
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobrag",
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by outcome",
		},
		[]string{"result"}, // "hit" / "miss" / "error"
	)

	LLMFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jobrag",
			Name:      "llm_fallbacks_total",
			Help:      "Queries answered with the retrieval-only fallback",
		},
	)

	RetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jobrag",
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval stage duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"}, // "vector" / "hybrid"
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers query-path metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(CacheLookupsTotal)
	prometheus.MustRegister(LLMFallbacksTotal)
	prometheus.MustRegister(RetrievalDuration)
	queryMetricsRegistered = true
}
