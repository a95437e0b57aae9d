package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlbridge_query_generations_total",
			Help: "Total number of SQL generation attempts by outcome.",
		},
		[]string{"outcome"},
	)
	generationFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlbridge_generation_fallback_total",
			Help: "Total number of generations resolved by the rule-based fallback.",
		},
	)
	executionSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlbridge_query_execution_seconds",
			Help:    "Statement execution latency against the backend.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)
	schemaCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlbridge_schema_cache_lookups_total",
			Help: "Schema cache lookups by result.",
		},
		[]string{"result"},
	)
	poolBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlbridge_pool_builds_total",
			Help: "Connection pools built, by dialect.",
		},
		[]string{"dialect"},
	)
)

func init() {
	prometheus.MustRegister(
		generationsTotal,
		generationFallbackTotal,
		executionSeconds,
		schemaCacheLookupsTotal,
		poolBuildsTotal,
	)
}

func ObserveGeneration(outcome string) {
	generationsTotal.WithLabelValues(outcome).Inc()
}

func ObserveFallback() {
	generationFallbackTotal.Inc()
}

func ObserveExecution(elapsed time.Duration, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	executionSeconds.WithLabelValues(status).Observe(elapsed.Seconds())
}

func ObserveSchemaCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	schemaCacheLookupsTotal.WithLabelValues(result).Inc()
}

func ObservePoolBuild(dialect string) {
	poolBuildsTotal.WithLabelValues(dialect).Inc()
}
