package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// fetchLatency measures street graph downloads.
	// Labels: outcome (ok, error, empty)
	fetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "safety",
		Subsystem: "graph",
		Name:      "fetch_duration_seconds",
		Help:      "Street graph fetch latency in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
	}, []string{"outcome"})

	// cacheLookups counts caching provider lookups.
	// Labels: result (hit, miss)
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safety",
		Subsystem: "graph",
		Name:      "cache_lookups_total",
		Help:      "Street graph cache lookups",
	}, []string{"result"})
)
