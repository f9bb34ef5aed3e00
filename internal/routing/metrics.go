package routing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// routeRequests counts route computations.
	// Labels: outcome (ok, invalid, too_long, bbox_too_large, graph_unavailable, no_path, internal, cancelled)
	routeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safety",
		Subsystem: "routing",
		Name:      "requests_total",
		Help:      "Route computations by outcome",
	}, []string{"outcome"})

	routeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "safety",
		Subsystem: "routing",
		Name:      "duration_seconds",
		Help:      "End-to-end route computation latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	})

	scoreLookups = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "safety",
		Subsystem: "routing",
		Name:      "score_lookups",
		Help:      "Distinct cell score lookups per route computation",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
)
