package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cellsProcessed counts aggregation outcomes per cell.
	// Labels: outcome (updated, failed)
	cellsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safety",
		Subsystem: "aggregation",
		Name:      "cells_total",
		Help:      "Cells processed by the risk aggregation job",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "safety",
		Subsystem: "aggregation",
		Name:      "run_duration_seconds",
		Help:      "Wall time of one aggregation pass",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	})
)
