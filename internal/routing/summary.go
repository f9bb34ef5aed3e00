package routing

import (
	"fmt"

	"github.com/jengzang/safety-backend-go/internal/graph"
	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/stats"
)

// Safety level thresholds on the average risk
const (
	highSafetyBelow   = 30.0
	mediumSafetyBelow = 60.0
)

// SafetyLevel classifies a length-weighted average risk
func SafetyLevel(avgRisk float64) string {
	switch {
	case avgRisk < highSafetyBelow:
		return models.SafetyLevelHigh
	case avgRisk < mediumSafetyBelow:
		return models.SafetyLevelMedium
	default:
		return models.SafetyLevelLow
	}
}

// Summarize builds the route result for a chosen path. edges are indices into
// g.Edges and weights is indexed the same way.
func Summarize(g *graph.StreetGraph, nodes []int64, edges []int, weights []EdgeWeight) *models.RouteResult {
	risks := make([]float64, len(edges))
	lengths := make([]float64, len(edges))
	for i, idx := range edges {
		risks[i] = weights[idx].Risk
		lengths[i] = g.Edges[idx].LengthM
	}

	distance := stats.Sum(lengths)
	avgRisk := stats.WeightedMean(risks, lengths)

	path := make([]models.LatLng, 0, len(nodes))
	for _, id := range nodes {
		n := g.Nodes[id]
		path = append(path, models.LatLng{Lat: n.Lat, Lng: n.Lng})
	}

	roundedRisk := stats.Round(avgRisk, 0)
	roundedDistance := stats.Round(distance, 0)

	return &models.RouteResult{
		Path:        path,
		DistanceM:   roundedDistance,
		AvgRisk:     roundedRisk,
		SafetyLevel: SafetyLevel(avgRisk),
		Explanation: []string{
			fmt.Sprintf("Route avoids high-risk zones (avg risk %d/100).", int(roundedRisk)),
			fmt.Sprintf("Distance: %d meters.", int(roundedDistance)),
		},
	}
}
