package routing

import (
	"context"
	"log"

	"github.com/jengzang/safety-backend-go/internal/graph"
	"github.com/jengzang/safety-backend-go/internal/spatial"
)

// Weighting defaults
const (
	DefaultAlpha = 5.0
	DefaultRisk  = 10
)

// ScoreLookup reads the stored score of a cell
type ScoreLookup interface {
	LookupScore(ctx context.Context, cellID string) (score int, found bool, err error)
}

// EdgeWeight is the safety annotation of one graph edge
type EdgeWeight struct {
	Risk float64 // 0-100
	Cost float64 // length_m * (1 + risk/100 * alpha)
}

// Weighter annotates edges with safety-adjusted costs. It caches score
// lookups per cell and is meant to live for a single route computation.
type Weighter struct {
	lookup      ScoreLookup
	alpha       float64
	defaultRisk int
	cache       map[string]int
	lookups     int
}

// NewWeighter creates a request-scoped weighter
func NewWeighter(lookup ScoreLookup, alpha float64, defaultRisk int) *Weighter {
	return &Weighter{
		lookup:      lookup,
		alpha:       alpha,
		defaultRisk: defaultRisk,
		cache:       make(map[string]int),
	}
}

// Cost returns the safety-adjusted traversal cost of an edge
func Cost(lengthM, risk, alpha float64) float64 {
	return lengthM * (1 + risk/100*alpha)
}

// Weigh annotates every edge of g. The result is indexed like g.Edges.
func (w *Weighter) Weigh(ctx context.Context, g *graph.StreetGraph) ([]EdgeWeight, error) {
	weights := make([]EdgeWeight, len(g.Edges))
	for i, e := range g.Edges {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		risk := float64(w.riskAt(ctx, representativePoint(g, e)))
		weights[i] = EdgeWeight{Risk: risk, Cost: Cost(e.LengthM, risk, w.alpha)}
	}
	return weights, nil
}

// Lookups returns how many store lookups the weighter has made
func (w *Weighter) Lookups() int {
	return w.lookups
}

func (w *Weighter) riskAt(ctx context.Context, p spatial.Point) int {
	cellID, err := spatial.CellOf(p.Lat, p.Lng, spatial.ResolutionFine)
	if err != nil {
		return w.defaultRisk
	}

	if risk, ok := w.cache[cellID]; ok {
		return risk
	}

	w.lookups++
	risk := w.defaultRisk
	score, found, err := w.lookup.LookupScore(ctx, cellID)
	switch {
	case err != nil:
		log.Printf("[RouteWeighting] Score lookup failed for %s, using default: %v", cellID, err)
	case found:
		risk = score
	}

	w.cache[cellID] = risk
	return risk
}

// representativePoint is the centroid of the edge geometry, or the midpoint
// of its endpoints when the edge has no geometry
func representativePoint(g *graph.StreetGraph, e graph.Edge) spatial.Point {
	if len(e.Geometry) >= 2 {
		return spatial.LineCentroid(e.Geometry)
	}
	from, to := g.Nodes[e.From], g.Nodes[e.To]
	return spatial.Point{Lat: (from.Lat + to.Lat) / 2, Lng: (from.Lng + to.Lng) / 2}
}
