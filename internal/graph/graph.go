// Package graph provides walkable street graphs for route search.
package graph

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jengzang/safety-backend-go/internal/spatial"
)

// ErrEmptyGraph is returned by providers when a bbox holds no walkable street
var ErrEmptyGraph = errors.New("empty street graph")

// Node is a street intersection or way endpoint
type Node struct {
	ID  int64
	Lat float64
	Lng float64
}

// Edge is a directed street segment. Parallel edges between the same pair
// of nodes are allowed.
type Edge struct {
	From     int64
	To       int64
	LengthM  float64
	Geometry []spatial.Point // optional polyline, From to To
}

// StreetGraph is a directed multigraph of walkable streets
type StreetGraph struct {
	Nodes map[int64]Node
	Edges []Edge

	out map[int64][]int
}

// NewStreetGraph creates an empty graph
func NewStreetGraph() *StreetGraph {
	return &StreetGraph{
		Nodes: make(map[int64]Node),
		out:   make(map[int64][]int),
	}
}

// AddNode adds or replaces a node
func (g *StreetGraph) AddNode(n Node) {
	g.Nodes[n.ID] = n
}

// AddEdge appends a directed edge and returns its index
func (g *StreetGraph) AddEdge(e Edge) int {
	g.Edges = append(g.Edges, e)
	idx := len(g.Edges) - 1
	g.out[e.From] = append(g.out[e.From], idx)
	return idx
}

// Outgoing returns the indices of edges leaving node id
func (g *StreetGraph) Outgoing(id int64) []int {
	return g.out[id]
}

// Empty reports whether the graph has no edges
func (g *StreetGraph) Empty() bool {
	return g == nil || len(g.Edges) == 0
}

// BBox is a lat/lng bounding box
type BBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// BBoxAround returns the smallest box containing both points, padded by pad degrees
func BBoxAround(a, b spatial.Point, pad float64) BBox {
	minLat, minLng, maxLat, maxLng := spatial.BoundingBox([]spatial.Point{a, b})
	return BBox{
		South: minLat - pad,
		West:  minLng - pad,
		North: maxLat + pad,
		East:  maxLng + pad,
	}
}

// SpanDeg returns the latitude and longitude extent in degrees
func (b BBox) SpanDeg() (float64, float64) {
	return b.North - b.South, b.East - b.West
}

// AreaKm2 returns the approximate area of the box in square kilometers
func (b BBox) AreaKm2() float64 {
	return spatial.BoundingBoxArea(b.South, b.West, b.North, b.East) / 1e6
}

// Key returns a stable identifier for the box, rounded to ~1 m
func (b BBox) Key() string {
	return fmt.Sprintf("%.5f,%.5f,%.5f,%.5f", b.South, b.West, b.North, b.East)
}

// Provider fetches the walkable street graph inside a bbox
type Provider interface {
	WalkGraph(ctx context.Context, bbox BBox) (*StreetGraph, error)
}

// StaticProvider serves a fixed graph regardless of the bbox
type StaticProvider struct {
	Graph *StreetGraph
	Err   error
}

// WalkGraph implements Provider
func (p *StaticProvider) WalkGraph(ctx context.Context, _ BBox) (*StreetGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Graph.Empty() {
		return nil, ErrEmptyGraph
	}
	return p.Graph, nil
}

// NearestNode returns the node closest to (lat, lng) by great-circle distance
func NearestNode(g *StreetGraph, lat, lng float64) (int64, bool) {
	if g == nil || len(g.Nodes) == 0 {
		return 0, false
	}

	var (
		best     int64
		bestDist = math.Inf(1)
	)
	for id, n := range g.Nodes {
		d := spatial.HaversineDistance(lat, lng, n.Lat, n.Lng)
		// ties resolve to the lower id so snapping is deterministic
		if d < bestDist || (d == bestDist && id < best) {
			best, bestDist = id, d
		}
	}
	return best, true
}
