// Package routing computes walking routes that trade distance against the
// stored risk of the cells they pass through.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jengzang/safety-backend-go/internal/graph"
	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/spatial"
)

// Config holds routing limits and tuning
type Config struct {
	MaxDeltaDeg    float64       // guardrail on |Δlat| and |Δlng| between endpoints
	BBoxPadDeg     float64       // padding around the endpoints' bbox
	MaxBBoxSpanDeg float64       // maximum lat or lng extent of the padded bbox
	MaxBBoxAreaKm2 float64       // maximum area of the padded bbox
	GraphTimeout   time.Duration // bound on the graph fetch
	Alpha          float64
	DefaultRisk    int
}

// DefaultConfig returns the standard routing limits
func DefaultConfig() Config {
	return Config{
		MaxDeltaDeg:    0.05,
		BBoxPadDeg:     0.002,
		MaxBBoxSpanDeg: 0.05,
		MaxBBoxAreaKm2: 40,
		GraphTimeout:   15 * time.Second,
		Alpha:          DefaultAlpha,
		DefaultRisk:    DefaultRisk,
	}
}

// Engine computes safer routes
type Engine struct {
	provider graph.Provider
	scores   ScoreLookup
	cfg      Config
}

// NewEngine creates a new routing engine
func NewEngine(provider graph.Provider, scores ScoreLookup, cfg Config) *Engine {
	return &Engine{provider: provider, scores: scores, cfg: cfg}
}

// CalculateSaferRoute computes the minimum safety-weighted path between two
// points. Every failure other than malformed input is reported as an error
// wrapping ErrRouteNotFound; the engine never panics past this call.
func (e *Engine) CalculateSaferRoute(ctx context.Context, start, end models.LatLng) (result *models.RouteResult, err error) {
	ctx, span := otel.Tracer("safety/routing").Start(ctx, "Routing.CalculateSaferRoute")
	defer span.End()

	began := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Routing] Recovered from panic: %v", r)
			result, err = nil, ErrInternal
		}
		routeRequests.WithLabelValues(outcomeOf(err)).Inc()
		routeLatency.Observe(time.Since(began).Seconds())
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	span.SetAttributes(
		attribute.Float64("route.start.lat", start.Lat), attribute.Float64("route.start.lng", start.Lng),
		attribute.Float64("route.end.lat", end.Lat), attribute.Float64("route.end.lng", end.Lng),
	)

	if !spatial.ValidLatLng(start.Lat, start.Lng) || !spatial.ValidLatLng(end.Lat, end.Lng) {
		return nil, ErrInvalidCoordinates
	}

	if math.Abs(start.Lat-end.Lat) > e.cfg.MaxDeltaDeg || math.Abs(start.Lng-end.Lng) > e.cfg.MaxDeltaDeg {
		log.Printf("[Routing] Route too long: %.5f,%.5f -> %.5f,%.5f", start.Lat, start.Lng, end.Lat, end.Lng)
		return nil, ErrRouteTooLong
	}

	bbox := graph.BBoxAround(
		spatial.Point{Lat: start.Lat, Lng: start.Lng},
		spatial.Point{Lat: end.Lat, Lng: end.Lng},
		e.cfg.BBoxPadDeg,
	)
	latSpan, lngSpan := bbox.SpanDeg()
	if latSpan > e.cfg.MaxBBoxSpanDeg || lngSpan > e.cfg.MaxBBoxSpanDeg ||
		(e.cfg.MaxBBoxAreaKm2 > 0 && bbox.AreaKm2() > e.cfg.MaxBBoxAreaKm2) {
		log.Printf("[Routing] BBox too large (%.4f, %.4f). Aborting.", latSpan, lngSpan)
		return nil, ErrBBoxTooLarge
	}

	g, err := e.fetchGraph(ctx, bbox)
	if err != nil {
		return nil, err
	}

	src, _ := graph.NearestNode(g, start.Lat, start.Lng)
	dst, _ := graph.NearestNode(g, end.Lat, end.Lng)

	weighter := NewWeighter(e.scores, e.cfg.Alpha, e.cfg.DefaultRisk)
	weights, err := weighter.Weigh(ctx, g)
	if err != nil {
		return nil, e.cancelled(err)
	}
	scoreLookups.Observe(float64(weighter.Lookups()))

	costs := make([]float64, len(weights))
	for i, w := range weights {
		costs[i] = w.Cost
	}

	nodes, edges, err := ShortestPath(ctx, g, costs, src, dst)
	if err != nil {
		if errors.Is(err, ErrNoPath) {
			return nil, err
		}
		return nil, e.cancelled(err)
	}

	result = Summarize(g, nodes, edges, weights)
	span.SetAttributes(
		attribute.Int("route.edges", len(edges)),
		attribute.Float64("route.cost", PathCost(costs, edges)),
		attribute.Float64("route.distance_m", result.DistanceM),
		attribute.Float64("route.avg_risk", result.AvgRisk),
	)
	return result, nil
}

func (e *Engine) fetchGraph(ctx context.Context, bbox graph.BBox) (*graph.StreetGraph, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.GraphTimeout)
	defer cancel()

	g, err := e.provider.WalkGraph(fetchCtx, bbox)
	if err != nil {
		if ctx.Err() != nil {
			return nil, e.cancelled(ctx.Err())
		}
		log.Printf("[Routing] Graph fetch failed for bbox %s: %v", bbox.Key(), err)
		return nil, fmt.Errorf("%w: %v", ErrGraphUnavailable, err)
	}
	if g.Empty() {
		log.Printf("[Routing] Empty graph for bbox %s", bbox.Key())
		return nil, ErrGraphUnavailable
	}
	return g, nil
}

// cancelled reports a caller cancellation as not-found while keeping the
// context error visible to errors.Is
func (e *Engine) cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrRouteNotFound, err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCoordinates):
		return "invalid"
	case errors.Is(err, ErrRouteTooLong):
		return "too_long"
	case errors.Is(err, ErrBBoxTooLarge):
		return "bbox_too_large"
	case errors.Is(err, ErrGraphUnavailable):
		return "graph_unavailable"
	case errors.Is(err, ErrNoPath):
		return "no_path"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
