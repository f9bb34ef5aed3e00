package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jengzang/safety-backend-go/internal/spatial"
)

// DefaultOverpassURL is the public Overpass API interpreter endpoint
const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

// highway values a pedestrian can use
const walkableHighways = "footway|pedestrian|path|steps|living_street|residential|service|unclassified|tertiary|tertiary_link|secondary|secondary_link|primary|primary_link|track|cycleway"

const maxOverpassResponse = 64 << 20

// OverpassProvider downloads walkable ways from an Overpass API endpoint
type OverpassProvider struct {
	endpoint string
	client   *http.Client
}

// NewOverpassProvider creates a provider for endpoint. The caller's context
// bounds each request; client may be nil.
func NewOverpassProvider(endpoint string, client *http.Client) *OverpassProvider {
	if endpoint == "" {
		endpoint = DefaultOverpassURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &OverpassProvider{endpoint: endpoint, client: client}
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type  string            `json:"type"`
	ID    int64             `json:"id"`
	Lat   float64           `json:"lat"`
	Lon   float64           `json:"lon"`
	Nodes []int64           `json:"nodes"`
	Tags  map[string]string `json:"tags"`
}

func overpassQuery(b BBox) string {
	return fmt.Sprintf(`[out:json][timeout:25];
way["highway"~"^(%s)$"]["foot"!="no"]["access"!="private"](%f,%f,%f,%f);
(._;>;);
out body;`, walkableHighways, b.South, b.West, b.North, b.East)
}

// WalkGraph implements Provider
func (p *OverpassProvider) WalkGraph(ctx context.Context, bbox BBox) (*StreetGraph, error) {
	ctx, span := otel.Tracer("safety/graph").Start(ctx, "Overpass.WalkGraph")
	defer span.End()

	start := time.Now()
	g, err := p.fetch(ctx, bbox)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
	case g.Empty():
		outcome = "empty"
		err = ErrEmptyGraph
	default:
		span.SetAttributes(
			attribute.Int("graph.nodes", len(g.Nodes)),
			attribute.Int("graph.edges", len(g.Edges)),
		)
	}
	fetchLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}
	return g, nil
}

func (p *OverpassProvider) fetch(ctx context.Context, bbox BBox) (*StreetGraph, error) {
	form := url.Values{"data": {overpassQuery(bbox)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query overpass: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("overpass returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data overpassResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOverpassResponse)).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode overpass response: %w", err)
	}

	g := buildGraph(data.Elements)
	log.Printf("[Overpass] Loaded %d nodes, %d edges for bbox %s", len(g.Nodes), len(g.Edges), bbox.Key())
	return g, nil
}

// buildGraph splits ways at junctions so every edge joins two graph nodes and
// keeps the intermediate vertices as edge geometry. Ways are walkable in both
// directions.
func buildGraph(elements []overpassElement) *StreetGraph {
	coords := make(map[int64]spatial.Point)
	var ways []overpassElement
	for _, el := range elements {
		switch el.Type {
		case "node":
			coords[el.ID] = spatial.Point{Lat: el.Lat, Lng: el.Lon}
		case "way":
			if len(el.Nodes) >= 2 {
				ways = append(ways, el)
			}
		}
	}

	// a node is a junction when it ends a way or is shared by several ways
	uses := make(map[int64]int)
	junction := make(map[int64]bool)
	for _, w := range ways {
		junction[w.Nodes[0]] = true
		junction[w.Nodes[len(w.Nodes)-1]] = true
		for _, id := range w.Nodes {
			uses[id]++
		}
	}
	for id, n := range uses {
		if n > 1 {
			junction[id] = true
		}
	}

	g := NewStreetGraph()
	for _, w := range ways {
		segStart := 0
		geom := make([]spatial.Point, 0, len(w.Nodes))
		for i, id := range w.Nodes {
			pt, ok := coords[id]
			if !ok {
				// incomplete way data: restart the segment after the gap
				geom = geom[:0]
				segStart = i + 1
				continue
			}
			geom = append(geom, pt)

			if i == segStart || !junction[id] {
				continue
			}

			from, to := w.Nodes[segStart], id
			if len(geom) >= 2 && from != to {
				addBidirectional(g, from, to, geom)
			}
			segStart = i
			geom = append(geom[:0:0], pt)
		}
	}
	return g
}

func addBidirectional(g *StreetGraph, from, to int64, geom []spatial.Point) {
	forward := make([]spatial.Point, len(geom))
	copy(forward, geom)
	backward := make([]spatial.Point, len(geom))
	for i, pt := range geom {
		backward[len(geom)-1-i] = pt
	}

	length := spatial.PathLength(forward)
	g.AddNode(Node{ID: from, Lat: forward[0].Lat, Lng: forward[0].Lng})
	g.AddNode(Node{ID: to, Lat: forward[len(forward)-1].Lat, Lng: forward[len(forward)-1].Lng})
	g.AddEdge(Edge{From: from, To: to, LengthM: length, Geometry: forward})
	g.AddEdge(Edge{From: to, To: from, LengthM: length, Geometry: backward})
}
