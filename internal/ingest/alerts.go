package ingest

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/spatial"
)

// maxAlertPayload bounds a single alert feed download
const maxAlertPayload = 16 << 20

// nwsSeverity maps NWS CAP severities onto the 0-100 scale
var nwsSeverity = map[string]int{
	"Extreme":  100,
	"Severe":   80,
	"Moderate": 50,
	"Minor":    20,
}

const nwsUnknownSeverity = 10

// locate resolves an alert position to a cell, falling back to the source
// center when the alert has no usable geometry
func locate(src Source, p *spatial.Point) (spatial.Point, string, bool) {
	if p == nil || !spatial.ValidLatLng(p.Lat, p.Lng) || (p.Lat == 0 && p.Lng == 0) {
		if src.Center == nil {
			return spatial.Point{}, "", false
		}
		p = &spatial.Point{Lat: src.Center.Lat, Lng: src.Center.Lng}
	}
	if !src.Bounds.Contains(p.Lat, p.Lng) {
		return spatial.Point{}, "", false
	}
	cell, err := spatial.CellOf(p.Lat, p.Lng, src.Resolution)
	if err != nil {
		return spatial.Point{}, "", false
	}
	return *p, cell, true
}

// nwsConnector reads active alerts from the api.weather.gov GeoJSON feed
type nwsConnector struct {
	src  Source
	deps Deps
}

func newNWSConnector(src Source, deps Deps) Connector {
	return &nwsConnector{src: src, deps: deps}
}

func (c *nwsConnector) Fetch(ctx context.Context) (io.ReadCloser, error) {
	header := http.Header{}
	header.Set("Accept", "application/geo+json")
	// api.weather.gov rejects requests without a User-Agent
	header.Set("User-Agent", "safety-backend-go (ingest)")
	return open(ctx, c.deps.Client, c.src.URL, header)
}

func (c *nwsConnector) Run(ctx context.Context) (int, error) {
	return run(ctx, c, c.src, c.deps)
}

type nwsGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type nwsFeature struct {
	Geometry   *nwsGeometry `json:"geometry"`
	Properties struct {
		ID          string `json:"id"`
		Event       string `json:"event"`
		Headline    string `json:"headline"`
		Description string `json:"description"`
		Instruction string `json:"instruction"`
		Severity    string `json:"severity"`
		Sent        string `json:"sent"`
		Expires     string `json:"expires"`
	} `json:"properties"`
}

func (c *nwsConnector) Parse(r io.Reader) (Batch, error) {
	var doc struct {
		Features []nwsFeature `json:"features"`
	}
	if err := json.NewDecoder(io.LimitReader(r, maxAlertPayload)).Decode(&doc); err != nil {
		return Batch{}, fmt.Errorf("failed to decode alerts: %w", err)
	}

	var batch Batch
	for _, f := range doc.Features {
		props := f.Properties
		title := props.Headline
		if title == "" {
			title = props.Event
		}
		if props.ID == "" || title == "" {
			batch.Skipped++
			continue
		}

		pos, cell, ok := locate(c.src, geometryCentroid(f.Geometry))
		if !ok {
			batch.Skipped++
			continue
		}

		summary := props.Description
		if summary == "" {
			summary = props.Instruction
		}
		severity, known := nwsSeverity[props.Severity]
		if !known {
			severity = nwsUnknownSeverity
		}
		published, err := time.Parse(time.RFC3339, props.Sent)
		if err != nil {
			published = c.deps.Now()
		}

		alert := models.Alert{
			SourceSlug:  c.src.Slug,
			ExternalID:  props.ID,
			Title:       title,
			Summary:     summary,
			Category:    models.AlertCategoryWeather,
			Severity:    severity,
			URL:         props.ID,
			PublishedAt: published.UTC(),
			Lat:         pos.Lat,
			Lng:         pos.Lng,
			CellID:      cell,
		}
		if expires, err := time.Parse(time.RFC3339, props.Expires); err == nil {
			expires = expires.UTC()
			alert.ExpiresAt = &expires
		}
		batch.Alerts = append(batch.Alerts, alert)
	}
	return batch, nil
}

// geometryCentroid reduces a GeoJSON Point, Polygon or MultiPolygon to one
// position: the point itself or the vertex mean of the first outer ring.
func geometryCentroid(g *nwsGeometry) *spatial.Point {
	if g == nil || len(g.Coordinates) == 0 {
		return nil
	}

	var ring [][]float64
	switch g.Type {
	case "Point":
		var pos []float64
		if err := json.Unmarshal(g.Coordinates, &pos); err != nil || len(pos) < 2 {
			return nil
		}
		return &spatial.Point{Lat: pos[1], Lng: pos[0]}
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil || len(rings) == 0 {
			return nil
		}
		ring = rings[0]
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil || len(polys) == 0 || len(polys[0]) == 0 {
			return nil
		}
		ring = polys[0][0]
	default:
		return nil
	}

	points := make([]spatial.Point, 0, len(ring))
	for _, pos := range ring {
		if len(pos) >= 2 {
			points = append(points, spatial.Point{Lat: pos[1], Lng: pos[0]})
		}
	}
	if len(points) == 0 {
		return nil
	}
	center := spatial.Centroid(points)
	return &center
}

// rssConnector reads an RSS 2.0 feed, taking positions from georss:point
// when present
type rssConnector struct {
	src  Source
	deps Deps
}

func newRSSConnector(src Source, deps Deps) Connector {
	return &rssConnector{src: src, deps: deps}
}

func (c *rssConnector) Fetch(ctx context.Context) (io.ReadCloser, error) {
	return open(ctx, c.deps.Client, c.src.URL, nil)
}

func (c *rssConnector) Run(ctx context.Context) (int, error) {
	return run(ctx, c, c.src, c.deps)
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Point       string `xml:"http://www.georss.org/georss point"`
}

var rssDateLayouts = []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339}

func (c *rssConnector) Parse(r io.Reader) (Batch, error) {
	var feed struct {
		Items []rssItem `xml:"channel>item"`
	}
	dec := xml.NewDecoder(io.LimitReader(r, maxAlertPayload))
	dec.Strict = false
	if err := dec.Decode(&feed); err != nil {
		return Batch{}, fmt.Errorf("failed to decode feed: %w", err)
	}

	var batch Batch
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			batch.Skipped++
			continue
		}

		pos, cell, ok := locate(c.src, parseGeoRSSPoint(item.Point))
		if !ok {
			batch.Skipped++
			continue
		}

		published := c.deps.Now()
		for _, layout := range rssDateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(item.PubDate)); err == nil {
				published = t
				break
			}
		}

		id := strings.TrimSpace(item.GUID)
		if id == "" {
			id = strings.TrimSpace(item.Link)
		}
		if id == "" {
			id = title + "|" + strconv.FormatInt(published.Unix(), 10)
		}

		batch.Alerts = append(batch.Alerts, models.Alert{
			SourceSlug:  c.src.Slug,
			ExternalID:  id,
			Title:       title,
			Summary:     strings.TrimSpace(item.Description),
			Category:    c.src.Category,
			Severity:    c.src.Severity,
			URL:         strings.TrimSpace(item.Link),
			PublishedAt: published.UTC(),
			Lat:         pos.Lat,
			Lng:         pos.Lng,
			CellID:      cell,
		})
	}
	return batch, nil
}

// parseGeoRSSPoint reads a "lat lng" georss:point value
func parseGeoRSSPoint(v string) *spatial.Point {
	fields := strings.Fields(v)
	if len(fields) != 2 {
		return nil
	}
	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil
	}
	return &spatial.Point{Lat: lat, Lng: lng}
}
