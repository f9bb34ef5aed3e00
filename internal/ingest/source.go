package ingest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/spatial"
)

// Bounds is a lat/lng window; records outside it are dropped as geocoding outliers
type Bounds struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLng float64 `yaml:"min_lng"`
	MaxLng float64 `yaml:"max_lng"`
}

// Contains reports whether (lat, lng) lies inside the window
func (b *Bounds) Contains(lat, lng float64) bool {
	if b == nil {
		return true
	}
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Columns maps CSV header names to record fields
type Columns struct {
	Lat      string `yaml:"lat"`
	Lng      string `yaml:"lng"`
	Category string `yaml:"category"`
	Date     string `yaml:"date"`
	Time     string `yaml:"time"`
	Count    string `yaml:"count"` // baseline rows: incidents the row stands for

	// optional row filter: keep rows whose Filter column contains FilterValue
	Filter      string `yaml:"filter"`
	FilterValue string `yaml:"filter_value"`
}

// Point is a registry coordinate
type Point struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// Source is one entry of the source registry
type Source struct {
	Slug       string  `yaml:"slug"`
	Name       string  `yaml:"name"`
	Kind       string  `yaml:"kind"`
	URL        string  `yaml:"url"`
	Metric     string  `yaml:"metric"`
	Enabled    bool    `yaml:"enabled"`
	Bounds     *Bounds `yaml:"bounds"`
	Columns    Columns `yaml:"columns"`
	DateLayout string  `yaml:"date_layout"`
	TimeLayout string  `yaml:"time_layout"`

	// Rules names the classifier for raw incident categories (see LookupRules)
	Rules string `yaml:"rules"`

	// Resolution of the cells records are stored under. Defaults to fine for
	// incidents and signals, coarse for baselines and alerts.
	Resolution int `yaml:"resolution"`

	// MaxPerRow caps the incidents a single baseline row expands into
	MaxPerRow int `yaml:"max_per_row"`

	// Center locates alerts that carry no geometry of their own
	Center *Point `yaml:"center"`

	// Category and Severity label every alert of an rss_alerts feed
	Category string `yaml:"category"`
	Severity int    `yaml:"severity"`
}

const defaultMaxPerRow = 5000

func (s *Source) applyDefaults() {
	if s.Columns.Lat == "" {
		s.Columns.Lat = "Latitude"
	}
	if s.Columns.Lng == "" {
		s.Columns.Lng = "Longitude"
	}
	if s.DateLayout == "" {
		s.DateLayout = "01/02/2006"
	}
	if s.Resolution == 0 {
		switch s.Kind {
		case KindCSVBaseline, KindNWSAlerts, KindRSSAlerts:
			s.Resolution = spatial.ResolutionCoarse
		default:
			s.Resolution = spatial.ResolutionFine
		}
	}
	switch s.Kind {
	case KindCSVBaseline:
		if s.MaxPerRow == 0 {
			s.MaxPerRow = defaultMaxPerRow
		}
	case KindRSSAlerts:
		if s.Category == "" {
			s.Category = models.AlertCategoryTransit
		}
		if s.Severity == 0 {
			s.Severity = 10
		}
	}
}

func (s *Source) validate() error {
	if s.Slug == "" {
		return fmt.Errorf("source without slug")
	}
	if s.URL == "" {
		return fmt.Errorf("source %s: url is required", s.Slug)
	}
	if !KnownKind(s.Kind) {
		return fmt.Errorf("source %s: unknown kind %q", s.Slug, s.Kind)
	}
	if s.Resolution != spatial.ResolutionFine && s.Resolution != spatial.ResolutionCoarse {
		return fmt.Errorf("source %s: resolution must be %d or %d, got %d",
			s.Slug, spatial.ResolutionFine, spatial.ResolutionCoarse, s.Resolution)
	}

	switch s.Kind {
	case KindCSVIncidents, KindCSVBaseline:
		if s.Columns.Category == "" {
			return fmt.Errorf("source %s: columns.category is required for %s", s.Slug, s.Kind)
		}
		if _, ok := LookupRules(s.Rules); !ok {
			return fmt.Errorf("source %s: rules must name one of [%s], got %q",
				s.Slug, strings.Join(RuleSetNames(), ", "), s.Rules)
		}
		if s.Kind == KindCSVBaseline && s.Columns.Count == "" {
			return fmt.Errorf("source %s: columns.count is required for %s", s.Slug, s.Kind)
		}
	case KindCSVSignals:
		if s.Metric == "" {
			return fmt.Errorf("source %s: metric is required for %s", s.Slug, s.Kind)
		}
	case KindRSSAlerts:
		if s.Center == nil {
			return fmt.Errorf("source %s: center is required for %s", s.Slug, s.Kind)
		}
	}
	if s.Center != nil && !spatial.ValidLatLng(s.Center.Lat, s.Center.Lng) {
		return fmt.Errorf("source %s: invalid center", s.Slug)
	}
	return nil
}

// LoadSources reads and validates a YAML source registry
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source registry: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes and validates a YAML source registry
func ParseSources(data []byte) ([]Source, error) {
	var sources []Source
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to parse source registry: %w", err)
	}

	seen := make(map[string]bool)
	for i := range sources {
		sources[i].applyDefaults()
		if err := sources[i].validate(); err != nil {
			return nil, err
		}
		if seen[sources[i].Slug] {
			return nil, fmt.Errorf("duplicate source slug %q", sources[i].Slug)
		}
		seen[sources[i].Slug] = true
	}
	return sources, nil
}
