package models

import "time"

// Environmental metric names understood by the scoring engine
const (
	MetricStreetLightOutage = "street_light_outage"
	MetricSubwayEntrance    = "subway_entrance"
)

// IncidentRecord is a normalized, geocoded historical incident
type IncidentRecord struct {
	ID         int64     `json:"id" db:"id"`
	SourceSlug string    `json:"source_slug" db:"source_slug"`
	Category   string    `json:"category" db:"category"`
	Severity   int       `json:"severity" db:"severity"` // 0-100
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
	Lat        float64   `json:"lat" db:"lat"`
	Lng        float64   `json:"lng" db:"lng"`
	CellID     string    `json:"cell_id" db:"cell_id"`
}

// EnvSignal is a geocoded environmental observation (outage, transit entrance, ...)
type EnvSignal struct {
	ID         int64     `json:"id" db:"id"`
	SourceSlug string    `json:"source_slug" db:"source_slug"`
	Metric     string    `json:"metric" db:"metric"`
	Value      float64   `json:"value" db:"value"`
	TS         time.Time `json:"ts" db:"ts"`
	Lat        float64   `json:"lat" db:"lat"`
	Lng        float64   `json:"lng" db:"lng"`
	CellID     string    `json:"cell_id" db:"cell_id"`
}

// Alert categories
const (
	AlertCategoryWeather = "environment_weather"
	AlertCategoryTransit = "transit"
)

// Alert is an official notice (weather warning, transit disruption) pinned
// to a coarse cell. ExternalID deduplicates repeated fetches of one source.
type Alert struct {
	ID          int64      `json:"id" db:"id"`
	SourceSlug  string     `json:"source_slug" db:"source_slug"`
	ExternalID  string     `json:"-" db:"external_id"`
	Title       string     `json:"title" db:"title"`
	Summary     string     `json:"summary" db:"summary"`
	Category    string     `json:"category" db:"category"`
	Severity    int        `json:"severity" db:"severity"` // 0-100
	URL         string     `json:"url" db:"url"`
	PublishedAt time.Time  `json:"published_at" db:"published_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	Lat         float64    `json:"lat" db:"lat"`
	Lng         float64    `json:"lng" db:"lng"`
	CellID      string     `json:"cell_id" db:"cell_id"`
}
