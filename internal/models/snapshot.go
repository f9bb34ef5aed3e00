package models

// Coverage labels for snapshots
const (
	CoverageFine   = "fine"
	CoverageCoarse = "coarse"
	CoverageNone   = "none"
)

// SafetySnapshot is the score served for a coordinate
type SafetySnapshot struct {
	Score      int        `json:"score"` // -1 when no coverage
	Confidence Confidence `json:"confidence"`
	Reasons    []Reason   `json:"reasons"`
	CellID     string     `json:"cell_id,omitempty"`
	Resolution int        `json:"resolution,omitempty"`
	Coverage   string     `json:"coverage"`
	UpdatedAt  int64      `json:"updated_at,omitempty"` // Unix timestamp
}

// HeatmapCell is one scored cell with its outline for map rendering
type HeatmapCell struct {
	CellID     string      `json:"cell_id"`
	Score      int         `json:"score"`
	Confidence Confidence  `json:"confidence"`
	Polygon    [][]float64 `json:"polygon"` // closed ring of [lng, lat]
}

// HeatmapResponse represents the heatmap API response
type HeatmapResponse struct {
	Cells      []HeatmapCell `json:"cells"`
	Count      int           `json:"count"`
	Resolution int           `json:"resolution"`
}

// IncidentMix is the share of one category around a point
type IncidentMix struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Pct      float64 `json:"pct"`
}

// IncidentTrend is the incident count of one ISO week
type IncidentTrend struct {
	Week  string `json:"week"` // date of the week's Monday, YYYY-MM-DD
	Count int    `json:"count"`
}

// ContextMeta describes the query that produced an incident context
type ContextMeta struct {
	Radius   string `json:"radius"`
	Total    int    `json:"total"`
	Coverage string `json:"coverage"`
}

// IncidentContext summarizes incidents around a point
type IncidentContext struct {
	Mix   []IncidentMix   `json:"mix"`
	Trend []IncidentTrend `json:"trend"`
	Meta  ContextMeta     `json:"meta"`
}

// EnvironmentMetric counts the observations of one signal metric
type EnvironmentMetric struct {
	Metric string `json:"metric"`
	Count  int    `json:"count"`
}

// EnvironmentContext summarizes the environmental signals around a point
type EnvironmentContext struct {
	Metrics []EnvironmentMetric `json:"metrics"`
	Meta    ContextMeta         `json:"meta"`
}

// AlertContext lists the official alerts issued around a point
type AlertContext struct {
	Alerts []Alert     `json:"alerts"`
	Meta   ContextMeta `json:"meta"`
}
