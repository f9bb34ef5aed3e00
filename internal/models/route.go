package models

// Safety levels assigned to a computed route
const (
	SafetyLevelHigh   = "High"
	SafetyLevelMedium = "Medium"
	SafetyLevelLow    = "Low"
)

// LatLng is a WGS84 coordinate
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteRequest represents the request body for a safer route
type RouteRequest struct {
	Start *LatLng `json:"start" binding:"required"`
	End   *LatLng `json:"end" binding:"required"`
}

// RouteResult is the outcome of a successful route computation
type RouteResult struct {
	Path        []LatLng `json:"path"`
	DistanceM   float64  `json:"distance_m"`
	AvgRisk     float64  `json:"avg_risk"` // 0-100, length-weighted
	SafetyLevel string   `json:"safety_level"`
	Explanation []string `json:"explanation"`
}
