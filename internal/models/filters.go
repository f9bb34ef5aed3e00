package models

// HeatmapFilter represents query parameters for the heatmap endpoint
type HeatmapFilter struct {
	MinLat     float64 `form:"minLat"`
	MaxLat     float64 `form:"maxLat"`
	MinLng     float64 `form:"minLng"`
	MaxLng     float64 `form:"maxLng"`
	Resolution int     `form:"resolution"` // 9 (default) or 7
	Limit      int     `form:"limit"`
}

// PointQuery represents lat/lng query parameters
type PointQuery struct {
	Lat *float64 `form:"lat" binding:"required"`
	Lng *float64 `form:"lng" binding:"required"`
}

// AlertFilter represents query parameters for the alert feed
type AlertFilter struct {
	Days  int `form:"days"`
	Limit int `form:"limit"`
}

// AlertFeed is the list of recent alerts across all sources
type AlertFeed struct {
	Alerts []Alert `json:"alerts"`
	Since  string  `json:"since"`
	Total  int     `json:"total"`
}
