package models

import "time"

// Confidence grades how much observed data backs a score
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Impact describes the direction a reason pushes the score
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// Reason factors
const (
	FactorCrimeHistory = "crime_history"
	FactorEnvironment  = "environment"
)

// TimeBucketDefault is the only bucket written today. The column is reserved
// for a future time-of-day variant.
const TimeBucketDefault = "default"

// NoCoverageScore is the snapshot-layer sentinel for cells without a score
const NoCoverageScore = -1

// Reason explains one contribution to a cell's score
type Reason struct {
	Factor      string `json:"factor"`
	Impact      Impact `json:"impact"`
	ScoreImpact int    `json:"score_impact"`
	Detail      string `json:"detail"`
}

// RiskScore is the stored safety score of one spatial cell
type RiskScore struct {
	CellID     string     `json:"cell_id" db:"cell_id"`
	TimeBucket string     `json:"time_bucket" db:"time_bucket"`
	Resolution int        `json:"resolution" db:"resolution"`
	CenterLat  float64    `json:"center_lat" db:"center_lat"`
	CenterLng  float64    `json:"center_lng" db:"center_lng"`
	Score      int        `json:"score" db:"score"` // 0-100, higher is safer
	Confidence Confidence `json:"confidence" db:"confidence"`
	Reasons    []Reason   `json:"reasons" db:"reasons_json"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}
