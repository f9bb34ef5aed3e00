// Package scoring turns the observed incident history and environmental
// signals of a cell into a 0-100 safety score (higher is safer) with
// human-readable reasons.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/jengzang/safety-backend-go/internal/models"
)

// Scoring constants
const (
	baseScore = 100.0

	countWeight    = 2.0
	severityWeight = 0.5

	// crime score thresholds selecting the reason tier
	elevatedThreshold     = 60.0
	intermittentThreshold = 85.0

	outagePenaltyPerUnit = 5
	outagePenaltyCap     = 30
	entranceBonusPerUnit = 5
	entranceBonusCap     = 20

	highConfidenceCount   = 50
	mediumConfidenceCount = 5

	// sparse-data floor, waived only at high confidence
	lowDataFloor = 25.0
)

// Reason details
const (
	detailNoIncidents  = "No recent incidents reported"
	detailElevated     = "Historical Incident Context: Reports related to personal safety appear with higher frequency (Aggregated 1yr)"
	detailIntermittent = "Historical Incident Context: Intermittent reports detected. No indication of active threats."
	detailLowDensity   = "Historical Incident Context: Low density of reported incidents."
	detailOutages      = "Environmental Context: %d street light outages detected (Proxy for visibility)"
	detailEntrances    = "Environmental Context: %d subway entrances nearby (Active Transit Zone)"
)

// CellStats is the observed data for one cell
type CellStats struct {
	IncidentCount int
	AvgSeverity   float64
	TopCategory   string
	SignalCounts  map[string]int // metric -> observation count
}

// Result is the output of scoring one cell
type Result struct {
	CellID     string
	Score      int
	Confidence models.Confidence
	Reasons    []models.Reason
}

// Score computes the score of a cell from its stats. It is pure: identical
// stats always produce identical results.
func Score(stats CellStats) Result {
	crimeScore, crimeReason := crimeComponent(stats.IncidentCount, stats.AvgSeverity)
	reasons := []models.Reason{crimeReason}

	raw := crimeScore

	if outages := stats.SignalCounts[models.MetricStreetLightOutage]; outages > 0 {
		penalty := min(outages*outagePenaltyPerUnit, outagePenaltyCap)
		raw -= float64(penalty)
		reasons = append(reasons, models.Reason{
			Factor:      models.FactorEnvironment,
			Impact:      models.ImpactNegative,
			ScoreImpact: -penalty,
			Detail:      fmt.Sprintf(detailOutages, outages),
		})
	}

	if entrances := stats.SignalCounts[models.MetricSubwayEntrance]; entrances > 0 {
		bonus := min(entrances*entranceBonusPerUnit, entranceBonusCap)
		raw += float64(bonus)
		reasons = append(reasons, models.Reason{
			Factor:      models.FactorEnvironment,
			Impact:      models.ImpactPositive,
			ScoreImpact: bonus,
			Detail:      fmt.Sprintf(detailEntrances, entrances),
		})
	}

	confidence := confidenceFor(stats.IncidentCount)

	floor := lowDataFloor
	if confidence == models.ConfidenceHigh {
		floor = 0
	}

	return Result{
		Score:      int(math.Max(floor, math.Min(baseScore, raw))),
		Confidence: confidence,
		Reasons:    reasons,
	}
}

func crimeComponent(count int, avgSeverity float64) (float64, models.Reason) {
	if count == 0 {
		return baseScore, models.Reason{
			Factor:      models.FactorCrimeHistory,
			Impact:      models.ImpactPositive,
			ScoreImpact: 0,
			Detail:      detailNoIncidents,
		}
	}

	riskVal := float64(count)*countWeight + avgSeverity*severityWeight
	crimeScore := baseScore - riskVal

	reason := models.Reason{Factor: models.FactorCrimeHistory}
	switch {
	case crimeScore < elevatedThreshold:
		reason.Impact = models.ImpactNegative
		reason.Detail = detailElevated
	case crimeScore < intermittentThreshold:
		reason.Impact = models.ImpactNeutral
		reason.Detail = detailIntermittent
	default:
		reason.Impact = models.ImpactPositive
		reason.Detail = detailLowDensity
	}
	if riskVal > 0 {
		reason.ScoreImpact = int(-riskVal)
	}

	return crimeScore, reason
}

func confidenceFor(count int) models.Confidence {
	switch {
	case count > highConfidenceCount:
		return models.ConfidenceHigh
	case count > mediumConfidenceCount:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// StatsSource loads the observed data of a cell
type StatsSource interface {
	CellStats(ctx context.Context, cellID string) (CellStats, error)
}

// Engine scores cells from a stats source
type Engine struct {
	source StatsSource
}

// NewEngine creates a new scoring engine
func NewEngine(source StatsSource) *Engine {
	return &Engine{source: source}
}

// CalculateScore loads the stats of cellID and scores it
func (e *Engine) CalculateScore(ctx context.Context, cellID string) (Result, error) {
	stats, err := e.source.CellStats(ctx, cellID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load stats for cell %s: %w", cellID, err)
	}

	res := Score(stats)
	res.CellID = cellID
	return res, nil
}
