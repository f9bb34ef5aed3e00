package repository

import (
	"context"

	"github.com/jengzang/safety-backend-go/internal/scoring"
)

// CellStatsSource combines incident and signal aggregates into scoring input
type CellStatsSource struct {
	incidents *IncidentRepository
	signals   *SignalRepository
}

// NewCellStatsSource creates a new stats source
func NewCellStatsSource(incidents *IncidentRepository, signals *SignalRepository) *CellStatsSource {
	return &CellStatsSource{incidents: incidents, signals: signals}
}

// CellStats implements scoring.StatsSource
func (s *CellStatsSource) CellStats(ctx context.Context, cellID string) (scoring.CellStats, error) {
	summary, err := s.incidents.Summary(ctx, cellID)
	if err != nil {
		return scoring.CellStats{}, err
	}

	counts, err := s.signals.CountsByMetric(ctx, cellID)
	if err != nil {
		return scoring.CellStats{}, err
	}

	return scoring.CellStats{
		IncidentCount: summary.Count,
		AvgSeverity:   summary.AvgSeverity,
		TopCategory:   summary.TopCategory,
		SignalCounts:  counts,
	}, nil
}
