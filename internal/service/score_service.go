package service

import (
	"context"
	"fmt"

	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/repository"
	"github.com/jengzang/safety-backend-go/internal/spatial"
)

// ScoreService serves stored cell scores
type ScoreService struct {
	repo *repository.RiskScoreRepository
}

// NewScoreService creates a new score service
func NewScoreService(repo *repository.RiskScoreRepository) *ScoreService {
	return &ScoreService{repo: repo}
}

// GetScore returns the stored score of a cell, or nil when the cell has none
func (s *ScoreService) GetScore(ctx context.Context, cellID string) (*models.RiskScore, error) {
	if _, err := spatial.ParseCell(cellID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	return s.repo.Get(ctx, cellID, models.TimeBucketDefault)
}

// Snapshot returns the score covering a coordinate. The fine cell is tried
// first, then the coarse cell; without either the no-coverage sentinel is returned.
func (s *ScoreService) Snapshot(ctx context.Context, lat, lng float64) (*models.SafetySnapshot, error) {
	if !spatial.ValidLatLng(lat, lng) {
		return nil, fmt.Errorf("%w: coordinate (%f, %f)", ErrInvalidParameter, lat, lng)
	}

	tiers := []struct {
		resolution int
		coverage   string
	}{
		{spatial.ResolutionFine, models.CoverageFine},
		{spatial.ResolutionCoarse, models.CoverageCoarse},
	}

	for _, tier := range tiers {
		cellID, err := spatial.CellOf(lat, lng, tier.resolution)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		score, err := s.repo.Get(ctx, cellID, models.TimeBucketDefault)
		if err != nil {
			return nil, fmt.Errorf("failed to get score: %w", err)
		}
		if score == nil {
			continue
		}

		reasons := score.Reasons
		if reasons == nil {
			reasons = []models.Reason{}
		}
		return &models.SafetySnapshot{
			Score:      score.Score,
			Confidence: score.Confidence,
			Reasons:    reasons,
			CellID:     cellID,
			Resolution: tier.resolution,
			Coverage:   tier.coverage,
			UpdatedAt:  score.UpdatedAt.Unix(),
		}, nil
	}

	return &models.SafetySnapshot{
		Score:      models.NoCoverageScore,
		Confidence: models.ConfidenceLow,
		Reasons:    []models.Reason{},
		Coverage:   models.CoverageNone,
	}, nil
}
