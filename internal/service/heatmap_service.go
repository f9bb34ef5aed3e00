package service

import (
	"context"
	"fmt"

	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/repository"
	"github.com/jengzang/safety-backend-go/internal/spatial"
)

// HeatmapService serves scored cells with their outlines
type HeatmapService struct {
	repo *repository.RiskScoreRepository
}

// NewHeatmapService creates a new heatmap service
func NewHeatmapService(repo *repository.RiskScoreRepository) *HeatmapService {
	return &HeatmapService{repo: repo}
}

// Cells returns the scored cells whose centers lie in the filter's bbox
func (s *HeatmapService) Cells(ctx context.Context, filter models.HeatmapFilter) (*models.HeatmapResponse, error) {
	if filter.Resolution == 0 {
		filter.Resolution = spatial.ResolutionFine
	}
	if filter.Resolution != spatial.ResolutionFine && filter.Resolution != spatial.ResolutionCoarse {
		return nil, fmt.Errorf("%w: resolution must be %d or %d", ErrInvalidParameter, spatial.ResolutionFine, spatial.ResolutionCoarse)
	}
	if !spatial.ValidLatLng(filter.MinLat, filter.MinLng) || !spatial.ValidLatLng(filter.MaxLat, filter.MaxLng) {
		return nil, fmt.Errorf("%w: bbox out of range", ErrInvalidParameter)
	}
	if filter.MinLat > filter.MaxLat || filter.MinLng > filter.MaxLng {
		return nil, fmt.Errorf("%w: bbox min exceeds max", ErrInvalidParameter)
	}

	scores, err := s.repo.ListInBBox(ctx, filter)
	if err != nil {
		return nil, err
	}

	cells := make([]models.HeatmapCell, 0, len(scores))
	for _, score := range scores {
		ring, err := spatial.BoundaryOf(score.CellID)
		if err != nil {
			return nil, fmt.Errorf("failed to outline cell %s: %w", score.CellID, err)
		}
		polygon := make([][]float64, len(ring))
		for i, p := range ring {
			polygon[i] = []float64{p.Lng, p.Lat}
		}
		cells = append(cells, models.HeatmapCell{
			CellID:     score.CellID,
			Score:      score.Score,
			Confidence: score.Confidence,
			Polygon:    polygon,
		})
	}

	return &models.HeatmapResponse{
		Cells:      cells,
		Count:      len(cells),
		Resolution: filter.Resolution,
	}, nil
}
