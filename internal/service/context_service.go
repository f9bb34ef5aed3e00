package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/repository"
	"github.com/jengzang/safety-backend-go/internal/spatial"
	"github.com/jengzang/safety-backend-go/internal/stats"
)

const (
	contextRings  = 5
	contextRadius = "2.5km"
	trendWeeks    = 12

	// alerts are stored on coarse cells; one ring covers roughly 3km
	alertRings  = 1
	alertRadius = "3km"
	alertWindow = 7 * 24 * time.Hour
	alertLimit  = 50
)

// ContextService summarizes the incidents, signals and alerts around a point
type ContextService struct {
	repo    *repository.IncidentRepository
	signals *repository.SignalRepository
	alerts  *repository.AlertRepository
	now     func() time.Time
}

// NewContextService creates a new context service
func NewContextService(repo *repository.IncidentRepository, signals *repository.SignalRepository, alerts *repository.AlertRepository) *ContextService {
	return &ContextService{repo: repo, signals: signals, alerts: alerts, now: time.Now}
}

// Incidents returns the category mix and weekly trend of the last 12 weeks
// of incidents within five fine rings of the point
func (s *ContextService) Incidents(ctx context.Context, lat, lng float64) (*models.IncidentContext, error) {
	cells, err := ringAround(lat, lng, spatial.ResolutionFine, contextRings)
	if err != nil {
		return nil, err
	}

	firstWeek := weekStart(s.now()).AddDate(0, 0, -7*(trendWeeks-1))
	incidents, err := s.repo.ListInCells(ctx, cells, firstWeek)
	if err != nil {
		return nil, err
	}

	weekly := make([]int, trendWeeks)
	byCategory := make(map[string]int)
	for _, inc := range incidents {
		byCategory[inc.Category]++
		i := int(weekStart(inc.OccurredAt).Sub(firstWeek).Hours() / (24 * 7))
		if i >= 0 && i < trendWeeks {
			weekly[i]++
		}
	}

	mix := make([]models.IncidentMix, 0, len(byCategory))
	for category, n := range byCategory {
		mix = append(mix, models.IncidentMix{
			Category: category,
			Count:    n,
			Pct:      stats.Share(n, len(incidents)),
		})
	}
	sort.Slice(mix, func(i, j int) bool {
		if mix[i].Count != mix[j].Count {
			return mix[i].Count > mix[j].Count
		}
		return mix[i].Category < mix[j].Category
	})

	trend := make([]models.IncidentTrend, trendWeeks)
	for i := range trend {
		trend[i] = models.IncidentTrend{
			Week:  firstWeek.AddDate(0, 0, 7*i).Format("2006-01-02"),
			Count: weekly[i],
		}
	}

	coverage := models.CoverageFine
	if len(incidents) == 0 {
		coverage = models.CoverageNone
	}

	return &models.IncidentContext{
		Mix:   mix,
		Trend: trend,
		Meta: models.ContextMeta{
			Radius:   contextRadius,
			Total:    len(incidents),
			Coverage: coverage,
		},
	}, nil
}

// Environment counts the signal observations per metric within five fine
// rings of the point
func (s *ContextService) Environment(ctx context.Context, lat, lng float64) (*models.EnvironmentContext, error) {
	cells, err := ringAround(lat, lng, spatial.ResolutionFine, contextRings)
	if err != nil {
		return nil, err
	}

	counts, err := s.signals.CountsByMetricInCells(ctx, cells)
	if err != nil {
		return nil, err
	}

	total := 0
	metrics := make([]models.EnvironmentMetric, 0, len(counts))
	for metric, n := range counts {
		metrics = append(metrics, models.EnvironmentMetric{Metric: metric, Count: n})
		total += n
	}
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Count != metrics[j].Count {
			return metrics[i].Count > metrics[j].Count
		}
		return metrics[i].Metric < metrics[j].Metric
	})

	coverage := models.CoverageFine
	if total == 0 {
		coverage = models.CoverageNone
	}

	return &models.EnvironmentContext{
		Metrics: metrics,
		Meta: models.ContextMeta{
			Radius:   contextRadius,
			Total:    total,
			Coverage: coverage,
		},
	}, nil
}

// Alerts lists the alerts of the last week issued for the coarse cell of
// the point and its neighbors
func (s *ContextService) Alerts(ctx context.Context, lat, lng float64) (*models.AlertContext, error) {
	cells, err := ringAround(lat, lng, spatial.ResolutionCoarse, alertRings)
	if err != nil {
		return nil, err
	}

	alerts, err := s.alerts.ListInCells(ctx, cells, s.now().Add(-alertWindow), alertLimit)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}

	coverage := models.CoverageCoarse
	if len(alerts) == 0 {
		coverage = models.CoverageNone
	}

	return &models.AlertContext{
		Alerts: alerts,
		Meta: models.ContextMeta{
			Radius:   alertRadius,
			Total:    len(alerts),
			Coverage: coverage,
		},
	}, nil
}

func ringAround(lat, lng float64, res, rings int) ([]string, error) {
	center, err := spatial.CellOf(lat, lng, res)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	cells, err := spatial.NeighborsWithin(center, rings)
	if err != nil {
		return nil, fmt.Errorf("failed to expand cell: %w", err)
	}
	return cells, nil
}

// weekStart returns midnight UTC of the Monday starting t's ISO week
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
}
