package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/repository"
)

const (
	defaultAlertDays  = 7
	maxAlertDays      = 30
	defaultAlertLimit = 100
	maxAlertLimit     = 500
)

// AlertService serves the feed of recent official alerts
type AlertService struct {
	repo *repository.AlertRepository
	now  func() time.Time
}

// NewAlertService creates a new alert service
func NewAlertService(repo *repository.AlertRepository) *AlertService {
	return &AlertService{repo: repo, now: time.Now}
}

// Recent returns the alerts published in the last filter.Days days, newest first
func (s *AlertService) Recent(ctx context.Context, filter models.AlertFilter) (*models.AlertFeed, error) {
	if filter.Days == 0 {
		filter.Days = defaultAlertDays
	}
	if filter.Days < 1 || filter.Days > maxAlertDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidParameter, maxAlertDays)
	}
	if filter.Limit == 0 {
		filter.Limit = defaultAlertLimit
	}
	if filter.Limit < 1 || filter.Limit > maxAlertLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidParameter, maxAlertLimit)
	}

	since := s.now().UTC().AddDate(0, 0, -filter.Days)
	alerts, err := s.repo.ListRecent(ctx, since, filter.Limit)
	if err != nil {
		return nil, err
	}

	return &models.AlertFeed{
		Alerts: alerts,
		Since:  since.Format(time.RFC3339),
		Total:  len(alerts),
	}, nil
}
