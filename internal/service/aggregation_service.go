package service

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/jengzang/safety-backend-go/internal/analysis"
	"github.com/jengzang/safety-backend-go/internal/database"
	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/repository"
)

// AggregationService runs a registered batch job, normally risk.JobName,
// and reports its runs
type AggregationService struct {
	db      *database.DB
	runs    *repository.JobRunRepository
	job     string
	workers int
	running atomic.Bool
}

// NewAggregationService creates a service running the job registered as job
func NewAggregationService(db *database.DB, runs *repository.JobRunRepository, job string, workers int) *AggregationService {
	return &AggregationService{db: db, runs: runs, job: job, workers: workers}
}

// Run performs one tracked aggregation pass. Only one pass runs at a time.
func (s *AggregationService) Run(ctx context.Context) (analysis.Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return analysis.Summary{}, ErrJobRunning
	}
	defer s.running.Store(false)
	return s.run(ctx)
}

// Start launches a pass in the background and returns immediately. The pass
// outlives the caller's context.
func (s *AggregationService) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrJobRunning
	}
	go func() {
		defer s.running.Store(false)
		if _, err := s.run(context.WithoutCancel(ctx)); err != nil {
			log.Printf("[Aggregation] Background pass failed: %v", err)
		}
	}()
	return nil
}

func (s *AggregationService) run(ctx context.Context) (analysis.Summary, error) {
	job, err := analysis.Get(s.job, s.db, analysis.Options{Workers: s.workers})
	if err != nil {
		return analysis.Summary{}, err
	}

	summary, err := analysis.RunTracked(ctx, job, s.runs)
	if err != nil {
		return summary, err
	}
	log.Printf("[Aggregation] Pass complete: %d updated, %d failed in %s",
		summary.ItemsUpdated, summary.ItemsFailed, summary.Duration)
	return summary, nil
}

// Running reports whether a pass is in progress
func (s *AggregationService) Running() bool {
	return s.running.Load()
}

// LatestRun returns the most recent run of the job, or nil when none exists
func (s *AggregationService) LatestRun(ctx context.Context) (*models.JobRun, error) {
	return s.runs.Latest(ctx, s.job)
}
