// Package risk holds the batch job that recomputes cell risk scores.
package risk

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/safety-backend-go/internal/analysis"
	"github.com/jengzang/safety-backend-go/internal/database"
	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/repository"
	"github.com/jengzang/safety-backend-go/internal/scoring"
	"github.com/jengzang/safety-backend-go/internal/spatial"
)

// JobName is the registry name of the aggregation job
const JobName = "risk_aggregation"

const (
	defaultWorkers = 4
	progressEvery  = 500
)

func init() {
	analysis.Register(JobName, func(db *database.DB, opts analysis.Options) analysis.Job {
		return New(db, opts.Workers)
	})
}

// New wires an aggregation job to the repositories of db
func New(db *database.DB, workers int) *AggregationJob {
	incidents := repository.NewIncidentRepository(db)
	signals := repository.NewSignalRepository(db)
	engine := scoring.NewEngine(repository.NewCellStatsSource(incidents, signals))
	return NewAggregationJob(incidents, engine, repository.NewRiskScoreRepository(db), workers)
}

// CellLister enumerates cells that have incident data
type CellLister interface {
	ActiveCells(ctx context.Context) ([]string, error)
}

// Scorer scores a single cell
type Scorer interface {
	CalculateScore(ctx context.Context, cellID string) (scoring.Result, error)
}

// ScoreWriter persists a score, replacing any previous score of the cell
type ScoreWriter interface {
	Upsert(ctx context.Context, s *models.RiskScore) error
}

// AggregationJob rescores every cell with incident data
type AggregationJob struct {
	cells   CellLister
	scorer  Scorer
	store   ScoreWriter
	workers int
	now     func() time.Time
}

// NewAggregationJob creates a new aggregation job. workers bounds the number
// of cells scored concurrently.
func NewAggregationJob(cells CellLister, scorer Scorer, store ScoreWriter, workers int) *AggregationJob {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &AggregationJob{
		cells:   cells,
		scorer:  scorer,
		store:   store,
		workers: workers,
		now:     time.Now,
	}
}

// Name implements analysis.Job
func (j *AggregationJob) Name() string {
	return JobName
}

// Run scores each active cell and upserts the result. A cell that fails is
// logged and left with its previous score; the pass continues. Cancelling ctx
// stops the pass and returns the context error with the partial summary.
func (j *AggregationJob) Run(ctx context.Context) (analysis.Summary, error) {
	ctx, span := otel.Tracer("safety/aggregation").Start(ctx, "RiskAggregation.Run")
	defer span.End()

	start := j.now()
	log.Printf("[RiskAggregation] Starting aggregation pass")

	cells, err := j.cells.ActiveCells(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list cells")
		return analysis.Summary{}, fmt.Errorf("failed to list active cells: %w", err)
	}
	log.Printf("[RiskAggregation] Processing %d cells", len(cells))

	var updated, failed, done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.workers)

	for _, cellID := range cells {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := j.processCell(gctx, cellID); err != nil {
				if gctx.Err() == nil {
					log.Printf("[RiskAggregation] Failed to update cell %s: %v", cellID, err)
				}
				failed.Add(1)
				cellsProcessed.WithLabelValues("failed").Inc()
			} else {
				updated.Add(1)
				cellsProcessed.WithLabelValues("updated").Inc()
			}

			if n := done.Add(1); n%progressEvery == 0 {
				log.Printf("[RiskAggregation] Processed %d/%d cells", n, len(cells))
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := analysis.Summary{
		ItemsUpdated: int(updated.Load()),
		ItemsFailed:  int(failed.Load()),
		Duration:     j.now().Sub(start),
	}
	runDuration.Observe(summary.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("cells.total", len(cells)),
		attribute.Int("cells.updated", summary.ItemsUpdated),
		attribute.Int("cells.failed", summary.ItemsFailed),
	)

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		log.Printf("[RiskAggregation] Aggregation cancelled after %d cells", summary.ItemsUpdated)
		return summary, err
	}

	log.Printf("[RiskAggregation] Aggregation completed: %d cells updated, %d failed in %v",
		summary.ItemsUpdated, summary.ItemsFailed, summary.Duration)
	return summary, nil
}

func (j *AggregationJob) processCell(ctx context.Context, cellID string) error {
	res, err := j.scorer.CalculateScore(ctx, cellID)
	if err != nil {
		return err
	}

	resolution, err := spatial.ResolutionOf(cellID)
	if err != nil {
		return err
	}
	center, err := spatial.CenterOf(cellID)
	if err != nil {
		return err
	}

	return j.store.Upsert(ctx, &models.RiskScore{
		CellID:     cellID,
		TimeBucket: models.TimeBucketDefault,
		Resolution: resolution,
		CenterLat:  center.Lat,
		CenterLng:  center.Lng,
		Score:      res.Score,
		Confidence: res.Confidence,
		Reasons:    res.Reasons,
		UpdatedAt:  j.now(),
	})
}
