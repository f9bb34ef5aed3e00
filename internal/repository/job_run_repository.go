package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jengzang/safety-backend-go/internal/database"
	"github.com/jengzang/safety-backend-go/internal/models"
)

// JobRunRepository handles database operations for batch job runs
type JobRunRepository struct {
	db *database.DB
}

// NewJobRunRepository creates a new job run repository
func NewJobRunRepository(db *database.DB) *JobRunRepository {
	return &JobRunRepository{db: db}
}

// Start records a running job and returns its id
func (r *JobRunRepository) Start(ctx context.Context, jobName string) (int64, error) {
	query := r.db.Rebind(`INSERT INTO job_runs (job_name, status, started_at)
		VALUES (?, ?, ?) RETURNING id`)

	var id int64
	err := r.db.QueryRowContext(ctx, query, jobName, models.JobStatusRunning, time.Now().Unix()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to start job run: %w", err)
	}
	return id, nil
}

// Finish marks a job run as completed with the given status and counts
func (r *JobRunRepository) Finish(ctx context.Context, id int64, status string, updated, failed int, summary, errMsg string) error {
	query := r.db.Rebind(`UPDATE job_runs
		SET status = ?, items_updated = ?, items_failed = ?,
		    result_summary = ?, error_message = ?, completed_at = ?
		WHERE id = ?`)

	_, err := r.db.ExecContext(ctx, query, status, updated, failed, summary, errMsg, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to finish job run %d: %w", id, err)
	}
	return nil
}

// Latest returns the most recent run of a job. Returns (nil, nil) when it never ran.
func (r *JobRunRepository) Latest(ctx context.Context, jobName string) (*models.JobRun, error) {
	query := r.db.Rebind(`SELECT id, job_name, status, items_updated, items_failed,
		result_summary, error_message, started_at, completed_at
		FROM job_runs WHERE job_name = ?
		ORDER BY started_at DESC, id DESC LIMIT 1`)

	var (
		run         models.JobRun
		startedAt   int64
		completedAt sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, jobName).Scan(
		&run.ID, &run.JobName, &run.Status, &run.ItemsUpdated, &run.ItemsFailed,
		&run.ResultSummary, &run.ErrorMessage, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest job run: %w", err)
	}

	run.StartedAt = time.Unix(startedAt, 0)
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0)
		run.CompletedAt = &t
	}
	return &run, nil
}
