package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/safety-backend-go/internal/database"
	"github.com/jengzang/safety-backend-go/internal/models"
)

// SignalRepository handles database operations for environmental signals
type SignalRepository struct {
	db *database.DB
}

// NewSignalRepository creates a new signal repository
func NewSignalRepository(db *database.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// InsertBatch stores signals in one transaction and returns how many were written
func (r *SignalRepository) InsertBatch(ctx context.Context, signals []models.EnvSignal) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}

	query := r.db.Rebind(`INSERT INTO env_signals (
		source_slug, metric, value, ts, lat, lng, cell_id
	) VALUES (?, ?, ?, ?, ?, ?, ?)`)

	err := r.db.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, s := range signals {
			if _, err := stmt.ExecContext(ctx,
				s.SourceSlug, s.Metric, s.Value, s.TS.Unix(), s.Lat, s.Lng, s.CellID,
			); err != nil {
				return fmt.Errorf("failed to insert signal: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(signals), nil
}

// CountsByMetric returns the number of observations per metric in a cell
func (r *SignalRepository) CountsByMetric(ctx context.Context, cellID string) (map[string]int, error) {
	return r.CountsByMetricInCells(ctx, []string{cellID})
}

// CountsByMetricInCells returns the number of observations per metric across cells
func (r *SignalRepository) CountsByMetricInCells(ctx context.Context, cells []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(cells) == 0 {
		return counts, nil
	}

	query := r.db.Rebind(fmt.Sprintf(`SELECT metric, COUNT(*) FROM env_signals
		WHERE cell_id IN (%s) GROUP BY metric`, placeholders(len(cells))))

	rows, err := r.db.QueryContext(ctx, query, stringArgs(cells)...)
	if err != nil {
		return nil, fmt.Errorf("failed to count signals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			metric string
			n      int
		)
		if err := rows.Scan(&metric, &n); err != nil {
			return nil, fmt.Errorf("failed to scan signal count: %w", err)
		}
		counts[metric] = n
	}
	return counts, rows.Err()
}
