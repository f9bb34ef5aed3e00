package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jengzang/safety-backend-go/internal/database"
	"github.com/jengzang/safety-backend-go/internal/models"
)

// IncidentRepository handles database operations for incidents
type IncidentRepository struct {
	db *database.DB
}

// NewIncidentRepository creates a new incident repository
func NewIncidentRepository(db *database.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// InsertBatch stores incidents in one transaction and returns how many were written
func (r *IncidentRepository) InsertBatch(ctx context.Context, incidents []models.IncidentRecord) (int, error) {
	if len(incidents) == 0 {
		return 0, nil
	}

	err := r.db.Transaction(func(tx *sql.Tx) error {
		return r.insert(ctx, tx, incidents)
	})
	if err != nil {
		return 0, err
	}
	return len(incidents), nil
}

// ReplaceSource swaps every stored incident of a source for incidents in one
// transaction. Baseline sources are re-published whole, so appending would
// double-count them.
func (r *IncidentRepository) ReplaceSource(ctx context.Context, slug string, incidents []models.IncidentRecord) (int, error) {
	err := r.db.Transaction(func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM incidents WHERE source_slug = ?"), slug)
		if err != nil {
			return fmt.Errorf("failed to clear incidents of %s: %w", slug, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			log.Printf("[Ingest] Cleared %d old incidents of %s", n, slug)
		}
		return r.insert(ctx, tx, incidents)
	})
	if err != nil {
		return 0, err
	}
	return len(incidents), nil
}

func (r *IncidentRepository) insert(ctx context.Context, tx *sql.Tx, incidents []models.IncidentRecord) error {
	if len(incidents) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, r.db.Rebind(`INSERT INTO incidents (
		source_slug, category, severity, occurred_at, lat, lng, cell_id
	) VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, inc := range incidents {
		_, err := stmt.ExecContext(ctx,
			inc.SourceSlug, inc.Category, inc.Severity, inc.OccurredAt.Unix(),
			inc.Lat, inc.Lng, inc.CellID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert incident: %w", err)
		}
	}
	return nil
}

// ActiveCells returns the distinct cells with at least one incident
func (r *IncidentRepository) ActiveCells(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT cell_id FROM incidents ORDER BY cell_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query active cells: %w", err)
	}
	defer rows.Close()

	var cells []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan cell id: %w", err)
		}
		cells = append(cells, id)
	}
	return cells, rows.Err()
}

// IncidentSummary is the aggregate incident history of one cell
type IncidentSummary struct {
	Count       int
	AvgSeverity float64
	TopCategory string
}

// Summary aggregates the incidents of a cell
func (r *IncidentRepository) Summary(ctx context.Context, cellID string) (IncidentSummary, error) {
	var (
		sum IncidentSummary
		avg sql.NullFloat64
	)

	query := r.db.Rebind(`SELECT COUNT(*), AVG(severity) FROM incidents WHERE cell_id = ?`)
	if err := r.db.QueryRowContext(ctx, query, cellID).Scan(&sum.Count, &avg); err != nil {
		return sum, fmt.Errorf("failed to summarize incidents: %w", err)
	}
	if sum.Count == 0 {
		return sum, nil
	}
	sum.AvgSeverity = avg.Float64

	query = r.db.Rebind(`SELECT category FROM incidents WHERE cell_id = ?
		GROUP BY category ORDER BY COUNT(*) DESC, category ASC LIMIT 1`)
	err := r.db.QueryRowContext(ctx, query, cellID).Scan(&sum.TopCategory)
	if err != nil && err != sql.ErrNoRows {
		return sum, fmt.Errorf("failed to get top category: %w", err)
	}
	return sum, nil
}

// ListInCells retrieves incidents in any of the given cells that occurred at or after since
func (r *IncidentRepository) ListInCells(ctx context.Context, cells []string, since time.Time) ([]models.IncidentRecord, error) {
	if len(cells) == 0 {
		return nil, nil
	}

	query := r.db.Rebind(fmt.Sprintf(`SELECT id, source_slug, category, severity, occurred_at, lat, lng, cell_id
		FROM incidents
		WHERE cell_id IN (%s) AND occurred_at >= ?
		ORDER BY occurred_at ASC`, placeholders(len(cells))))

	args := append(stringArgs(cells), since.Unix())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []models.IncidentRecord
	for rows.Next() {
		var (
			inc        models.IncidentRecord
			occurredAt int64
		)
		err := rows.Scan(&inc.ID, &inc.SourceSlug, &inc.Category, &inc.Severity,
			&occurredAt, &inc.Lat, &inc.Lng, &inc.CellID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		inc.OccurredAt = time.Unix(occurredAt, 0).UTC()
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// placeholders returns n comma-separated bind markers
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	args := make([]any, 0, len(values)+1)
	for _, v := range values {
		args = append(args, v)
	}
	return args
}
