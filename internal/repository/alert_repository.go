package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jengzang/safety-backend-go/internal/database"
	"github.com/jengzang/safety-backend-go/internal/models"
)

// AlertRepository handles database operations for official alerts
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// InsertBatch stores alerts in one transaction, skipping alerts already stored
// under the same source and external id. It returns how many were new.
func (r *AlertRepository) InsertBatch(ctx context.Context, alerts []models.Alert) (int, error) {
	if len(alerts) == 0 {
		return 0, nil
	}

	query := r.db.Rebind(`INSERT INTO alerts (
		source_slug, external_id, title, summary, category, severity, url,
		published_at, expires_at, lat, lng, cell_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (source_slug, external_id) DO NOTHING`)

	inserted := 0
	err := r.db.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, a := range alerts {
			var expires sql.NullInt64
			if a.ExpiresAt != nil {
				expires = sql.NullInt64{Int64: a.ExpiresAt.Unix(), Valid: true}
			}
			res, err := stmt.ExecContext(ctx,
				a.SourceSlug, a.ExternalID, a.Title, a.Summary, a.Category, a.Severity, a.URL,
				a.PublishedAt.Unix(), expires, a.Lat, a.Lng, a.CellID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert alert: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read insert result: %w", err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

const alertColumns = `id, source_slug, external_id, title, summary, category, severity, url,
	published_at, expires_at, lat, lng, cell_id`

// ListRecent retrieves alerts published at or after since, newest first
func (r *AlertRepository) ListRecent(ctx context.Context, since time.Time, limit int) ([]models.Alert, error) {
	query := r.db.Rebind(`SELECT ` + alertColumns + ` FROM alerts
		WHERE published_at >= ?
		ORDER BY published_at DESC, id DESC
		LIMIT ?`)
	return r.query(ctx, query, since.Unix(), limit)
}

// ListInCells retrieves alerts in any of the given cells published at or
// after since, newest first
func (r *AlertRepository) ListInCells(ctx context.Context, cells []string, since time.Time, limit int) ([]models.Alert, error) {
	if len(cells) == 0 {
		return nil, nil
	}

	query := r.db.Rebind(fmt.Sprintf(`SELECT `+alertColumns+` FROM alerts
		WHERE cell_id IN (%s) AND published_at >= ?
		ORDER BY published_at DESC, id DESC
		LIMIT ?`, placeholders(len(cells))))

	args := append(stringArgs(cells), since.Unix(), limit)
	return r.query(ctx, query, args...)
}

func (r *AlertRepository) query(ctx context.Context, query string, args ...any) ([]models.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		var (
			a         models.Alert
			published int64
			expires   sql.NullInt64
		)
		err := rows.Scan(&a.ID, &a.SourceSlug, &a.ExternalID, &a.Title, &a.Summary, &a.Category,
			&a.Severity, &a.URL, &published, &expires, &a.Lat, &a.Lng, &a.CellID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.PublishedAt = time.Unix(published, 0).UTC()
		if expires.Valid {
			t := time.Unix(expires.Int64, 0).UTC()
			a.ExpiresAt = &t
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
