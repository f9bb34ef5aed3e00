package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jengzang/safety-backend-go/internal/database"
	"github.com/jengzang/safety-backend-go/internal/models"
)

const defaultHeatmapLimit = 5000

// RiskScoreRepository handles database operations for cell risk scores
type RiskScoreRepository struct {
	db *database.DB
}

// NewRiskScoreRepository creates a new risk score repository
func NewRiskScoreRepository(db *database.DB) *RiskScoreRepository {
	return &RiskScoreRepository{db: db}
}

// Upsert inserts a score or replaces the existing one for (cell_id, time_bucket).
// A single statement, so concurrent readers see the old row or the new row.
func (r *RiskScoreRepository) Upsert(ctx context.Context, s *models.RiskScore) error {
	if s.TimeBucket == "" {
		s.TimeBucket = models.TimeBucketDefault
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}

	reasons := s.Reasons
	if reasons == nil {
		reasons = []models.Reason{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}

	query := r.db.Rebind(`
		INSERT INTO risk_scores (
			cell_id, time_bucket, resolution, center_lat, center_lng,
			score, confidence, reasons_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (cell_id, time_bucket) DO UPDATE SET
			resolution = excluded.resolution,
			center_lat = excluded.center_lat,
			center_lng = excluded.center_lng,
			score = excluded.score,
			confidence = excluded.confidence,
			reasons_json = excluded.reasons_json,
			updated_at = excluded.updated_at
	`)

	_, err = r.db.ExecContext(ctx, query,
		s.CellID, s.TimeBucket, s.Resolution, s.CenterLat, s.CenterLng,
		s.Score, string(s.Confidence), string(reasonsJSON), s.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert risk score for %s: %w", s.CellID, err)
	}
	return nil
}

// Get retrieves the score of a cell. Returns (nil, nil) when the cell has no score.
func (r *RiskScoreRepository) Get(ctx context.Context, cellID, timeBucket string) (*models.RiskScore, error) {
	if timeBucket == "" {
		timeBucket = models.TimeBucketDefault
	}

	query := r.db.Rebind(`SELECT cell_id, time_bucket, resolution, center_lat, center_lng,
		score, confidence, reasons_json, updated_at
		FROM risk_scores WHERE cell_id = ? AND time_bucket = ?`)

	s, err := scanRiskScore(r.db.QueryRowContext(ctx, query, cellID, timeBucket))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get risk score: %w", err)
	}
	return s, nil
}

// LookupScore returns the default-bucket score of a cell and whether one exists
func (r *RiskScoreRepository) LookupScore(ctx context.Context, cellID string) (int, bool, error) {
	query := r.db.Rebind(`SELECT score FROM risk_scores WHERE cell_id = ? AND time_bucket = ?`)

	var score int
	err := r.db.QueryRowContext(ctx, query, cellID, models.TimeBucketDefault).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to lookup score: %w", err)
	}
	return score, true, nil
}

// ListInBBox retrieves default-bucket scores whose cell centers fall inside the filter's bbox
func (r *RiskScoreRepository) ListInBBox(ctx context.Context, filter models.HeatmapFilter) ([]models.RiskScore, error) {
	limit := filter.Limit
	if limit <= 0 || limit > defaultHeatmapLimit {
		limit = defaultHeatmapLimit
	}

	query := r.db.Rebind(`SELECT cell_id, time_bucket, resolution, center_lat, center_lng,
		score, confidence, reasons_json, updated_at
		FROM risk_scores
		WHERE time_bucket = ? AND resolution = ?
		  AND center_lat >= ? AND center_lat <= ?
		  AND center_lng >= ? AND center_lng <= ?
		ORDER BY score ASC, cell_id ASC
		LIMIT ?`)

	rows, err := r.db.QueryContext(ctx, query,
		models.TimeBucketDefault, filter.Resolution,
		filter.MinLat, filter.MaxLat, filter.MinLng, filter.MaxLng,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk scores: %w", err)
	}
	defer rows.Close()

	var scores []models.RiskScore
	for rows.Next() {
		s, err := scanRiskScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan risk score: %w", err)
		}
		scores = append(scores, *s)
	}
	return scores, rows.Err()
}

// Count returns the number of stored scores
func (r *RiskScoreRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM risk_scores").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count risk scores: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRiskScore(row rowScanner) (*models.RiskScore, error) {
	var (
		s           models.RiskScore
		confidence  string
		reasonsJSON string
		updatedAt   int64
	)
	err := row.Scan(
		&s.CellID, &s.TimeBucket, &s.Resolution, &s.CenterLat, &s.CenterLng,
		&s.Score, &confidence, &reasonsJSON, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Confidence = models.Confidence(confidence)
	s.UpdatedAt = time.Unix(updatedAt, 0)
	if err := json.Unmarshal([]byte(reasonsJSON), &s.Reasons); err != nil {
		return nil, fmt.Errorf("failed to decode reasons of %s: %w", s.CellID, err)
	}
	return &s, nil
}
