package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jengzang/safety-backend-go/internal/database"
	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrationManager(db).RunMigrations())
	return db
}

func TestRiskScoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	repo := NewRiskScoreRepository(newTestDB(t))

	first := &models.RiskScore{
		CellID: "892a100d2c3ffff", Resolution: 9, CenterLat: 40.71, CenterLng: -74.0,
		Score: 70, Confidence: models.ConfidenceMedium,
		Reasons: []models.Reason{{Factor: models.FactorCrimeHistory, Impact: models.ImpactNeutral, ScoreImpact: -30, Detail: "x"}},
	}
	require.NoError(t, repo.Upsert(ctx, first))

	second := *first
	second.Score = 55
	second.Reasons = nil
	second.UpdatedAt = time.Time{}
	require.NoError(t, repo.Upsert(ctx, &second))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.Get(ctx, "892a100d2c3ffff", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 55, got.Score)
	assert.Equal(t, models.TimeBucketDefault, got.TimeBucket)
	assert.Empty(t, got.Reasons)
}

func TestRiskScoreGetMissing(t *testing.T) {
	repo := NewRiskScoreRepository(newTestDB(t))

	got, err := repo.Get(context.Background(), "892a100d2c3ffff", models.TimeBucketDefault)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, found, err := repo.LookupScore(context.Background(), "892a100d2c3ffff")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRiskScoreRoundTripsReasons(t *testing.T) {
	ctx := context.Background()
	repo := NewRiskScoreRepository(newTestDB(t))

	reasons := []models.Reason{
		{Factor: models.FactorCrimeHistory, Impact: models.ImpactNegative, ScoreImpact: -45, Detail: "a"},
		{Factor: models.FactorEnvironment, Impact: models.ImpactPositive, ScoreImpact: 10, Detail: "b"},
	}
	require.NoError(t, repo.Upsert(ctx, &models.RiskScore{
		CellID: "c1", Resolution: 9, Score: 65, Confidence: models.ConfidenceLow, Reasons: reasons,
	}))

	got, err := repo.Get(ctx, "c1", models.TimeBucketDefault)
	require.NoError(t, err)
	assert.Equal(t, reasons, got.Reasons)

	score, found, err := repo.LookupScore(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 65, score)
}

func TestRiskScoreListInBBox(t *testing.T) {
	ctx := context.Background()
	repo := NewRiskScoreRepository(newTestDB(t))

	for _, s := range []models.RiskScore{
		{CellID: "in-a", Resolution: 9, CenterLat: 40.70, CenterLng: -74.00, Score: 80, Confidence: models.ConfidenceLow},
		{CellID: "in-b", Resolution: 9, CenterLat: 40.71, CenterLng: -74.01, Score: 40, Confidence: models.ConfidenceLow},
		{CellID: "out", Resolution: 9, CenterLat: 41.00, CenterLng: -74.00, Score: 10, Confidence: models.ConfidenceLow},
		{CellID: "coarse", Resolution: 7, CenterLat: 40.70, CenterLng: -74.00, Score: 10, Confidence: models.ConfidenceLow},
	} {
		require.NoError(t, repo.Upsert(ctx, &s))
	}

	scores, err := repo.ListInBBox(ctx, models.HeatmapFilter{
		MinLat: 40.6, MaxLat: 40.8, MinLng: -74.1, MaxLng: -73.9, Resolution: 9,
	})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "in-b", scores[0].CellID)
	assert.Equal(t, "in-a", scores[1].CellID)
}

func TestIncidentAggregates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	incidents := NewIncidentRepository(db)
	signals := NewSignalRepository(db)

	now := time.Now().UTC()
	n, err := incidents.InsertBatch(ctx, []models.IncidentRecord{
		{SourceSlug: "nypd", Category: "robbery", Severity: 80, OccurredAt: now, CellID: "a"},
		{SourceSlug: "nypd", Category: "theft_minor", Severity: 20, OccurredAt: now, CellID: "a"},
		{SourceSlug: "nypd", Category: "theft_minor", Severity: 20, OccurredAt: now.AddDate(0, -6, 0), CellID: "a"},
		{SourceSlug: "nypd", Category: "harassment", Severity: 20, OccurredAt: now, CellID: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = signals.InsertBatch(ctx, []models.EnvSignal{
		{SourceSlug: "311", Metric: models.MetricStreetLightOutage, Value: 1, TS: now, CellID: "a"},
		{SourceSlug: "311", Metric: models.MetricStreetLightOutage, Value: 1, TS: now, CellID: "a"},
		{SourceSlug: "mta", Metric: models.MetricSubwayEntrance, Value: 1, TS: now, CellID: "a"},
	})
	require.NoError(t, err)

	cells, err := incidents.ActiveCells(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cells)

	stats, err := NewCellStatsSource(incidents, signals).CellStats(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.IncidentCount)
	assert.InDelta(t, 40, stats.AvgSeverity, 1e-9)
	assert.Equal(t, "theft_minor", stats.TopCategory)
	assert.Equal(t, 2, stats.SignalCounts[models.MetricStreetLightOutage])
	assert.Equal(t, 1, stats.SignalCounts[models.MetricSubwayEntrance])

	empty, err := NewCellStatsSource(incidents, signals).CellStats(ctx, "zzz")
	require.NoError(t, err)
	assert.Zero(t, empty.IncidentCount)
	assert.Empty(t, empty.SignalCounts)

	recent, err := incidents.ListInCells(ctx, []string{"a", "b"}, now.AddDate(0, -1, 0))
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

func TestJobRunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRunRepository(newTestDB(t))

	latest, err := repo.Latest(ctx, "risk_aggregation")
	require.NoError(t, err)
	assert.Nil(t, latest)

	id, err := repo.Start(ctx, "risk_aggregation")
	require.NoError(t, err)

	running, err := repo.Latest(ctx, "risk_aggregation")
	require.NoError(t, err)
	require.NotNil(t, running)
	assert.Equal(t, models.JobStatusRunning, running.Status)
	assert.Nil(t, running.CompletedAt)

	require.NoError(t, repo.Finish(ctx, id, models.JobStatusSuccess, 12, 1, `{"cells_updated":12}`, ""))

	done, err := repo.Latest(ctx, "risk_aggregation")
	require.NoError(t, err)
	assert.Equal(t, id, done.ID)
	assert.Equal(t, models.JobStatusSuccess, done.Status)
	assert.Equal(t, 12, done.ItemsUpdated)
	assert.Equal(t, 1, done.ItemsFailed)
	assert.NotNil(t, done.CompletedAt)
}

func TestIncidentReplaceSource(t *testing.T) {
	ctx := context.Background()
	incidents := NewIncidentRepository(newTestDB(t))
	now := time.Now().UTC()

	_, err := incidents.InsertBatch(ctx, []models.IncidentRecord{
		{SourceSlug: "nypd", Category: "robbery", Severity: 80, OccurredAt: now, CellID: "a"},
		{SourceSlug: "baseline", Category: "burglary", Severity: 50, OccurredAt: now, CellID: "c"},
	})
	require.NoError(t, err)

	batch := []models.IncidentRecord{
		{SourceSlug: "baseline", Category: "robbery", Severity: 80, OccurredAt: now, CellID: "d"},
		{SourceSlug: "baseline", Category: "robbery", Severity: 80, OccurredAt: now, CellID: "d"},
	}
	for i := 0; i < 2; i++ {
		n, err := incidents.ReplaceSource(ctx, "baseline", batch)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}

	cells, err := incidents.ActiveCells(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d"}, cells)

	sum, err := incidents.Summary(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
}

func TestSignalCountsInCells(t *testing.T) {
	ctx := context.Background()
	signals := NewSignalRepository(newTestDB(t))
	now := time.Now().UTC()

	_, err := signals.InsertBatch(ctx, []models.EnvSignal{
		{SourceSlug: "311", Metric: models.MetricStreetLightOutage, Value: 1, TS: now, CellID: "a"},
		{SourceSlug: "311", Metric: models.MetricStreetLightOutage, Value: 1, TS: now, CellID: "b"},
		{SourceSlug: "mta", Metric: models.MetricSubwayEntrance, Value: 1, TS: now, CellID: "b"},
		{SourceSlug: "311", Metric: models.MetricStreetLightOutage, Value: 1, TS: now, CellID: "z"},
	})
	require.NoError(t, err)

	counts, err := signals.CountsByMetricInCells(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{models.MetricStreetLightOutage: 2, models.MetricSubwayEntrance: 1}, counts)

	counts, err = signals.CountsByMetricInCells(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestAlertInsertDeduplicatesAndLists(t *testing.T) {
	ctx := context.Background()
	alerts := NewAlertRepository(newTestDB(t))
	now := time.Now().UTC().Truncate(time.Second)
	expires := now.Add(6 * time.Hour)

	batch := []models.Alert{
		{SourceSlug: "nws", ExternalID: "w1", Title: "Flood Warning", Category: models.AlertCategoryWeather,
			Severity: 80, PublishedAt: now.Add(-time.Hour), ExpiresAt: &expires, CellID: "a"},
		{SourceSlug: "nws", ExternalID: "w2", Title: "Heat Advisory", Category: models.AlertCategoryWeather,
			Severity: 50, PublishedAt: now, CellID: "b"},
		{SourceSlug: "mta", ExternalID: "w1", Title: "Delays", Category: models.AlertCategoryTransit,
			Severity: 10, PublishedAt: now.AddDate(0, 0, -10), CellID: "a"},
	}
	n, err := alerts.InsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = alerts.InsertBatch(ctx, batch[:2])
	require.NoError(t, err)
	assert.Zero(t, n)

	recent, err := alerts.ListRecent(ctx, now.AddDate(0, 0, -1), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "Heat Advisory", recent[0].Title)
	assert.Nil(t, recent[0].ExpiresAt)
	require.NotNil(t, recent[1].ExpiresAt)
	assert.Equal(t, expires, *recent[1].ExpiresAt)

	inA, err := alerts.ListInCells(ctx, []string{"a"}, now.AddDate(0, 0, -30), 10)
	require.NoError(t, err)
	require.Len(t, inA, 2)
	assert.Equal(t, "Flood Warning", inA[0].Title)

	limited, err := alerts.ListRecent(ctx, time.Time{}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
