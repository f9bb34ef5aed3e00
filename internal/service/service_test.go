package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jengzang/safety-backend-go/internal/analysis/risk"
	"github.com/jengzang/safety-backend-go/internal/database"
	"github.com/jengzang/safety-backend-go/internal/graph"
	"github.com/jengzang/safety-backend-go/internal/ingest"
	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/repository"
	"github.com/jengzang/safety-backend-go/internal/routing"
	"github.com/jengzang/safety-backend-go/internal/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLat = 40.7128
	testLng = -74.0060
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrationManager(db).RunMigrations())
	return db
}

func newContextService(db *database.DB) *ContextService {
	return NewContextService(
		repository.NewIncidentRepository(db),
		repository.NewSignalRepository(db),
		repository.NewAlertRepository(db),
	)
}

func storeScore(t *testing.T, repo *repository.RiskScoreRepository, lat, lng float64, res, score int) string {
	t.Helper()

	cellID, err := spatial.CellOf(lat, lng, res)
	require.NoError(t, err)
	center, err := spatial.CenterOf(cellID)
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(context.Background(), &models.RiskScore{
		CellID: cellID, Resolution: res, CenterLat: center.Lat, CenterLng: center.Lng,
		Score: score, Confidence: models.ConfidenceMedium,
		Reasons: []models.Reason{{Factor: models.FactorCrimeHistory, Impact: models.ImpactNeutral, ScoreImpact: -30, Detail: "d"}},
	}))
	return cellID
}

func TestGetScore(t *testing.T) {
	repo := repository.NewRiskScoreRepository(newTestDB(t))
	svc := NewScoreService(repo)
	ctx := context.Background()

	cellID := storeScore(t, repo, testLat, testLng, spatial.ResolutionFine, 70)

	score, err := svc.GetScore(ctx, cellID)
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.Equal(t, 70, score.Score)

	other, err := spatial.CellOf(40.80, -73.95, spatial.ResolutionFine)
	require.NoError(t, err)
	score, err = svc.GetScore(ctx, other)
	require.NoError(t, err)
	assert.Nil(t, score)

	_, err = svc.GetScore(ctx, "zzz")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestSnapshotTiers(t *testing.T) {
	repo := repository.NewRiskScoreRepository(newTestDB(t))
	svc := NewScoreService(repo)
	ctx := context.Background()

	snap, err := svc.Snapshot(ctx, testLat, testLng)
	require.NoError(t, err)
	assert.Equal(t, models.NoCoverageScore, snap.Score)
	assert.Equal(t, models.CoverageNone, snap.Coverage)
	assert.NotNil(t, snap.Reasons)

	coarse := storeScore(t, repo, testLat, testLng, spatial.ResolutionCoarse, 55)
	snap, err = svc.Snapshot(ctx, testLat, testLng)
	require.NoError(t, err)
	assert.Equal(t, 55, snap.Score)
	assert.Equal(t, models.CoverageCoarse, snap.Coverage)
	assert.Equal(t, coarse, snap.CellID)

	fine := storeScore(t, repo, testLat, testLng, spatial.ResolutionFine, 88)
	snap, err = svc.Snapshot(ctx, testLat, testLng)
	require.NoError(t, err)
	assert.Equal(t, 88, snap.Score)
	assert.Equal(t, models.CoverageFine, snap.Coverage)
	assert.Equal(t, fine, snap.CellID)
	assert.Equal(t, spatial.ResolutionFine, snap.Resolution)
	assert.Len(t, snap.Reasons, 1)

	_, err = svc.Snapshot(ctx, 95, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestHeatmapCells(t *testing.T) {
	repo := repository.NewRiskScoreRepository(newTestDB(t))
	svc := NewHeatmapService(repo)
	ctx := context.Background()

	cellID := storeScore(t, repo, testLat, testLng, spatial.ResolutionFine, 40)
	storeScore(t, repo, testLat, testLng, spatial.ResolutionCoarse, 60)

	filter := models.HeatmapFilter{MinLat: 40.70, MaxLat: 40.73, MinLng: -74.02, MaxLng: -73.99}
	resp, err := svc.Cells(ctx, filter)
	require.NoError(t, err)

	assert.Equal(t, spatial.ResolutionFine, resp.Resolution)
	require.Equal(t, 1, resp.Count)
	cell := resp.Cells[0]
	assert.Equal(t, cellID, cell.CellID)
	assert.Equal(t, 40, cell.Score)

	require.GreaterOrEqual(t, len(cell.Polygon), 7)
	assert.Equal(t, cell.Polygon[0], cell.Polygon[len(cell.Polygon)-1])
	// [lng, lat] order
	assert.InDelta(t, testLng, cell.Polygon[0][0], 0.01)
	assert.InDelta(t, testLat, cell.Polygon[0][1], 0.01)
}

func TestHeatmapRejectsBadFilter(t *testing.T) {
	svc := NewHeatmapService(repository.NewRiskScoreRepository(newTestDB(t)))
	ctx := context.Background()

	_, err := svc.Cells(ctx, models.HeatmapFilter{MinLat: 40, MaxLat: 41, MinLng: -75, MaxLng: -73, Resolution: 8})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = svc.Cells(ctx, models.HeatmapFilter{MinLat: 41, MaxLat: 40, MinLng: -75, MaxLng: -73})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = svc.Cells(ctx, models.HeatmapFilter{MinLat: -91, MaxLat: 40, MinLng: -75, MaxLng: -73})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestContextIncidents(t *testing.T) {
	db := newTestDB(t)
	incidents := repository.NewIncidentRepository(db)
	svc := newContextService(db)
	svc.now = func() time.Time { return time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	record := func(category string, at time.Time, lat, lng float64) models.IncidentRecord {
		cellID, err := spatial.CellOf(lat, lng, spatial.ResolutionFine)
		require.NoError(t, err)
		return models.IncidentRecord{SourceSlug: "test", Category: category, Severity: 50, OccurredAt: at, Lat: lat, Lng: lng, CellID: cellID}
	}
	_, err := incidents.InsertBatch(ctx, []models.IncidentRecord{
		record("robbery", time.Date(2024, 3, 12, 22, 0, 0, 0, time.UTC), testLat, testLng),
		record("theft_minor", time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC), 40.7130, -74.0062),
		record("theft_minor", time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), testLat, testLng),
		record("burglary", time.Date(2023, 11, 1, 9, 0, 0, 0, time.UTC), testLat, testLng),
		record("burglary", time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC), 40.80, -73.95),
	})
	require.NoError(t, err)

	got, err := svc.Incidents(ctx, testLat, testLng)
	require.NoError(t, err)

	assert.Equal(t, models.ContextMeta{Radius: "2.5km", Total: 3, Coverage: models.CoverageFine}, got.Meta)
	assert.Equal(t, []models.IncidentMix{
		{Category: "theft_minor", Count: 2, Pct: 66.7},
		{Category: "robbery", Count: 1, Pct: 33.3},
	}, got.Mix)

	require.Len(t, got.Trend, 12)
	assert.Equal(t, "2023-12-25", got.Trend[0].Week)
	assert.Equal(t, 0, got.Trend[0].Count)
	assert.Equal(t, "2024-01-01", got.Trend[1].Week)
	assert.Equal(t, 1, got.Trend[1].Count)
	assert.Equal(t, "2024-03-11", got.Trend[11].Week)
	assert.Equal(t, 2, got.Trend[11].Count)
}

func TestContextNoIncidents(t *testing.T) {
	svc := newContextService(newTestDB(t))

	got, err := svc.Incidents(context.Background(), testLat, testLng)
	require.NoError(t, err)
	assert.Empty(t, got.Mix)
	assert.Len(t, got.Trend, 12)
	assert.Equal(t, models.CoverageNone, got.Meta.Coverage)

	_, err = svc.Incidents(context.Background(), 0, 200)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestContextEnvironment(t *testing.T) {
	db := newTestDB(t)
	signals := repository.NewSignalRepository(db)
	svc := newContextService(db)
	ctx := context.Background()

	signal := func(metric string, lat, lng float64) models.EnvSignal {
		cellID, err := spatial.CellOf(lat, lng, spatial.ResolutionFine)
		require.NoError(t, err)
		return models.EnvSignal{SourceSlug: "test", Metric: metric, Value: 1, TS: time.Now(), Lat: lat, Lng: lng, CellID: cellID}
	}
	_, err := signals.InsertBatch(ctx, []models.EnvSignal{
		signal(models.MetricStreetLightOutage, testLat, testLng),
		signal(models.MetricSubwayEntrance, testLat, testLng),
		signal(models.MetricSubwayEntrance, 40.7135, -74.0050),
		signal(models.MetricSubwayEntrance, 40.80, -73.95), // outside the disk
	})
	require.NoError(t, err)

	got, err := svc.Environment(ctx, testLat, testLng)
	require.NoError(t, err)
	assert.Equal(t, []models.EnvironmentMetric{
		{Metric: models.MetricSubwayEntrance, Count: 2},
		{Metric: models.MetricStreetLightOutage, Count: 1},
	}, got.Metrics)
	assert.Equal(t, models.ContextMeta{Radius: "2.5km", Total: 3, Coverage: models.CoverageFine}, got.Meta)

	empty, err := svc.Environment(ctx, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, empty.Metrics)
	assert.Equal(t, models.CoverageNone, empty.Meta.Coverage)

	_, err = svc.Environment(ctx, 91, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func storeAlerts(t *testing.T, db *database.DB, alerts ...models.Alert) {
	t.Helper()
	for i := range alerts {
		cellID, err := spatial.CellOf(alerts[i].Lat, alerts[i].Lng, spatial.ResolutionCoarse)
		require.NoError(t, err)
		alerts[i].CellID = cellID
		alerts[i].SourceSlug = "test"
		alerts[i].Category = models.AlertCategoryWeather
	}
	_, err := repository.NewAlertRepository(db).InsertBatch(context.Background(), alerts)
	require.NoError(t, err)
}

func TestContextAlerts(t *testing.T) {
	db := newTestDB(t)
	svc := newContextService(db)
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	storeAlerts(t, db,
		models.Alert{ExternalID: "flood", Title: "Flood Warning", PublishedAt: now.Add(-2 * time.Hour), Lat: testLat, Lng: testLng},
		models.Alert{ExternalID: "heat", Title: "Heat Advisory", PublishedAt: now.Add(-time.Hour), Lat: 40.7250, Lng: -74.0060},
		models.Alert{ExternalID: "old", Title: "Old Advisory", PublishedAt: now.AddDate(0, 0, -8), Lat: testLat, Lng: testLng},
		models.Alert{ExternalID: "far", Title: "Lake Effect Snow", PublishedAt: now, Lat: 42.8864, Lng: -78.8784},
	)

	got, err := svc.Alerts(context.Background(), testLat, testLng)
	require.NoError(t, err)
	require.Len(t, got.Alerts, 2)
	assert.Equal(t, "Heat Advisory", got.Alerts[0].Title)
	assert.Equal(t, "Flood Warning", got.Alerts[1].Title)
	assert.Equal(t, models.ContextMeta{Radius: "3km", Total: 2, Coverage: models.CoverageCoarse}, got.Meta)

	quiet, err := svc.Alerts(context.Background(), 10, 10)
	require.NoError(t, err)
	assert.NotNil(t, quiet.Alerts)
	assert.Equal(t, models.CoverageNone, quiet.Meta.Coverage)

	_, err = svc.Alerts(context.Background(), 0, 200)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestAlertServiceRecent(t *testing.T) {
	db := newTestDB(t)
	svc := NewAlertService(repository.NewAlertRepository(db))
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	storeAlerts(t, db,
		models.Alert{ExternalID: "a", Title: "A", PublishedAt: now.Add(-time.Hour), Lat: testLat, Lng: testLng},
		models.Alert{ExternalID: "b", Title: "B", PublishedAt: now.AddDate(0, 0, -3), Lat: 42.8864, Lng: -78.8784},
		models.Alert{ExternalID: "c", Title: "C", PublishedAt: now.AddDate(0, 0, -10), Lat: testLat, Lng: testLng},
	)

	feed, err := svc.Recent(ctx, models.AlertFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, feed.Total)
	assert.Equal(t, "A", feed.Alerts[0].Title)
	assert.Equal(t, "2025-05-26T12:00:00Z", feed.Since)

	feed, err = svc.Recent(ctx, models.AlertFilter{Days: 30, Limit: 1})
	require.NoError(t, err)
	require.Len(t, feed.Alerts, 1)
	assert.Equal(t, "A", feed.Alerts[0].Title)

	for _, filter := range []models.AlertFilter{{Days: 31}, {Days: -1}, {Limit: 501}, {Limit: -5}} {
		_, err := svc.Recent(ctx, filter)
		assert.ErrorIs(t, err, ErrInvalidParameter, "%+v", filter)
	}
}

func TestBaselineIngestScoresCoarseCell(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "us-ny.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(`area,category,count,latitude,longitude
New York City,robbery,3,40.7128,-74.0060
New York City,theft_minor,2,40.7128,-74.0060
`), 0o644))

	sources, err := ingest.ParseSources([]byte(`
- slug: us-ny-crime-baseline
  name: NY baseline
  kind: csv_baseline
  url: ` + csvPath + `
  rules: baseline
  enabled: true
  columns: {lat: latitude, lng: longitude, category: category, count: count}
`))
	require.NoError(t, err)

	db := newTestDB(t)
	runs := repository.NewJobRunRepository(db)
	ctx := context.Background()

	n, err := ingest.RunSources(ctx, sources, "", ingest.Deps{Incidents: repository.NewIncidentRepository(db)}, runs)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	summary, err := NewAggregationService(db, runs, risk.JobName, 1).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ItemsUpdated)

	coarse, err := spatial.CellOf(testLat, testLng, spatial.ResolutionCoarse)
	require.NoError(t, err)
	center, err := spatial.CenterOf(coarse)
	require.NoError(t, err)

	snapshot, err := NewScoreService(repository.NewRiskScoreRepository(db)).Snapshot(ctx, center.Lat, center.Lng)
	require.NoError(t, err)
	assert.Equal(t, coarse, snapshot.CellID)
	assert.Equal(t, spatial.ResolutionCoarse, snapshot.Resolution)
	assert.Equal(t, models.CoverageCoarse, snapshot.Coverage)
	assert.Equal(t, models.ConfidenceLow, snapshot.Confidence)
	assert.NotEmpty(t, snapshot.Reasons)

	heatmap, err := NewHeatmapService(repository.NewRiskScoreRepository(db)).Cells(ctx, models.HeatmapFilter{
		MinLat: 40.6, MaxLat: 40.8, MinLng: -74.1, MaxLng: -73.9, Resolution: spatial.ResolutionCoarse,
	})
	require.NoError(t, err)
	require.Equal(t, 1, heatmap.Count)
	assert.Equal(t, coarse, heatmap.Cells[0].CellID)
}

func TestWeekStart(t *testing.T) {
	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, weekStart(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, monday, weekStart(time.Date(2024, 3, 17, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), weekStart(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)))
}

func TestRouteService(t *testing.T) {
	g := graph.NewStreetGraph()
	g.AddNode(graph.Node{ID: 1, Lat: 40.7000, Lng: -74.0})
	g.AddNode(graph.Node{ID: 2, Lat: 40.7010, Lng: -74.0})
	g.AddEdge(graph.Edge{From: 1, To: 2, LengthM: 111})
	g.AddEdge(graph.Edge{From: 2, To: 1, LengthM: 111})

	repo := repository.NewRiskScoreRepository(newTestDB(t))
	svc := NewRouteService(routing.NewEngine(&graph.StaticProvider{Graph: g}, repo, routing.DefaultConfig()))
	ctx := context.Background()

	res, err := svc.Calculate(ctx, models.RouteRequest{
		Start: &models.LatLng{Lat: 40.7000, Lng: -74.0},
		End:   &models.LatLng{Lat: 40.7010, Lng: -74.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 111.0, res.DistanceM)
	assert.Equal(t, float64(routing.DefaultRisk), res.AvgRisk)
	assert.Equal(t, models.SafetyLevelHigh, res.SafetyLevel)
	assert.Len(t, res.Path, 2)

	_, err = svc.Calculate(ctx, models.RouteRequest{Start: &models.LatLng{}})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestAggregationService(t *testing.T) {
	db := newTestDB(t)
	incidents := repository.NewIncidentRepository(db)
	scores := repository.NewRiskScoreRepository(db)
	svc := NewAggregationService(db, repository.NewJobRunRepository(db), risk.JobName, 2)
	ctx := context.Background()

	run, err := svc.LatestRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, run)

	cellID, err := spatial.CellOf(testLat, testLng, spatial.ResolutionFine)
	require.NoError(t, err)
	_, err = incidents.InsertBatch(ctx, []models.IncidentRecord{
		{SourceSlug: "test", Category: "robbery", Severity: 80, OccurredAt: time.Now(), Lat: testLat, Lng: testLng, CellID: cellID},
	})
	require.NoError(t, err)

	summary, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ItemsUpdated)
	assert.False(t, svc.Running())

	score, err := scores.Get(ctx, cellID, models.TimeBucketDefault)
	require.NoError(t, err)
	require.NotNil(t, score)

	run, err = svc.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.JobStatusSuccess, run.Status)
	assert.Equal(t, 1, run.ItemsUpdated)
}

func TestAggregationServiceRejectsOverlap(t *testing.T) {
	db := newTestDB(t)
	svc := NewAggregationService(db, repository.NewJobRunRepository(db), risk.JobName, 1)
	svc.running.Store(true)

	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrJobRunning)
}

func TestAggregationServiceStartRunsInBackground(t *testing.T) {
	db := newTestDB(t)
	svc := NewAggregationService(db, repository.NewJobRunRepository(db), risk.JobName, 1)

	require.NoError(t, svc.Start(context.Background()))
	assert.Eventually(t, func() bool { return !svc.Running() }, 5*time.Second, 10*time.Millisecond)

	run, err := svc.LatestRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.JobStatusSuccess, run.Status)
}

func TestAggregationServiceUnknownJob(t *testing.T) {
	db := newTestDB(t)
	svc := NewAggregationService(db, repository.NewJobRunRepository(db), "no_such_job", 1)

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_job")
	assert.False(t, svc.Running())
}
