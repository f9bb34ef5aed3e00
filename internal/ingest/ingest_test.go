package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jengzang/safety-backend-go/internal/database"
	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/repository"
	"github.com/jengzang/safety-backend-go/internal/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryYAML = `
- slug: nyc_nypd
  name: NYPD complaints
  kind: csv_incidents
  url: https://example.test/complaints.csv
  enabled: true
  rules: nypd
  bounds: {min_lat: 40, max_lat: 42, min_lng: -75, max_lng: -72}
  columns:
    category: OFNS_DESC
    date: CMPLNT_FR_DT
    time: CMPLNT_FR_TM
  time_layout: "15:04:05"
- slug: nyc_311_lights
  name: 311 street light outages
  kind: csv_signals
  url: file:///tmp/lights.csv
  metric: street_light_outage
  enabled: false
  columns:
    date: Created Date
`

const complaintsCSV = `CMPLNT_FR_DT,CMPLNT_FR_TM,OFNS_DESC,Latitude,Longitude
03/14/2024,21:30:00,ROBBERY,40.7128,-74.0060
03/15/2024,08:00:00,PETIT LARCENY,40.7130,-74.0062
03/16/2024,10:00:00,SEX CRIMES,40.7128,-74.0060
03/17/2024,10:00:00,ROBBERY,0,0
03/18/2024,10:00:00,FELONY ASSAULT,,
,10:00:00,BURGLARY,40.7128,-74.0060
`

func testSources(t *testing.T) []Source {
	t.Helper()
	sources, err := ParseSources([]byte(registryYAML))
	require.NoError(t, err)
	return sources
}

func TestParseSources(t *testing.T) {
	sources := testSources(t)
	require.Len(t, sources, 2)

	nypd := sources[0]
	assert.Equal(t, KindCSVIncidents, nypd.Kind)
	assert.Equal(t, "Latitude", nypd.Columns.Lat)
	assert.Equal(t, "01/02/2006", nypd.DateLayout)
	assert.Equal(t, spatial.ResolutionFine, nypd.Resolution)
	require.NotNil(t, nypd.Bounds)
	assert.True(t, nypd.Bounds.Contains(40.7, -74))
	assert.False(t, nypd.Bounds.Contains(0, 0))

	assert.False(t, sources[1].Enabled)
	assert.Equal(t, models.MetricStreetLightOutage, sources[1].Metric)
}

func TestParseSourcesRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing slug", "- kind: csv_incidents\n  url: x\n  columns: {category: c}"},
		{"unknown kind", "- slug: a\n  kind: rss\n  url: x"},
		{"incidents without category", "- slug: a\n  kind: csv_incidents\n  url: x\n  rules: nypd"},
		{"incidents without rules", "- slug: a\n  kind: csv_incidents\n  url: x\n  columns: {category: c}"},
		{"unknown rules", "- slug: a\n  kind: csv_incidents\n  url: x\n  rules: lapd\n  columns: {category: c}"},
		{"unsupported resolution", "- {slug: a, kind: csv_signals, url: x, metric: m, resolution: 8}"},
		{"baseline without count", "- slug: a\n  kind: csv_baseline\n  url: x\n  rules: baseline\n  columns: {category: c}"},
		{"rss without center", "- {slug: a, kind: rss_alerts, url: x}"},
		{"invalid center", "- {slug: a, kind: nws_alerts, url: x, center: {lat: 95, lng: 0}}"},
		{"signals without metric", "- slug: a\n  kind: csv_signals\n  url: x"},
		{"duplicate slug", "- {slug: a, kind: csv_signals, url: x, metric: m}\n- {slug: a, kind: csv_signals, url: y, metric: m}"},
		{"not yaml", "::"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSources([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseIncidents(t *testing.T) {
	src := testSources(t)[0]
	c, err := NewConnector(src, Deps{})
	require.NoError(t, err)

	batch, err := c.Parse(strings.NewReader(complaintsCSV))
	require.NoError(t, err)

	require.Len(t, batch.Incidents, 2)
	assert.Equal(t, 4, batch.Skipped)
	assert.Empty(t, batch.Signals)

	robbery := batch.Incidents[0]
	assert.Equal(t, "robbery", robbery.Category)
	assert.Equal(t, 80, robbery.Severity)
	assert.Equal(t, "nyc_nypd", robbery.SourceSlug)
	assert.Equal(t, time.Date(2024, 3, 14, 21, 30, 0, 0, time.UTC), robbery.OccurredAt)
	assert.NotEmpty(t, robbery.CellID)

	assert.Equal(t, "theft_minor", batch.Incidents[1].Category)
}

func TestParseRequiresCoordinateColumns(t *testing.T) {
	src := testSources(t)[0]
	c, err := NewConnector(src, Deps{})
	require.NoError(t, err)

	_, err = c.Parse(strings.NewReader("OFNS_DESC,Lat,Lon\nROBBERY,40.7,-74\n"))
	assert.Error(t, err)
}

func TestParseSignalsDefaultTimestamp(t *testing.T) {
	src := testSources(t)[1]
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c, err := NewConnector(src, Deps{Now: func() time.Time { return now }})
	require.NoError(t, err)

	data := "Created Date,Latitude,Longitude\n" +
		"06/01/2024,40.7128,-74.0060\n" +
		",40.7128,-74.0060\n"
	batch, err := c.Parse(strings.NewReader(data))
	require.NoError(t, err)

	require.Len(t, batch.Signals, 2)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), batch.Signals[0].TS)
	assert.Equal(t, now, batch.Signals[1].TS)
	assert.Equal(t, models.MetricStreetLightOutage, batch.Signals[1].Metric)
	assert.Equal(t, 1.0, batch.Signals[1].Value)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrationManager(db).RunMigrations())
	return db
}

func TestRunSourcesStoresAndTracks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(complaintsCSV))
	}))
	defer srv.Close()

	lights := filepath.Join(t.TempDir(), "lights.csv")
	require.NoError(t, os.WriteFile(lights, []byte("Created Date,Latitude,Longitude\n06/01/2024,40.7128,-74.0060\n"), 0o644))

	sources := testSources(t)
	sources[0].URL = srv.URL
	sources[1].URL = lights
	sources[1].Enabled = true

	db := newTestDB(t)
	incidents := repository.NewIncidentRepository(db)
	jobs := repository.NewJobRunRepository(db)
	deps := Deps{Incidents: incidents, Signals: repository.NewSignalRepository(db), Alerts: repository.NewAlertRepository(db)}

	ctx := context.Background()
	n, err := RunSources(ctx, sources, "", deps, jobs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	cells, err := incidents.ActiveCells(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, cells)

	run, err := jobs.Latest(ctx, JobPrefix+"nyc_nypd")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.JobStatusSuccess, run.Status)
	assert.Equal(t, 2, run.ItemsUpdated)
}

func TestRunSourcesRecordsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sources := testSources(t)
	sources[0].URL = srv.URL

	db := newTestDB(t)
	jobs := repository.NewJobRunRepository(db)
	deps := Deps{Incidents: repository.NewIncidentRepository(db), Signals: repository.NewSignalRepository(db)}

	ctx := context.Background()
	_, err := RunSources(ctx, sources, "nyc_nypd", deps, jobs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	run, err := jobs.Latest(ctx, JobPrefix+"nyc_nypd")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.JobStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "503")
}

func TestRunSourcesUnknownSlug(t *testing.T) {
	_, err := RunSources(context.Background(), testSources(t), "nope", Deps{}, nil)
	assert.Error(t, err)
}

func TestBundledRegistryLoads(t *testing.T) {
	sources, err := LoadSources(filepath.Join("..", "..", "sources.yml"))
	require.NoError(t, err)
	require.Len(t, sources, 4)
	assert.Equal(t, "nyc-nypd-ytd", sources[0].Slug)
	assert.Equal(t, "nypd", sources[0].Rules)
	assert.Equal(t, "Street Light", sources[1].Columns.FilterValue)
	assert.Equal(t, spatial.ResolutionCoarse, sources[2].Resolution)
	assert.Equal(t, KindNWSAlerts, sources[3].Kind)

	// the bundled baseline file parses under its registry entry
	c, err := NewConnector(sources[2], Deps{})
	require.NoError(t, err)
	f, err := os.Open(filepath.Join("..", "..", "baselines", "us-ny.csv"))
	require.NoError(t, err)
	defer f.Close()
	batch, err := c.Parse(f)
	require.NoError(t, err)
	assert.Zero(t, batch.Skipped)
	assert.NotEmpty(t, batch.Incidents)
}

func TestParseSignalsRowFilter(t *testing.T) {
	src := Source{
		Slug: "lights", Kind: KindCSVSignals, URL: "x", Metric: models.MetricStreetLightOutage,
		Columns:    Columns{Lat: "Latitude", Lng: "Longitude", Date: "Created Date", Filter: "Complaint Type", FilterValue: "Street Light"},
		DateLayout: "01/02/2006 03:04:05 PM",
	}
	c, err := NewConnector(src, Deps{})
	require.NoError(t, err)

	data := "Created Date,Complaint Type,Latitude,Longitude\n" +
		"06/01/2024 09:15:00 PM,Street Light Condition,40.7128,-74.0060\n" +
		"06/01/2024 09:15:00 PM,Noise - Residential,40.7128,-74.0060\n"
	batch, err := c.Parse(strings.NewReader(data))
	require.NoError(t, err)

	require.Len(t, batch.Signals, 1)
	assert.Equal(t, 1, batch.Skipped)
	assert.Equal(t, time.Date(2024, 6, 1, 21, 15, 0, 0, time.UTC), batch.Signals[0].TS)
}
