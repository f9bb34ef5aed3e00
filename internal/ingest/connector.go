package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jengzang/safety-backend-go/internal/models"
)

// Connector kinds
const (
	KindCSVIncidents = "csv_incidents"
	KindCSVBaseline  = "csv_baseline"
	KindCSVSignals   = "csv_signals"
	KindNWSAlerts    = "nws_alerts"
	KindRSSAlerts    = "rss_alerts"
)

// Connector fetches, parses and stores the records of one source
type Connector interface {
	// Fetch opens the raw source payload
	Fetch(ctx context.Context) (io.ReadCloser, error)

	// Parse decodes a payload into geocoded records, skipping unusable entries
	Parse(r io.Reader) (Batch, error)

	// Run fetches, parses and stores the source, returning the number of records stored
	Run(ctx context.Context) (int, error)
}

// Batch is the parsed output of a source
type Batch struct {
	Incidents []models.IncidentRecord
	Signals   []models.EnvSignal
	Alerts    []models.Alert
	Skipped   int
}

// IncidentSink stores incidents
type IncidentSink interface {
	InsertBatch(ctx context.Context, incidents []models.IncidentRecord) (int, error)

	// ReplaceSource swaps all stored incidents of a source for incidents
	ReplaceSource(ctx context.Context, slug string, incidents []models.IncidentRecord) (int, error)
}

// SignalSink stores environmental signals
type SignalSink interface {
	InsertBatch(ctx context.Context, signals []models.EnvSignal) (int, error)
}

// AlertSink stores alerts, ignoring ones already stored
type AlertSink interface {
	InsertBatch(ctx context.Context, alerts []models.Alert) (int, error)
}

// Deps are the collaborators shared by every connector
type Deps struct {
	Incidents IncidentSink
	Signals   SignalSink
	Alerts    AlertSink
	Client    *http.Client
	Now       func() time.Time
}

// Factory creates a connector for a source
type Factory func(src Source, deps Deps) Connector

var factories = map[string]Factory{
	KindCSVIncidents: newCSVConnector,
	KindCSVBaseline:  newCSVConnector,
	KindCSVSignals:   newCSVConnector,
	KindNWSAlerts:    newNWSConnector,
	KindRSSAlerts:    newRSSConnector,
}

// KnownKind reports whether kind has a registered connector
func KnownKind(kind string) bool {
	_, ok := factories[kind]
	return ok
}

// NewConnector creates the connector registered for the source's kind
func NewConnector(src Source, deps Deps) (Connector, error) {
	factory, ok := factories[src.Kind]
	if !ok {
		return nil, fmt.Errorf("no connector for kind %q", src.Kind)
	}
	if deps.Client == nil {
		deps.Client = &http.Client{Timeout: 5 * time.Minute}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	src.applyDefaults()
	return factory(src, deps), nil
}

// open returns the payload at location: an http(s) URL, a file:// URL or a
// local path. header is sent with http(s) requests only.
func open(ctx context.Context, client *http.Client, location string, header http.Header) (io.ReadCloser, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		for k, v := range header {
			req.Header[k] = v
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", location, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("download %s returned %d", location, resp.StatusCode)
		}
		return resp.Body, nil
	}

	f, err := os.Open(strings.TrimPrefix(location, "file://"))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", location, err)
	}
	return f, nil
}

func run(ctx context.Context, c Connector, src Source, deps Deps) (int, error) {
	log.Printf("[Ingest] Starting ingest for %s", src.Slug)

	body, err := c.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	batch, err := c.Parse(body)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", src.Slug, err)
	}

	stored := 0
	switch {
	case src.Kind == KindCSVBaseline:
		// a baseline is re-published whole; the new batch supersedes the old
		n, err := deps.Incidents.ReplaceSource(ctx, src.Slug, batch.Incidents)
		if err != nil {
			return 0, err
		}
		stored += n
	case len(batch.Incidents) > 0:
		n, err := deps.Incidents.InsertBatch(ctx, batch.Incidents)
		if err != nil {
			return 0, err
		}
		stored += n
	}
	if len(batch.Signals) > 0 {
		n, err := deps.Signals.InsertBatch(ctx, batch.Signals)
		if err != nil {
			return stored, err
		}
		stored += n
	}
	if len(batch.Alerts) > 0 {
		n, err := deps.Alerts.InsertBatch(ctx, batch.Alerts)
		if err != nil {
			return stored, err
		}
		stored += n
	}

	log.Printf("[Ingest] %s: stored %d records, skipped %d rows", src.Slug, stored, batch.Skipped)
	return stored, nil
}
