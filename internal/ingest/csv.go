package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jengzang/safety-backend-go/internal/models"
	"github.com/jengzang/safety-backend-go/internal/spatial"
)

// errSkipRow marks a row that is unusable but not fatal to the batch
var errSkipRow = errors.New("skip row")

type csvConnector struct {
	src   Source
	deps  Deps
	rules RuleSet
}

func newCSVConnector(src Source, deps Deps) Connector {
	rules, _ := LookupRules(src.Rules)
	return &csvConnector{src: src, deps: deps, rules: rules}
}

func (c *csvConnector) Fetch(ctx context.Context) (io.ReadCloser, error) {
	return open(ctx, c.deps.Client, c.src.URL, nil)
}

func (c *csvConnector) Run(ctx context.Context) (int, error) {
	return run(ctx, c, c.src, c.deps)
}

func (c *csvConnector) Parse(r io.Reader) (Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return Batch{}, fmt.Errorf("failed to read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range []string{c.src.Columns.Lat, c.src.Columns.Lng} {
		if _, ok := idx[col]; !ok {
			return Batch{}, fmt.Errorf("missing column %q", col)
		}
	}

	var batch Batch
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				batch.Skipped++
				continue
			}
			return batch, fmt.Errorf("failed to read row: %w", err)
		}

		row := func(col string) string {
			if col == "" {
				return ""
			}
			i, ok := idx[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		if err := c.parseRow(row, &batch); err != nil {
			batch.Skipped++
		}
	}
	return batch, nil
}

func (c *csvConnector) parseRow(row func(string) string, batch *Batch) error {
	cols := c.src.Columns
	if cols.Filter != "" && !strings.Contains(strings.ToUpper(row(cols.Filter)), strings.ToUpper(cols.FilterValue)) {
		return errSkipRow
	}

	lat, err := strconv.ParseFloat(row(cols.Lat), 64)
	if err != nil {
		return errSkipRow
	}
	lng, err := strconv.ParseFloat(row(cols.Lng), 64)
	if err != nil {
		return errSkipRow
	}
	if !c.src.Bounds.Contains(lat, lng) {
		return errSkipRow
	}
	cell, err := spatial.CellOf(lat, lng, c.src.Resolution)
	if err != nil {
		return errSkipRow
	}

	ts, tsErr := c.parseTime(row(cols.Date), row(cols.Time))

	switch c.src.Kind {
	case KindCSVIncidents:
		category, severity, ok := c.rules.Normalize(row(cols.Category))
		if !ok || tsErr != nil {
			return errSkipRow
		}
		batch.Incidents = append(batch.Incidents, models.IncidentRecord{
			SourceSlug: c.src.Slug,
			Category:   category,
			Severity:   severity,
			OccurredAt: ts,
			Lat:        lat,
			Lng:        lng,
			CellID:     cell,
		})
	case KindCSVBaseline:
		category, severity, ok := c.rules.Normalize(row(cols.Category))
		if !ok {
			return errSkipRow
		}
		count, err := strconv.Atoi(row(cols.Count))
		if err != nil || count <= 0 {
			return errSkipRow
		}
		if tsErr != nil {
			ts = c.deps.Now().UTC()
		}
		for range min(count, c.src.MaxPerRow) {
			batch.Incidents = append(batch.Incidents, models.IncidentRecord{
				SourceSlug: c.src.Slug,
				Category:   category,
				Severity:   severity,
				OccurredAt: ts,
				Lat:        lat,
				Lng:        lng,
				CellID:     cell,
			})
		}
	case KindCSVSignals:
		if tsErr != nil {
			ts = c.deps.Now().UTC()
		}
		batch.Signals = append(batch.Signals, models.EnvSignal{
			SourceSlug: c.src.Slug,
			Metric:     c.src.Metric,
			Value:      1.0,
			TS:         ts,
			Lat:        lat,
			Lng:        lng,
			CellID:     cell,
		})
	}
	return nil
}

// parseTime combines the date and optional time-of-day columns, read as UTC
func (c *csvConnector) parseTime(date, clock string) (time.Time, error) {
	if date == "" {
		return time.Time{}, errSkipRow
	}
	if clock != "" && c.src.TimeLayout != "" {
		if t, err := time.Parse(c.src.DateLayout+" "+c.src.TimeLayout, date+" "+clock); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := time.Parse(c.src.DateLayout, date); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", date)
}
