package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jengzang/safety-backend-go/internal/analysis"
)

// JobPrefix prefixes the job name under which ingest runs are tracked
const JobPrefix = "ingest:"

// Job adapts a source connector to the batch job lifecycle
type Job struct {
	src       Source
	connector Connector
}

// NewJob creates the ingest job for a source
func NewJob(src Source, deps Deps) (*Job, error) {
	connector, err := NewConnector(src, deps)
	if err != nil {
		return nil, err
	}
	return &Job{src: src, connector: connector}, nil
}

func (j *Job) Name() string {
	return JobPrefix + j.src.Slug
}

func (j *Job) Run(ctx context.Context) (analysis.Summary, error) {
	start := time.Now()
	stored, err := j.connector.Run(ctx)
	return analysis.Summary{ItemsUpdated: stored, Duration: time.Since(start)}, err
}

// RunSources ingests every enabled source, or only the one matching slug when set.
// A failing source is recorded and the remaining sources still run.
func RunSources(ctx context.Context, sources []Source, slug string, deps Deps, tracker analysis.RunTracker) (int, error) {
	total := 0
	matched := false
	var firstErr error

	for _, src := range sources {
		if slug != "" && src.Slug != slug {
			continue
		}
		if slug == "" && !src.Enabled {
			continue
		}
		matched = true

		job, err := NewJob(src, deps)
		if err != nil {
			return total, err
		}
		summary, err := analysis.RunTracked(ctx, job, tracker)
		total += summary.ItemsUpdated
		if err != nil {
			log.Printf("[Ingest] Source %s failed: %v", src.Slug, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("ingest %s: %w", src.Slug, err)
			}
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if slug != "" && !matched {
		return 0, fmt.Errorf("unknown source %q", slug)
	}
	return total, firstErr
}
