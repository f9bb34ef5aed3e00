package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jengzang/safety-backend-go/internal/database"
	"github.com/jengzang/safety-backend-go/internal/models"
)

// Job is the interface that all batch jobs must implement
type Job interface {
	// Name returns the registry name of the job
	Name() string

	// Run performs one full pass. Item-level failures are counted in the
	// summary; an error means the pass as a whole did not complete.
	Run(ctx context.Context) (Summary, error)
}

// Summary describes the outcome of one job run
type Summary struct {
	ItemsUpdated int           `json:"items_updated"`
	ItemsFailed  int           `json:"items_failed"`
	Duration     time.Duration `json:"duration_ns"`
}

// RunTracker persists job run progress
type RunTracker interface {
	Start(ctx context.Context, jobName string) (int64, error)
	Finish(ctx context.Context, id int64, status string, updated, failed int, summary, errMsg string) error
}

// RunTracked runs a job and records its lifecycle through tracker.
// Tracking failures are logged and never fail the job itself.
func RunTracked(ctx context.Context, job Job, tracker RunTracker) (Summary, error) {
	runID, err := tracker.Start(ctx, job.Name())
	if err != nil {
		log.Printf("[%s] Failed to record job start: %v", job.Name(), err)
	}

	summary, runErr := job.Run(ctx)

	if runID == 0 {
		return summary, runErr
	}

	status := models.JobStatusSuccess
	errMsg := ""
	if runErr != nil {
		status = models.JobStatusFailed
		errMsg = runErr.Error()
	}

	summaryJSON, _ := json.Marshal(summary)

	// the run context may already be cancelled; the final status is still written
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := tracker.Finish(finishCtx, runID, status, summary.ItemsUpdated, summary.ItemsFailed, string(summaryJSON), errMsg); err != nil {
		log.Printf("[%s] Failed to record job completion: %v", job.Name(), err)
	}

	return summary, runErr
}

// Options tune a job instance at creation
type Options struct {
	Workers int // concurrency bound; <= 0 selects the job's default
}

// JobFactory is a function that creates a job instance
type JobFactory func(db *database.DB, opts Options) Job

var (
	registryMu  sync.RWMutex
	jobRegistry = make(map[string]JobFactory)
)

// Register registers a job factory under a name
func Register(name string, factory JobFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	jobRegistry[name] = factory
}

// Get creates the job registered under name
func Get(name string, db *database.DB, opts Options) (Job, error) {
	registryMu.RLock()
	factory, ok := jobRegistry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown job %q", name)
	}
	return factory(db, opts), nil
}

// Names returns the registered job names in sorted order
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(jobRegistry))
	for name := range jobRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
