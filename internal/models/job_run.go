package models

import "time"

// JobRun records one execution of a batch job
type JobRun struct {
	ID            int64      `json:"id" db:"id"`
	JobName       string     `json:"job_name" db:"job_name"`
	Status        string     `json:"status" db:"status"` // running, success, failed
	ItemsUpdated  int        `json:"items_updated" db:"items_updated"`
	ItemsFailed   int        `json:"items_failed" db:"items_failed"`
	ResultSummary string     `json:"result_summary,omitempty" db:"result_summary"`
	ErrorMessage  string     `json:"error_message,omitempty" db:"error_message"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// JobStatus constants
const (
	JobStatusRunning = "running"
	JobStatusSuccess = "success"
	JobStatusFailed  = "failed"
)
