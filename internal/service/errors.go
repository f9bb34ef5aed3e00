package service

import "errors"

var (
	// ErrInvalidParameter marks caller input the service rejects
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrJobRunning is returned when an aggregation pass is already in progress
	ErrJobRunning = errors.New("job already running")
)
