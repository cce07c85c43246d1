package service

import "errors"

// Admission errors leave the job PENDING; execution errors mark it FAILED.
var (
	ErrQuotaExceeded    = errors.New("daily posting quota exceeded")
	ErrNoActiveAccount  = errors.New("no active posting account")
	ErrNoVideo          = errors.New("job has no rendered video")
	ErrNotRetryable     = errors.New("job is not in a failed state")
	ErrRetriesExhausted = errors.New("retry limit reached")
	ErrCycleRunning     = errors.New("a posting cycle is already running")
)
