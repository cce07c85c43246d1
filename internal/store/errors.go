package store

import "errors"

var (
	// ErrRecordNotFound is returned when a lookup matches no row.
	ErrRecordNotFound = errors.New("record not found")

	// ErrAlreadyClaimed is returned when a claim races and loses; the job is
	// being handled elsewhere and the caller must not treat this as a failure.
	ErrAlreadyClaimed = errors.New("job already claimed")

	// ErrJobProcessing is returned when a delete targets a PROCESSING job.
	ErrJobProcessing = errors.New("job is currently being processed")

	// ErrQuotaExhausted is returned by the conditional counter increment when
	// the account already sits at its daily ceiling.
	ErrQuotaExhausted = errors.New("daily post quota exhausted")

	// ErrPostIDMismatch is returned when a completion reports a different
	// platform post id than the one already recorded.
	ErrPostIDMismatch = errors.New("job already completed with a different post id")

	// ErrMissingPostID is returned when a first completion carries no platform
	// post id; a DONE job always records the post it produced.
	ErrMissingPostID = errors.New("completion requires a post id")

	// ErrLeaseHeld is returned when another owner holds an unexpired lease.
	ErrLeaseHeld = errors.New("lease held by another owner")
)
