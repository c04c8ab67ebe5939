package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned by Wait when the handle was cancelled before a
	// terminal state was observed. The underlying cause (caller context,
	// session logout) is joined to it.
	ErrCancelled = errors.New("generation: cancelled")
	// ErrPollTimeout ends a loop that exceeded Options.MaxWait.
	ErrPollTimeout = errors.New("generation: this is taking longer than expected")
)

const submitFailedMessage = "Failed to start generation."

// SubmissionError reports a request that never produced a job id: local
// validation failures, HTTP errors and malformed responses alike.
type SubmissionError struct {
	// Detail is the user-facing explanation supplied by the service or by
	// validation. Empty means no detail was available.
	Detail string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return submitFailedMessage
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// TransientPollError describes a status fetch that failed without ending
// the loop. It is logged and counted, never returned to callers.
type TransientPollError struct {
	JobID   string
	Attempt int
	Err     error
}

func (e *TransientPollError) Error() string {
	return fmt.Sprintf("generation: poll %s attempt %d: %v", e.JobID, e.Attempt, e.Err)
}

func (e *TransientPollError) Unwrap() error { return e.Err }

// JobFailedError is the terminal failed state reported by the service.
type JobFailedError struct {
	JobID  string
	Reason string
}

func (e *JobFailedError) Error() string {
	return e.Reason
}

// ArtifactFetchError means the job completed but its markdown could not be
// downloaded. The job itself remains completed.
type ArtifactFetchError struct {
	JobID string
	URL   string
	Err   error
}

func (e *ArtifactFetchError) Error() string {
	return fmt.Sprintf("generation: fetch artifact for %s: %v", e.JobID, e.Err)
}

func (e *ArtifactFetchError) Unwrap() error { return e.Err }
