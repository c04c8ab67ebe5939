package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrEmptyTopic     = errors.New("topic is required")
	ErrInvalidTone    = errors.New("unsupported tone")
	ErrUnknownStatus  = errors.New("unknown job status")
	ErrQuotaExceeded  = errors.New("quota exceeded")
	ErrNotCompleted   = errors.New("job not completed")
	ErrInvalidOTP     = errors.New("invalid or expired otp")
	ErrForbidden      = errors.New("forbidden")
	ErrMissingContent = errors.New("content is required")
)
