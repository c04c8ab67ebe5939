package jobsvc

import (
	"fmt"
	"net/http"

	"scribeflow/internal/domain"
)

// APIError is a non-2xx answer from the job service.
type APIError struct {
	StatusCode int
	// Detail is the human readable message the service supplied, if any.
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("jobsvc: %s (status %d)", e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("jobsvc: status %d", e.StatusCode)
}

// Is maps well-known status codes onto domain sentinels so callers can use
// errors.Is without inspecting codes.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case domain.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case domain.ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	default:
		return false
	}
}
