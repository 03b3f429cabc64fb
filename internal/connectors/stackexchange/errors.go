package stackexchange

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

// Stack Exchange error ids with special handling.
// See https://api.stackexchange.com/docs/error-handling.
const (
	errorIDThrottleViolation = 502
	errorIDTemporarilyDown   = 503
	errorIDInternal          = 500
)

// ErrInvalidTag indicates an empty tag was requested.
var ErrInvalidTag = errors.New("stackexchange: tag is required")

// APIError is an error response from the Stack Exchange API.
type APIError struct {
	StatusCode int
	ErrorID    int
	Name       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("stackexchange: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("stackexchange: %s (%d): %s", e.Name, e.ErrorID, e.Message)
}

// Unwrap maps throttling responses to domain.ErrRateLimited.
func (e *APIError) Unwrap() error {
	if e.throttled() {
		return domain.ErrRateLimited
	}
	return nil
}

func (e *APIError) throttled() bool {
	return e.ErrorID == errorIDThrottleViolation || e.StatusCode == http.StatusTooManyRequests
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	if e.throttled() {
		return true
	}
	switch e.ErrorID {
	case errorIDTemporarilyDown, errorIDInternal:
		return true
	}
	return e.StatusCode >= http.StatusInternalServerError
}

// IsRateLimited checks if the error indicates throttling.
func IsRateLimited(err error) bool {
	return errors.Is(err, domain.ErrRateLimited)
}
