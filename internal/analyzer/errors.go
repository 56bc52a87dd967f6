package analyzer

import "errors"

var (
	// ErrInvalidInput is returned before any model call when the request
	// carries no code.
	ErrInvalidInput = errors.New("code field is required and cannot be empty")

	// ErrServiceUnavailable means the model gateway failed to initialize.
	ErrServiceUnavailable = errors.New("LLM service is not available")

	// ErrUpstream wraps any failure of the model invocation itself.
	ErrUpstream = errors.New("LLM invocation failed")
)

// Category names the failure class of err for logs.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable"
	case errors.Is(err, ErrUpstream):
		return "upstream_failure"
	default:
		return "internal"
	}
}
