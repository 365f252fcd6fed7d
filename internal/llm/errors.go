package llm

import (
	"errors"
	"fmt"
)

// ErrRateLimited matches any rate-limit failure, including one that survived
// every retry attempt.
var ErrRateLimited = errors.New("rate limited")

// ErrEmptyResponse is returned when the backend answers without any choice.
var ErrEmptyResponse = errors.New("empty completion response")

// RateLimitError reports an HTTP 429 from a provider.
type RateLimitError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("[%s] rate limited (status=%d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("[%s] rate limited (status=%d)", e.Provider, e.StatusCode)
}

func (e *RateLimitError) Unwrap() error {
	return e.Cause
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// IsRateLimit reports whether err is, or wraps, a rate-limit failure.
func IsRateLimit(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
