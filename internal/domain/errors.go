package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means the generation API key is absent or still a
	// placeholder. No network call was made.
	ErrNotConfigured = errors.New("generation api not configured")

	// ErrEmptyResponse means the API answered but produced no usable text.
	ErrEmptyResponse = errors.New("generation returned empty response")
)

// RateLimitError wraps a provider error that carried a rate-limit signal
// (HTTP 429, quota exhaustion). It is the only generation failure worth
// retrying with backoff; everything else is terminal for the message.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err carries a rate-limit classification.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
