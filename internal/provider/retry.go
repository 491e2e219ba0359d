package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"alexbot/internal/domain"
	"alexbot/internal/metrics"

	"google.golang.org/api/googleapi"
)

// generateFunc is one attempt against the generation API, with the prompt
// already bound.
type generateFunc func(ctx context.Context) (string, error)

// sleepFunc suspends for d or until ctx is done. Injected so tests can
// record delays instead of waiting them out.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// generateWithRetry runs attempts 0..MaxAttempts-1. Only rate-limited
// attempts are retried: backoff cannot fix a bad request or a missing
// model, so every other failure surfaces immediately. When the last
// attempt is still rate limited, that rate-limit error is the result.
func generateWithRetry(ctx context.Context, policy domain.RetryPolicy, gen generateFunc, sleep sleepFunc, logger *slog.Logger) (string, error) {
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		text, err := gen(ctx)
		if err == nil {
			return text, nil
		}
		if !domain.IsRateLimited(err) {
			return "", err
		}

		lastErr = err
		metrics.RateLimitHits.Inc()
		if attempt == policy.MaxAttempts-1 {
			break
		}

		backoff := policy.Backoff(attempt)
		logger.Warn("generation rate limited, backing off",
			"attempt", attempt+1, "backoff", backoff)
		metrics.GenRetries.Inc()
		if err := sleep(ctx, backoff); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

// classifyGenError separates "will resolve if we wait" from everything
// else. Rate limits are recognized by the API's HTTP status or by the
// quota phrasing in the error text; all other errors pass through
// unchanged and are treated as permanent for this message.
func classifyGenError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return &domain.RateLimitError{Err: err}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource has been exhausted") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") {
		return &domain.RateLimitError{Err: err}
	}
	return err
}
