package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/oshokin/manifest-updater/internal/logger"
)

// Policy re-executes a fallible operation under exponential backoff,
// honoring server-supplied rate-limit hints. All failures are retried
// uniformly until the attempt budget is exhausted, then the last error
// is surfaced to the caller unmodified.
type Policy struct {
	// maxAttempts is the total number of attempts, including the first one.
	maxAttempts int
	// timer drives the waits between attempts. Nil selects the real timer.
	timer backoff.Timer
}

// New returns a policy with the provided attempt budget.
// A budget below one is raised to a single attempt.
func New(maxAttempts int) *Policy {
	return NewWithTimer(maxAttempts, nil)
}

// NewWithTimer returns a policy whose waits are driven by the provided timer.
// Used by tests to observe delays without sleeping.
func NewWithTimer(maxAttempts int, timer backoff.Timer) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Policy{
		maxAttempts: maxAttempts,
		timer:       timer,
	}
}

// Do runs the operation, retrying failures with 2^attempt second delays or
// the server's Retry-After hint when the failure is a rate limit.
// The calling goroutine blocks for the full wait; there is no cancellation
// once a wait has started. The context is used for logging only.
func (p *Policy) Do(ctx context.Context, operation func() error) error {
	delays := new(hintedBackOff)

	wrapped := func() error {
		err := operation()
		delays.lastErr = err

		return err
	}

	notify := func(err error, delay time.Duration) {
		logger.WarnKV(ctx, "Retrying after failure", "delay", delay, "error", err)
	}

	return backoff.RetryNotifyWithTimer(
		wrapped,
		backoff.WithMaxRetries(delays, uint64(p.maxAttempts-1)),
		notify,
		p.timer,
	)
}

// hintedBackOff yields 2^attempt second delays, overridden by the
// Retry-After hint when the last failure was a rate limit.
type hintedBackOff struct {
	// attempt is the zero-indexed number of completed attempts.
	attempt int
	// lastErr is the error returned by the most recent attempt.
	lastErr error
}

// NextBackOff implements backoff.BackOff.
func (b *hintedBackOff) NextBackOff() time.Duration {
	delay := time.Duration(1<<b.attempt) * time.Second
	b.attempt++

	var rateLimitErr *RateLimitError
	if errors.As(b.lastErr, &rateLimitErr) && rateLimitErr.RetryAfter > 0 {
		return rateLimitErr.RetryAfter
	}

	return delay
}

// Reset implements backoff.BackOff.
func (b *hintedBackOff) Reset() {
	b.attempt = 0
}
