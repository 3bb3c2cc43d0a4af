package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"solarcrawl/pkg/types"
)

// BackoffPolicy computes capped geometric retry delays.
type BackoffPolicy struct {
	Base       time.Duration
	Cap        time.Duration
	Multiplier float64
	MaxRetries int
}

// DefaultBackoff returns the policy used for catalog crawls: 2s, 5s, 12.5s,
// then capped at 15s, for up to five retries.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		Base:       2 * time.Second,
		Cap:        15 * time.Second,
		Multiplier: 2.5,
		MaxRetries: 5,
	}
}

// Delay returns the wait before retry number attempt (0-based).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}
	d := time.Duration(float64(base) * math.Pow(mult, float64(attempt)))
	if p.Cap > 0 && (d > p.Cap || d <= 0) {
		d = p.Cap
	}
	return d
}

// Retrier wraps a Fetcher with bounded exponential backoff. Sleep is
// injectable so tests can run with a fake clock.
type Retrier struct {
	inner  Fetcher
	policy BackoffPolicy
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// NewRetrier builds a retrying fetcher around inner.
func NewRetrier(inner Fetcher, policy BackoffPolicy, logger *slog.Logger) *Retrier {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{
		inner:  inner,
		policy: policy,
		sleep:  sleepCtx,
		logger: logger,
	}
}

// Fetch attempts the inner fetch up to 1+MaxRetries times. Timeouts,
// connection errors, and non-2xx statuses are all retried; once attempts
// are exhausted the last error is surfaced as a terminal *RetryError.
func (r *Retrier) Fetch(ctx context.Context, target types.CrawlTarget) (*types.Page, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		page, err := r.inner.Fetch(ctx, target)
		attempts++
		if err == nil {
			return page, nil
		}
		lastErr = err

		if !retryable(err) {
			break
		}
		if attempt == r.policy.MaxRetries {
			break
		}

		delay := r.policy.Delay(attempt)
		r.logger.Debug("fetch attempt failed, backing off",
			"url", target.URL.String(),
			"attempt", attempt+1,
			"delay", delay.String(),
			"error", err,
		)
		if err := r.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	return nil, &RetryError{URL: target.URL.String(), Attempts: attempts, Last: lastErr}
}

// retryable reports whether another attempt could plausibly succeed.
// Context cancellation is terminal, as is a 410: the server has declared
// the resource permanently gone. Flaky 404s are still retried.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Gone() {
		return false
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
