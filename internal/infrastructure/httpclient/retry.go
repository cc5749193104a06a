package httpclient

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

// RetryPolicy bounds how a failed call is retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first one.
	// Values below 1 mean a single attempt.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// ShouldRetry decides whether err is worth another attempt. Defaults to
	// DefaultShouldRetry.
	ShouldRetry func(err error) bool
	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultShouldRetry retries only transient classes: network failures,
// timeouts and 5xx answers.
func DefaultShouldRetry(err error) bool {
	ae, ok := domain.AsAppError(err)
	return ok && ae.Retryable()
}

// Retry runs fn until it succeeds, the policy gives up, or ctx ends. The last
// error is returned unchanged.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = DefaultShouldRetry
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= attempts || !shouldRetry(err) || ctx.Err() != nil {
			return err
		}

		delay := p.backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
}

// backoff returns an exponential delay with full jitter for the given attempt.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay << (attempt - 1)
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		d = p.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
