package httpclient

import (
	"context"
	"sync"
	"time"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/metrics"
)

// BreakerState is the circuit breaker's position.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling a failing dependency after Threshold
// consecutive transient failures. With a zero cooldown it stays open until
// Reset; otherwise one trial call is let through after the cooldown.
type CircuitBreaker struct {
	name       string
	threshold  int
	cooldown   time.Duration
	shouldTrip func(error) bool
	now        func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	trial    bool
}

// NewCircuitBreaker builds a breaker. threshold <= 0 disables tripping.
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:       name,
		threshold:  threshold,
		cooldown:   cooldown,
		shouldTrip: DefaultShouldRetry,
		now:        time.Now,
	}
}

// Execute runs fn unless the circuit is open.
func (b *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	// The caller giving up says nothing about the dependency.
	if err != nil && ctx.Err() != nil {
		b.release()
		return err
	}
	b.record(err)
	return err
}

// State returns the current position.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the circuit and clears the failure count.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	b.close()
	b.mu.Unlock()
}

func (b *CircuitBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.cooldown <= 0 || b.now().Sub(b.openedAt) < b.cooldown {
			return b.openErr()
		}
		b.state = BreakerHalfOpen
		b.trial = true
		return nil
	case BreakerHalfOpen:
		if b.trial {
			return b.openErr()
		}
		b.trial = true
		return nil
	default:
		return nil
	}
}

func (b *CircuitBreaker) release() {
	b.mu.Lock()
	b.trial = false
	b.mu.Unlock()
}

func (b *CircuitBreaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false

	if err == nil || !b.shouldTrip(err) {
		b.close()
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || (b.threshold > 0 && b.failures >= b.threshold) {
		b.state = BreakerOpen
		b.openedAt = b.now()
		metrics.CircuitOpen.WithLabelValues(b.name).Set(1)
	}
}

func (b *CircuitBreaker) close() {
	if b.state != BreakerClosed {
		metrics.CircuitOpen.WithLabelValues(b.name).Set(0)
	}
	b.state = BreakerClosed
	b.failures = 0
	b.trial = false
}

func (b *CircuitBreaker) openErr() error {
	return &domain.AppError{
		Type:    domain.TypeNetwork,
		Code:    domain.CodeCircuitOpen,
		Message: "service temporarily unavailable after repeated failures",
	}
}
