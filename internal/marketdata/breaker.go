package marketdata

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the fetch breaker is open and the reset
// timeout has not elapsed.
var ErrCircuitOpen = errors.New("fetch circuit breaker open")

// BreakerState is the fetch breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = 0 // normal operation
	BreakerOpen     BreakerState = 1 // upstream considered down, fetches rejected
	BreakerHalfOpen BreakerState = 2 // probing with a single fetch
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker protects the chart endpoint from hammering during outages. After
// maxFailures consecutive transient failures it opens and short-circuits
// fetches for resetTimeout; the first fetch after the timeout acts as a
// half-open probe that either closes or reopens it.
//
// Only transient failures count; ErrNoData for a bogus ticker says nothing
// about upstream health, so callers record those as successes.
type Breaker struct {
	mu           sync.Mutex
	state        BreakerState
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time

	// OnStateChange is called on transitions (metrics hook). Optional.
	OnStateChange func(from, to BreakerState)
}

// NewBreaker creates a fetch breaker. Typical values: 5 failures, 60s reset.
func NewBreaker(maxFailures int, resetTimeout time.Duration) *Breaker {
	return &Breaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        BreakerClosed,
	}
}

// Allow reports whether a fetch may proceed, transitioning open → half-open
// once the reset timeout has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if time.Since(b.lastFailure) <= b.resetTimeout {
			return ErrCircuitOpen
		}
		b.transition(BreakerHalfOpen)
	}
	return nil
}

// RecordSuccess resets the failure count and closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != BreakerClosed {
		b.transition(BreakerClosed)
	}
}

// RecordFailure counts a transient failure, tripping the breaker when the
// threshold is reached or a half-open probe fails.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
		if b.state != BreakerOpen {
			b.transition(BreakerOpen)
		}
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if b.OnStateChange != nil {
		b.OnStateChange(from, to)
	}
}
