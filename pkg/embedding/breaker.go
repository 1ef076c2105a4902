package embedding

import (
	"sync"
	"time"

	"github.com/sutra-memory/engine/pkg/metrics"
)

// breakerState is one of the classic three circuit-breaker states.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker is a small hand-rolled closed/open/half-open state
// machine. No circuit-breaker library appears anywhere in the retrieved
// pack, and the state machine is small enough that stdlib sync+time is the
// right tool rather than pulling one in for three states and two counters.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration
	reg       *metrics.Registry

	state           breakerState
	consecutiveFail int
	openedAt        time.Time
}

// NewCircuitBreaker creates a breaker that trips open after threshold
// consecutive failures and allows one trial call after cooldown elapses.
func NewCircuitBreaker(threshold int, cooldown time.Duration, reg *metrics.Registry) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, reg: reg}
}

// Allow reports whether a call should proceed. When open and the cooldown
// has elapsed, it transitions to half-open and allows exactly one trial
// call through.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateHalfOpen:
		return false // a trial call is already in flight
	default: // stateOpen
		if time.Since(b.openedAt) >= b.cooldown {
			b.state = stateHalfOpen
			return true
		}
		return false
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.consecutiveFail = 0
}

// RecordFailure counts a failure, tripping the breaker open once the
// threshold is reached (or immediately, if the trial half-open call
// itself failed).
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.trip()
		return
	}
	b.consecutiveFail++
	if b.consecutiveFail >= b.threshold {
		b.trip()
	}
}

func (b *CircuitBreaker) trip() {
	b.state = stateOpen
	b.openedAt = time.Now()
	b.consecutiveFail = 0
	if b.reg != nil {
		b.reg.CircuitBreakerOpenTrip.Inc()
	}
}

// State exposes the current state for tests and diagnostics.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
