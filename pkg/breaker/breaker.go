package breaker

import (
	"context"
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed allows calls to pass through.
	StateClosed State = iota
	// StateOpen rejects all calls without invoking the wrapped function.
	StateOpen
	// StateHalfOpen allows probe calls to test if the dependency has recovered.
	StateHalfOpen
)

// String returns the string representation of the circuit state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker protects a single external dependency from cascading
// failure. Each dependency gets its own instance with its own lock, so a
// failing provider never serializes calls to a healthy one.
// Safe for concurrent use.
type CircuitBreaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration

	state           State
	failures        int
	successes       int // consecutive successes in half-open
	lastFailureTime time.Time
}

// New creates a circuit breaker with the given thresholds.
// Defaults protect against flapping while allowing quick recovery.
func New(name string, failureThreshold, successThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 2
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}

	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
	}
}

// Do executes fn under circuit breaker protection. When the circuit is
// open it returns an *OpenError carrying the remaining cooldown without
// invoking fn. Context errors from fn count as failures like any other.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		cb.RecordFailure()
		return err
	}

	cb.RecordSuccess()
	return nil
}

// allow checks whether a call may proceed, transitioning open -> half-open
// once the recovery timeout has elapsed.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return nil

	case StateOpen:
		elapsed := time.Since(cb.lastFailureTime)
		if elapsed >= cb.recoveryTimeout {
			cb.state = StateHalfOpen
			cb.successes = 0
			return nil
		}
		return &OpenError{Name: cb.name, RetryAfter: cb.recoveryTimeout - elapsed}

	default:
		return &OpenError{Name: cb.name, RetryAfter: cb.recoveryTimeout}
	}
}

// RecordSuccess records a successful call and may close the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		// Any success resets the failure counter to prevent gradual
		// degradation from intermittent errors.
		cb.failures = 0

	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
		}
	}
}

// RecordFailure records a failed call and may open the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = StateOpen
		}

	case StateHalfOpen:
		// A single failure while probing immediately reopens.
		cb.state = StateOpen
		cb.failures = cb.failureThreshold
		cb.successes = 0
	}
}

// State returns the state the breaker would act on right now, accounting
// for the automatic open -> half-open transition.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailureTime) >= cb.recoveryTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset returns the circuit breaker to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.lastFailureTime = time.Time{}
}

// Stats provides visibility into breaker state for monitoring.
type Stats struct {
	Name            string
	State           string
	Failures        int
	Successes       int
	LastFailureTime time.Time
}

// Stats returns the current statistics of the circuit breaker.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		Name:            cb.name,
		State:           cb.state.String(),
		Failures:        cb.failures,
		Successes:       cb.successes,
		LastFailureTime: cb.lastFailureTime,
	}
}
