package retry

import (
	"fmt"
	"sync"
	"time"

	vterr "vtrelay/internal/errors"
)

// ── Gateway state ────────────────────────────────────────────────────

// State is the jump host's health as seen by the breaker.
type State int

const (
	// StateClosed: the gateway is usable and reconnects are attempted.
	StateClosed State = iota
	// StateOpen: the gateway failed repeatedly and dials fail at once.
	StateOpen
	// StateHalfOpen: the cooldown has passed and the next reconnect is
	// a trial.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ── Configuration ────────────────────────────────────────────────────

// CircuitBreakerConfig configures a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive gateway failures that
	// open the circuit (default 3).
	MaxFailures int
	// ResetTimeout is how long the circuit stays open before a trial
	// reconnect is allowed (default 15s).
	ResetTimeout time.Duration
	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(from, to State)
}

// DefaultCircuitBreakerConfig returns the settings used for the jump
// host.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:  3,
		ResetTimeout: 15 * time.Second,
	}
}

// ── CircuitBreaker ───────────────────────────────────────────────────

// CircuitBreaker sits in front of the SSH jump host so a dead gateway
// fails terminal commands fast instead of stalling each one for a full
// connect timeout.
//
// Any success, whether a reconnect or a terminal dial through a live
// tunnel, proves the gateway works: it clears the failure count and
// closes the circuit.  A failure during the half-open trial reopens it
// at once.
type CircuitBreaker struct {
	mu            sync.Mutex
	state         State
	failures      int
	maxFailures   int
	resetTimeout  time.Duration
	openedAt      time.Time
	onStateChange func(from, to State)
	now           func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg *CircuitBreakerConfig) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultCircuitBreakerConfig()
	}
	cb := &CircuitBreaker{
		state:         StateClosed,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		onStateChange: cfg.OnStateChange,
		now:           time.Now,
	}
	if cb.maxFailures <= 0 {
		cb.maxFailures = 3
	}
	if cb.resetTimeout <= 0 {
		cb.resetTimeout = 15 * time.Second
	}
	return cb
}

// Allow reports whether a reconnect may be attempted.  While the circuit
// is open it returns an error wrapping [vterr.ErrCircuitOpen]; once the
// cooldown has passed it moves to half-open and lets the trial through.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	if cb.state != StateOpen {
		cb.mu.Unlock()
		return nil
	}
	wait := cb.resetTimeout - cb.now().Sub(cb.openedAt)
	if wait > 0 {
		n := cb.failures
		cb.mu.Unlock()
		return fmt.Errorf("%w: jump host failed %d times, retry in %v",
			vterr.ErrCircuitOpen, n, wait.Round(time.Second))
	}
	notify := cb.transition(StateHalfOpen)
	cb.mu.Unlock()
	notify()
	return nil
}

// Success records a working gateway.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	cb.failures = 0
	notify := cb.transition(StateClosed)
	cb.mu.Unlock()
	notify()
}

// Failure records a gateway that could not be reached.
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	cb.failures++
	notify := func() {}
	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		cb.openedAt = cb.now()
		notify = cb.transition(StateOpen)
	}
	cb.mu.Unlock()
	notify()
}

// Execute runs fn when [CircuitBreaker.Allow] permits it and records
// the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		cb.Failure()
		return err
	}
	cb.Success()
	return nil
}

// transition must be called with mu held.  It returns the callback to
// run once the lock is released.
func (cb *CircuitBreaker) transition(to State) func() {
	from := cb.state
	if from == to {
		return func() {}
	}
	cb.state = to
	if cb.onStateChange == nil {
		return func() {}
	}
	return func() { cb.onStateChange(from, to) }
}
