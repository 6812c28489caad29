package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wildlens/wildlens-go/internal/errors"
	"github.com/wildlens/wildlens-go/internal/logger"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// StateClosed means the circuit is closed and requests are flowing normally.
	StateClosed CircuitState = iota
	// StateHalfOpen means the circuit is testing if the services have recovered.
	StateHalfOpen
	// StateOpen means the circuit is open and requests are being rejected.
	StateOpen
)

// String returns the string representation of CircuitState.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ErrCircuitBreakerOpen is returned while deliveries are paused.
var ErrCircuitBreakerOpen = errors.Newf("circuit breaker is open").
	Component("notification").
	Category(errors.CategoryLimit).
	Build()

// CircuitBreakerConfig holds configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening the circuit.
	MaxFailures int
	// Timeout is how long to wait before transitioning from Open to Half-Open.
	Timeout time.Duration
}

// DefaultCircuitBreakerConfig returns default circuit breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures: 5,
		Timeout:     5 * time.Minute,
	}
}

// StateObserver receives circuit state changes.
type StateObserver interface {
	UpdateCircuitState(state int)
}

// circuitBreaker pauses deliveries after MaxFailures consecutive failures
// and lets a single trial delivery through once Timeout has passed.
type circuitBreaker struct {
	config          CircuitBreakerConfig
	state           CircuitState
	failures        int
	lastStateChange time.Time
	trialRunning    bool
	mu              sync.Mutex
	observer        StateObserver
	now             func() time.Time
}

func newCircuitBreaker(config CircuitBreakerConfig, observer StateObserver) *circuitBreaker {
	if config.MaxFailures < 1 {
		config.MaxFailures = 1
	}
	cb := &circuitBreaker{
		config:   config,
		state:    StateClosed,
		observer: observer,
		now:      time.Now,
	}
	cb.lastStateChange = cb.now()
	if observer != nil {
		observer.UpdateCircuitState(int(StateClosed))
	}
	return cb
}

// Call executes fn if the circuit allows it and records the outcome.
func (cb *circuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return fmt.Errorf("circuit breaker rejected request (%d consecutive failures): %w", cb.Failures(), err)
	}
	err := fn(ctx)
	cb.afterCall(err)
	return err
}

// State returns the current state.
func (cb *circuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count.
func (cb *circuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

func (cb *circuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.lastStateChange) >= cb.config.Timeout {
			cb.setState(StateHalfOpen)
			cb.trialRunning = true
			return nil
		}
		return ErrCircuitBreakerOpen
	default:
		// one trial at a time while half-open
		if cb.trialRunning {
			return ErrCircuitBreakerOpen
		}
		cb.trialRunning = true
		return nil
	}
}

func (cb *circuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trialRunning = false

	if err == nil {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.setState(StateClosed)
		}
		return
	}

	// client-side cancellation says nothing about the services
	if errors.Is(err, context.Canceled) {
		return
	}

	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
	}
}

// setState must be called with mu held.
func (cb *circuitBreaker) setState(newState CircuitState) {
	if cb.state == newState {
		return
	}
	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = cb.now()

	if cb.observer != nil {
		cb.observer.UpdateCircuitState(int(newState))
	}
	GetLogger().Info("notification circuit breaker state transition",
		logger.String("old_state", oldState.String()),
		logger.String("new_state", newState.String()),
		logger.Int("consecutive_failures", cb.failures))
}
