// Package circuitbreaker wraps sony/gobreaker/v2 with the defaults
// this codebase wants at every call site: a named breaker, a
// consecutive-failures trip condition, and a settable
// OnStateChange hook for logging/metrics.
package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// State re-exports gobreaker's state so callers don't import gobreaker
// directly for logging/metrics purposes.
type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// Config mirrors gobreaker.Settings with a name-scoped default trip
// condition already filled in.
type Config struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from, to gobreaker.State)
	IsSuccessful  func(err error) bool
}

// DefaultConfig returns a breaker configuration named name that trips
// after 5 consecutive failures, allows 2 probe requests while
// half-open, and resets its rolling counts every 60s while closed.
// The breaker stays open for 30s before probing again.
func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker[T], surfacing only
// what call sites need: Execute, State and Name.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New builds a CircuitBreaker[T] from cfg.
func New[T any](cfg Config) *CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   cfg.ReadyToTrip,
		OnStateChange: cfg.OnStateChange,
		IsSuccessful:  cfg.IsSuccessful,
	}
	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs req through the breaker: short-circuits with
// gobreaker.ErrOpenState or gobreaker.ErrTooManyRequests when the
// breaker isn't accepting calls, otherwise runs req and feeds its
// error back into the breaker's trip logic.
func (c *CircuitBreaker[T]) Execute(req func() (T, error)) (T, error) {
	return c.cb.Execute(req)
}

// State returns the breaker's current state.
func (c *CircuitBreaker[T]) State() State {
	return c.cb.State()
}

// Name returns the breaker's configured name.
func (c *CircuitBreaker[T]) Name() string {
	return c.cb.Name()
}

// Counts returns the breaker's current rolling counts.
func (c *CircuitBreaker[T]) Counts() gobreaker.Counts {
	return c.cb.Counts()
}
