// Package resilience wraps repeated sandbox and IoT dispatch failures in
// a circuit breaker, so a skill or device that keeps tripping quota,
// timeout, or policy checks stops being retried until it cools down.
package resilience

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures one named circuit breaker.
type BreakerConfig struct {
	Name                string
	MaxHalfOpenRequests uint32
	ResetInterval       time.Duration
	OpenTimeout         time.Duration
	FailureThreshold    uint32
	OnStateChange       func(name string, from, to gobreaker.State)
}

// Breaker wraps a gobreaker.CircuitBreaker for calls returning a value of
// type T, generic so it serves both skill sandbox invocations
// (map[string]interface{} results) and IoT dispatch acknowledgements
// without this package depending on either. gobreaker's own API predates
// generics, so the type-erased interface{} result is cast back to T on
// every successful call.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker builds a Breaker. It opens once FailureThreshold consecutive
// failures have been observed within ResetInterval, and probes recovery
// after OpenTimeout with up to MaxHalfOpenRequests trial calls.
func NewBreaker[T any](cfg BreakerConfig) *Breaker[T] {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MaxHalfOpenRequests == 0 {
		cfg.MaxHalfOpenRequests = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxHalfOpenRequests,
		Interval:    cfg.ResetInterval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from, to)
		}
	}

	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker, returning its result or a
// gobreaker rejection error ("circuit breaker is open") when tripped.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	var zero T
	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return zero, fmt.Errorf("%s: %w", b.cb.Name(), err)
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected result type", b.cb.Name())
	}
	return typed, nil
}

// State returns the breaker's current state.
func (b *Breaker[T]) State() gobreaker.State {
	return b.cb.State()
}
