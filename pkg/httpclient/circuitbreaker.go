package httpclient

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this breaker in metrics and logs.
	Name string

	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts periodically. 0 never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration

	// FailureRatio of failed to total calls that trips the breaker.
	FailureRatio float64

	// MinRequests before FailureRatio is evaluated.
	MinRequests uint32
}

// DefaultCircuitBreakerConfig returns sensible defaults for a circuit breaker.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

var circuitBreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = gobreaker.ErrOpenState

// IsOpen reports whether err came from a breaker refusing the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// stateToFloat maps gobreaker states to prometheus gauge values.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Breaker guards calls returning T.
type Breaker[T any] struct {
	cb   *gobreaker.CircuitBreaker[T]
	name string
}

// callerAbort marks an error caused by the caller's context ending while fn
// ran. It never counts as a failure.
type callerAbort struct{ err error }

func (e *callerAbort) Error() string { return e.err.Error() }
func (e *callerAbort) Unwrap() error { return e.err }

// NewBreaker creates a breaker. isSuccessful decides which errors count as
// healthy outcomes (e.g. a declined card is the provider working fine); nil
// treats every error as a failure. Errors caused by the caller's own context
// being cancelled or timing out are never failures.
func NewBreaker[T any](cfg CircuitBreakerConfig, logger *slog.Logger, isSuccessful func(error) bool) *Breaker[T] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			circuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		IsSuccessful: func(err error) bool {
			var abort *callerAbort
			if err == nil || errors.As(err, &abort) {
				return true
			}
			if isSuccessful == nil {
				return false
			}
			return isSuccessful(err)
		},
	}

	circuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	return &Breaker[T]{
		cb:   gobreaker.NewCircuitBreaker[T](settings),
		name: cfg.Name,
	}
}

// Execute runs fn through the breaker. Calls are refused with ErrCircuitOpen
// while open. A ctx that is already done skips the breaker entirely.
func (b *Breaker[T]) Execute(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	v, err := b.cb.Execute(func() (T, error) {
		v, err := fn(ctx)
		if err != nil && ctx.Err() != nil {
			return v, &callerAbort{err: err}
		}
		return v, err
	})
	var abort *callerAbort
	if errors.As(err, &abort) {
		return v, abort.err
	}
	return v, err
}

// State returns the current state of the circuit breaker.
func (b *Breaker[T]) State() gobreaker.State {
	return b.cb.State()
}

// Name returns the breaker's name.
func (b *Breaker[T]) Name() string {
	return b.name
}
