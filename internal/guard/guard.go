// Package guard wraps calls to external services with a per-attempt timeout,
// bounded exponential retries and a circuit breaker.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/model"
)

// ErrCircuitOpen is returned while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit open")

// Config tunes one guard
type Config struct {
	Name            string
	Timeout         time.Duration // Per attempt; 0 means no timeout
	MaxFailures     uint32        // Consecutive failures before opening
	OpenTimeout     time.Duration // Time spent open before probing
	MaxRetries      uint64
	InitialInterval time.Duration
}

// FromModel builds a guard config for the named service
func FromModel(name string, timeout time.Duration, b model.BreakerConfig, r model.RetryConfig) Config {
	return Config{
		Name:            name,
		Timeout:         timeout,
		MaxFailures:     b.MaxFailures,
		OpenTimeout:     b.OpenTimeout,
		MaxRetries:      r.MaxRetries,
		InitialInterval: r.InitialInterval,
	}
}

// StateFunc observes breaker transitions
type StateFunc func(name string, open bool)

// Guard protects one external dependency
type Guard struct {
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// New creates a guard. onState may be nil.
func New(cfg Config, log *zap.Logger, onState StateFunc) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the dependency's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			if onState != nil {
				onState(name, to == gobreaker.StateOpen)
			}
		},
	}

	return &Guard{
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}
}

// Name returns the guarded service name
func (g *Guard) Name() string {
	return g.cfg.Name
}

// Open reports whether the breaker is currently rejecting calls
func (g *Guard) Open() bool {
	return g.breaker.State() == gobreaker.StateOpen
}

// Do runs fn under the guard. Errors wrapped with Permanent are not retried.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		_, err := g.breaker.Execute(func() (interface{}, error) {
			actx := ctx
			if g.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
				defer cancel()
			}
			return nil, fn(actx)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(fmt.Errorf("%s: %w", g.cfg.Name, ErrCircuitOpen))
		}
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if err != nil {
			g.log.Debug("Guarded call failed", zap.String("name", g.cfg.Name), zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = g.cfg.InitialInterval
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, g.cfg.MaxRetries), ctx)

	return backoff.Retry(operation, policy)
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return backoff.Permanent(err)
}
