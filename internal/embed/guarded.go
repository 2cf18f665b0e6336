package embed

import (
	"context"

	"github.com/ppiankov/vitalscribe/internal/guard"
)

// GuardedEmbedder runs every call through a guard (timeout, retry, circuit breaker)
type GuardedEmbedder struct {
	inner Embedder
	guard *guard.Guard
}

// NewGuardedEmbedder wraps inner with g
func NewGuardedEmbedder(inner Embedder, g *guard.Guard) *GuardedEmbedder {
	return &GuardedEmbedder{inner: inner, guard: g}
}

// Model returns the wrapped embedder's model
func (e *GuardedEmbedder) Model() string {
	return e.inner.Model()
}

// Embed calls the wrapped embedder under the guard
func (e *GuardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := e.guard.Do(ctx, func(ctx context.Context) error {
		v, err := e.inner.Embed(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}
