package llm

import (
	"context"

	"github.com/ppiankov/vitalscribe/internal/guard"
)

// GuardedProvider runs completions through a guard (timeout, retry, circuit breaker)
type GuardedProvider struct {
	inner Provider
	guard *guard.Guard
}

// NewGuardedProvider wraps inner with g
func NewGuardedProvider(inner Provider, g *guard.Guard) *GuardedProvider {
	return &GuardedProvider{inner: inner, guard: g}
}

// Name returns the wrapped provider's name
func (p *GuardedProvider) Name() string {
	return p.inner.Name()
}

// IsAvailable reports false while the breaker is open
func (p *GuardedProvider) IsAvailable(ctx context.Context) bool {
	if p.guard.Open() {
		return false
	}
	return p.inner.IsAvailable(ctx)
}

// Complete calls the wrapped provider under the guard
func (p *GuardedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var out *CompletionResponse
	err := p.guard.Do(ctx, func(ctx context.Context) error {
		resp, err := p.inner.Complete(ctx, req)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
