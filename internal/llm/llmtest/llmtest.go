// Package llmtest provides a scripted Provider for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/ppiankov/vitalscribe/internal/llm"
)

// ErrUnavailable is returned while the provider is set to fail
var ErrUnavailable = errors.New("completion service unavailable")

// Provider answers every completion with a fixed reply and records requests
type Provider struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []llm.CompletionRequest
}

// New returns a provider that answers with reply
func New(reply string) *Provider {
	return &Provider{reply: reply}
}

// Name returns "llmtest"
func (p *Provider) Name() string {
	return "llmtest"
}

// IsAvailable is true unless an error is set
func (p *Provider) IsAvailable(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err == nil
}

// SetReply replaces the canned reply
func (p *Provider) SetReply(reply string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reply = reply
}

// SetError makes every subsequent call fail with err (nil restores replies)
func (p *Provider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Requests returns a copy of every request seen
func (p *Provider) Requests() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.CompletionRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// Complete returns the canned reply
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Text: p.reply, Model: "llmtest"}, nil
}
