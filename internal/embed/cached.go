package embed

import (
	"context"

	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/cache"
)

// CachedEmbedder serves repeated texts from a cache
type CachedEmbedder struct {
	inner Embedder
	cache cache.Cache
	log   *zap.Logger
}

// NewCachedEmbedder wraps inner. A nil cache disables caching.
func NewCachedEmbedder(inner Embedder, c cache.Cache, log *zap.Logger) Embedder {
	if c == nil {
		return inner
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedEmbedder{inner: inner, cache: c, log: log}
}

// Model returns the wrapped embedder's model
func (e *CachedEmbedder) Model() string {
	return e.inner.Model()
}

// Embed returns a cached vector or computes and stores one
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddingModel := e.inner.Model()
	if vec, ok := e.cache.Get(embeddingModel, text); ok {
		return vec, nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.cache.Set(embeddingModel, text, vec); err != nil {
		e.log.Debug("Embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}

// Evict drops the cached vectors of an embedding model that is no longer indexed
func (e *CachedEmbedder) Evict(embeddingModel string) (int, error) {
	return e.cache.Evict(embeddingModel)
}
