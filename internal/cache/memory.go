package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps vectors in process memory until they expire or their
// model is evicted
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache creates a memory cache. ttl <= 0 keeps vectors until evicted.
func NewMemoryCache(ttl time.Duration, cleanupInterval time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryCache{items: gocache.New(ttl, cleanupInterval)}
}

// Get returns the cached vector. Callers must not modify it.
func (c *MemoryCache) Get(embeddingModel, text string) ([]float32, bool) {
	v, found := c.items.Get(EmbeddingKey(embeddingModel, text))
	if !found {
		return nil, false
	}
	vec, ok := v.([]float32)
	return vec, ok && len(vec) > 0
}

// Set stores a copy of vec
func (c *MemoryCache) Set(embeddingModel, text string, vec []float32) error {
	if len(vec) == 0 {
		return ErrEmptyVector
	}
	c.items.SetDefault(EmbeddingKey(embeddingModel, text), append([]float32(nil), vec...))
	return nil
}

// Evict drops the vectors of one embedding model
func (c *MemoryCache) Evict(embeddingModel string) (int, error) {
	prefix := modelPrefix(embeddingModel)
	n := 0
	for key := range c.items.Items() {
		if strings.HasPrefix(key, prefix) {
			c.items.Delete(key)
			n++
		}
	}
	return n, nil
}
