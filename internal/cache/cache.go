// Package cache stores embedding vectors so repeated transcripts and unchanged
// catalog documents are not re-embedded. Vectors are namespaced by embedding
// model; a model's namespace is evicted when the index moves to another model.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/model"
)

const keyPrefix = "vitalscribe:embed:v1:"

// ErrEmptyVector is returned when caching a zero-length vector
var ErrEmptyVector = errors.New("empty vector")

// Cache stores vectors per embedding model
type Cache interface {
	Get(embeddingModel, text string) ([]float32, bool)
	Set(embeddingModel, text string, vec []float32) error
	// Evict drops every vector of one embedding model and reports how many were removed
	Evict(embeddingModel string) (int, error)
}

// EmbeddingKey derives a cache key from the embedding model and the embedded text.
func EmbeddingKey(embeddingModel, text string) string {
	return modelPrefix(embeddingModel) + textHash(text)
}

func modelPrefix(embeddingModel string) string {
	return keyPrefix + embeddingModel + ":"
}

func textHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// New builds the configured cache backend. A disabled cache returns nil.
func New(cfg model.CacheConfig, log *zap.Logger) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case "memory":
		return NewMemoryCache(cfg.TTL, 10*time.Minute), nil
	case "", "layered":
		return NewLayeredCache(time.Hour, cfg.Dir, cfg.TTL), nil
	case "redis":
		c, err := NewRedisCache(cfg.RedisAddr, cfg.TTL, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: memory, layered, redis)", cfg.Backend)
	}
}

// encodeVector packs vec as little-endian float32s, the layout the SQLite index uses
func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, bool) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, true
}
