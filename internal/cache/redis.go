package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisOpTimeout = 2 * time.Second

// globEscaper quotes the characters SCAN MATCH treats as patterns
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// RedisCache shares embedding vectors between processes
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisCache connects to addr and verifies the connection
func NewRedisCache(addr string, ttl time.Duration, log *zap.Logger) (*RedisCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis cache requires an address")
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, ttl, log), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		log:    log.With(zap.String("module", "cache")),
	}
}

// Get reads a vector. Connection errors are logged and reported as a miss.
func (c *RedisCache) Get(embeddingModel, text string) ([]float32, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	key := EmbeddingKey(embeddingModel, text)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("failed to get cache", zap.String("model", embeddingModel), zap.Error(err))
		return nil, false
	}
	vec, ok := decodeVector(data)
	if !ok {
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	return vec, true
}

// Set stores a vector with the cache TTL
func (c *RedisCache) Set(embeddingModel, text string, vec []float32) error {
	if len(vec) == 0 {
		return ErrEmptyVector
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := c.client.Set(ctx, EmbeddingKey(embeddingModel, text), encodeVector(vec), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Evict deletes every key of the model
func (c *RedisCache) Evict(embeddingModel string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n := 0
	iter := c.client.Scan(ctx, 0, globEscaper.Replace(modelPrefix(embeddingModel))+"*", 500).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return n, fmt.Errorf("failed to evict cache: %w", err)
		}
		n++
	}
	return n, iter.Err()
}

// Close closes the client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
