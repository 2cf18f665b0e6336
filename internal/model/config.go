package model

import "time"

// Config holds the complete runtime configuration
type Config struct {
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Embedding    EmbeddingConfig    `yaml:"embedding" mapstructure:"embedding"`
	Retrieval    RetrievalConfig    `yaml:"retrieval" mapstructure:"retrieval"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Timeouts     TimeoutConfig      `yaml:"timeouts" mapstructure:"timeouts"`
	Breaker      BreakerConfig      `yaml:"breaker" mapstructure:"breaker"`
	Retry        RetryConfig        `yaml:"retry" mapstructure:"retry"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
}

// LLMConfig configures the language-model completion service
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// EmbeddingConfig configures the embedding service
type EmbeddingConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // openai, ollama, "" (disabled)
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"-" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// RetrievalConfig configures candidate retrieval
type RetrievalConfig struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
	TopK      int     `yaml:"top_k" mapstructure:"top_k"`
}

// StoreConfig configures persistence
type StoreConfig struct {
	Driver              string        `yaml:"driver" mapstructure:"driver"` // sqlite, postgres
	DSN                 string        `yaml:"dsn" mapstructure:"dsn"`
	TranscriptRetention time.Duration `yaml:"transcript_retention" mapstructure:"transcript_retention"`
}

// CacheConfig configures the embedding cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend   string        `yaml:"backend" mapstructure:"backend"` // memory, layered, redis
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	RedisAddr string        `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
}

// ConcurrencyConfig configures worker pools
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig throttles calls to external services. The per-service
// rates override RequestsPerSecond when positive.
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
	EmbedRPS          float64 `yaml:"embed_rps" mapstructure:"embed_rps"`
	CompletionRPS     float64 `yaml:"completion_rps" mapstructure:"completion_rps"`
}

// TimeoutConfig bounds each external call
type TimeoutConfig struct {
	Embed      time.Duration `yaml:"embed" mapstructure:"embed"`
	Search     time.Duration `yaml:"search" mapstructure:"search"`
	Completion time.Duration `yaml:"completion" mapstructure:"completion"`
	Persist    time.Duration `yaml:"persist" mapstructure:"persist"`
}

// BreakerConfig configures the circuit breakers around external services
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures" mapstructure:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout" mapstructure:"open_timeout"`
}

// RetryConfig configures retries of transient failures
type RetryConfig struct {
	MaxRetries      uint64        `yaml:"max_retries" mapstructure:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval" mapstructure:"initial_interval"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Environment string `yaml:"environment" mapstructure:"environment"`
	Level       string `yaml:"level" mapstructure:"level"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// HTTPConfig configures outbound HTTP clients
type HTTPConfig struct {
	HTTPProxy    string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "", // Disabled by default: pattern extraction only
			Model:     "gpt-4o-mini",
			Timeout:   30,
			MaxTokens: 2000,
		},
		Embedding: EmbeddingConfig{
			Provider: "",
			Model:    "text-embedding-3-small",
		},
		Retrieval: RetrievalConfig{
			Threshold: 0.6,
			TopK:      20,
		},
		Store: StoreConfig{
			Driver:              "sqlite",
			DSN:                 "~/.vitalscribe/vitalscribe.db",
			TranscriptRetention: 30 * 24 * time.Hour,
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "layered",
			Dir:     "~/.vitalscribe/cache",
			TTL:     7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 5,
			BurstSize:         5,
		},
		Timeouts: TimeoutConfig{
			Embed:      10 * time.Second,
			Search:     5 * time.Second,
			Completion: 45 * time.Second,
			Persist:    5 * time.Second,
		},
		Breaker: BreakerConfig{
			MaxFailures: 5,
			OpenTimeout: 30 * time.Second,
		},
		Retry: RetryConfig{
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Environment: "production",
			Level:       "info",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		HTTP: HTTPConfig{
			MaxBodyBytes: 1_000_000,
		},
	}
}
