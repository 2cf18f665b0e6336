// Package embed adapts external embedding services.
//
// The same Embedder must serve both index build and query time: vectors from
// different models live in different spaces and cannot be compared.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/vitalscribe/internal/model"
)

// ErrEmptyEmbedding is returned when a service answers without a vector
var ErrEmptyEmbedding = errors.New("empty embedding")

// Embedder turns text into a fixed-length vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model identifies the embedding space
	Model() string
}

// Config holds embedding provider configuration
type Config struct {
	Provider string // openai, ollama, "" (disabled)
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	HTTP     model.HTTPConfig
}

// DefaultOllamaBaseURL is the OpenAI-compatible endpoint of a local Ollama
const DefaultOllamaBaseURL = "http://localhost:11434/v1"

// ConfigFromModel converts the runtime configuration
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		APIKey:   cfg.Embedding.APIKey,
		BaseURL:  cfg.Embedding.BaseURL,
		Timeout:  cfg.Timeouts.Embed,
		HTTP:     cfg.HTTP,
	}
}

// New creates an embedder for the configured provider.
// An empty provider returns nil: retrieval is disabled and extraction falls back to patterns.
func New(cfg Config) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIEmbedder(cfg)
	case "ollama":
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOllamaBaseURL
		}
		if cfg.APIKey == "" {
			cfg.APIKey = "ollama"
		}
		return NewOpenAIEmbedder(cfg)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, ollama)", cfg.Provider)
	}
}
