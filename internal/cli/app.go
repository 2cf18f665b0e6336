package cli

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/cache"
	"github.com/ppiankov/vitalscribe/internal/catalog"
	"github.com/ppiankov/vitalscribe/internal/embed"
	"github.com/ppiankov/vitalscribe/internal/extract"
	"github.com/ppiankov/vitalscribe/internal/guard"
	"github.com/ppiankov/vitalscribe/internal/index"
	"github.com/ppiankov/vitalscribe/internal/llm"
	"github.com/ppiankov/vitalscribe/internal/logging"
	"github.com/ppiankov/vitalscribe/internal/metrics"
	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/pipeline"
	"github.com/ppiankov/vitalscribe/internal/retrieve"
	"github.com/ppiankov/vitalscribe/internal/store"
	"github.com/ppiankov/vitalscribe/internal/validate"
	"github.com/ppiankov/vitalscribe/internal/worker"
)

// app holds the wired components shared by the commands
type app struct {
	cfg       *model.Config
	log       *zap.Logger
	catalog   *catalog.Catalog
	store     store.Store
	embedder  embed.Embedder // nil when no embedding provider is configured
	limiter   *worker.Limiter
	validator *validate.Validator
	pipeline  *pipeline.Pipeline
	builder   *index.Builder
	closers   []io.Closer
}

// newApp loads the configuration and wires every component.
// withStore=false skips the database (validate, fields).
func newApp(withStore bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	log, err := logging.New(logging.Config{
		Environment: cfg.Logging.Environment,
		Level:       level,
		Service:     "vitalscribe",
	})
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("load field catalog: %w", err)
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		catalog:   cat,
		limiter:   newLimiter(cfg.RateLimiting),
		validator: validate.New(cat, log.Named("validate")),
	}

	if withStore {
		st, err := store.Open(store.Config{
			Driver:    cfg.Store.Driver,
			DSN:       cfg.Store.DSN,
			Retention: cfg.Store.TranscriptRetention,
		})
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = st
		a.closers = append(a.closers, st)
	}

	if err := a.wireEmbedder(); err != nil {
		a.Close()
		return nil, err
	}

	opts := extract.Options{
		Catalog:   cat,
		Threshold: cfg.Retrieval.Threshold,
		TopK:      cfg.Retrieval.TopK,
		MaxTokens: cfg.LLM.MaxTokens,
	}

	// Interfaces stay nil when a service is disabled so the chain skips the model strategy
	if a.embedder != nil && a.store != nil {
		searchGuard := guard.New(guard.FromModel("vector_search", cfg.Timeouts.Search, cfg.Breaker, cfg.Retry),
			log.Named("guard"), metrics.BreakerState)
		opts.Retriever = retrieve.New(a.embedder, a.store, searchGuard,
			cfg.Retrieval.Threshold, cfg.Retrieval.TopK, log.Named("retrieve"))
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}
	if provider != nil {
		completionGuard := guard.New(guard.FromModel("completion", cfg.Timeouts.Completion, cfg.Breaker, cfg.Retry),
			log.Named("guard"), metrics.BreakerState)
		opts.Provider = llm.NewGuardedProvider(provider, completionGuard)
	}

	chain := extract.New(opts, log.Named("extract"))
	log.Debug("Extraction chain ready", zap.Strings("strategies", chain.Strategies()))

	// Keep the Store interface nil when persistence is off
	var pst pipeline.Store
	if a.store != nil {
		pst = a.store
	}
	a.pipeline = pipeline.New(chain, a.validator, pst, cfg.Timeouts.Persist, log.Named("pipeline"))

	if a.store != nil {
		a.builder = index.NewBuilder(cat, a.embedder, a.store, a.limiter, cfg.Concurrency.Workers, log.Named("index"))
	}

	return a, nil
}

// wireEmbedder builds embedder -> guard -> cache. Cache hits skip the guard.
func (a *app) wireEmbedder() error {
	e, err := embed.New(embed.ConfigFromModel(a.cfg))
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	if e == nil {
		return nil
	}

	g := guard.New(guard.FromModel("embedding", a.cfg.Timeouts.Embed, a.cfg.Breaker, a.cfg.Retry),
		a.log.Named("guard"), metrics.BreakerState)
	var guarded embed.Embedder = embed.NewGuardedEmbedder(e, g)

	c, err := cache.New(a.cfg.Cache, a.log.Named("cache"))
	if err != nil {
		// The cache is an optimization; run without it
		a.log.Warn("Embedding cache unavailable", zap.Error(err))
		c = nil
	}
	if closer, ok := c.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}

	a.embedder = embed.NewCachedEmbedder(guarded, c, a.log.Named("embed"))
	return nil
}

// Close releases the store and cache connections and flushes the logger
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: close: %v\n", err)
		}
	}
	_ = a.log.Sync()
}

// newLimiter applies the shared rate and any per-service overrides
func newLimiter(cfg model.RateLimitingConfig) *worker.Limiter {
	l := worker.NewLimiter(cfg.RequestsPerSecond, cfg.BurstSize)
	if cfg.EmbedRPS > 0 {
		l.SetRate(worker.KeyEmbed, cfg.EmbedRPS, cfg.BurstSize)
	}
	if cfg.CompletionRPS > 0 {
		l.SetRate(worker.KeyCompletion, cfg.CompletionRPS, cfg.BurstSize)
	}
	return l
}
