// Package index builds the field embedding index used for candidate retrieval.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/embed"
	"github.com/ppiankov/vitalscribe/internal/metrics"
	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/store"
	"github.com/ppiankov/vitalscribe/internal/worker"
)

// ErrNothingEmbedded is returned when every field failed to embed
var ErrNothingEmbedded = errors.New("no field embedded; previous index kept")

// Catalog is the subset of the field catalog the builder needs
type Catalog interface {
	All() []model.FieldDefinition
}

// Evicter drops cached vectors of an embedding model
type Evicter interface {
	Evict(embeddingModel string) (int, error)
}

// RebuildReport summarizes one rebuild
type RebuildReport struct {
	SuccessCount int             `json:"successCount"`
	ErrorCount   int             `json:"errorCount"`
	Failed       []model.FieldID `json:"failed,omitempty"`
	Model        string          `json:"model"`
	EvictedModel string          `json:"evictedModel,omitempty"` // Previous index model, dropped from the cache
	Duration     time.Duration   `json:"duration"`
}

// Builder regenerates the embedding index from the catalog
type Builder struct {
	catalog  Catalog
	embedder embed.Embedder
	store    store.EmbeddingStore
	limiter  *worker.Limiter
	workers  int
	log      *zap.Logger

	mu sync.Mutex // one rebuild at a time
}

// NewBuilder creates a builder. limiter may be nil.
func NewBuilder(catalog Catalog, embedder embed.Embedder, st store.EmbeddingStore, limiter *worker.Limiter, workers int, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		catalog:  catalog,
		embedder: embedder,
		store:    st,
		limiter:  limiter,
		workers:  workers,
		log:      log,
	}
}

type embedJob struct {
	def      model.FieldDefinition
	embedder embed.Embedder
	limiter  *worker.Limiter
}

type embedResult struct {
	embedding model.FieldEmbedding
	err       error
}

func (r *embedResult) GetError() error {
	return r.err
}

func (j *embedJob) Execute(ctx context.Context) worker.Result {
	res := &embedResult{embedding: model.FieldEmbedding{
		FieldID:    j.def.ID,
		SourceText: RenderDocument(j.def),
		Model:      j.embedder.Model(),
	}}

	if j.limiter != nil {
		if err := j.limiter.Wait(ctx, worker.KeyEmbed); err != nil {
			res.err = err
			return res
		}
	}

	vec, err := j.embedder.Embed(ctx, res.embedding.SourceText)
	if err != nil {
		res.err = err
		return res
	}
	res.embedding.Vector = vec
	return res
}

// Rebuild embeds every catalog field and swaps the stored index atomically.
// Individual field failures are logged and counted; they do not abort the rebuild.
func (b *Builder) Rebuild(ctx context.Context) (*RebuildReport, error) {
	report, err := b.rebuild(ctx)
	indexed := 0
	if report != nil {
		indexed = report.SuccessCount
	}
	metrics.ObserveRebuild(err, indexed)
	return report, err
}

func (b *Builder) rebuild(ctx context.Context) (*RebuildReport, error) {
	if b.embedder == nil {
		return nil, fmt.Errorf("no embedding provider configured")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	defs := b.catalog.All()

	jobs := make([]worker.Job, len(defs))
	for i, def := range defs {
		jobs[i] = &embedJob{def: def, embedder: b.embedder, limiter: b.limiter}
	}
	results := worker.Run(ctx, b.workers, jobs)

	report := &RebuildReport{Model: b.embedder.Model()}
	embeddings := make([]model.FieldEmbedding, 0, len(results))
	dims := 0
	for _, r := range results {
		er := r.(*embedResult)
		if er.err == nil && dims != 0 && len(er.embedding.Vector) != dims {
			er.err = fmt.Errorf("dimension %d differs from %d", len(er.embedding.Vector), dims)
		}
		if er.err != nil {
			report.ErrorCount++
			report.Failed = append(report.Failed, er.embedding.FieldID)
			b.log.Warn("Field embedding failed", zap.String("field_id", er.embedding.FieldID.String()), zap.Error(er.err))
			continue
		}
		dims = len(er.embedding.Vector)
		embeddings = append(embeddings, er.embedding)
	}
	// Jobs cancelled before they ran produce no result.
	if missing := len(defs) - len(results); missing > 0 {
		report.ErrorCount += missing
	}
	report.SuccessCount = len(embeddings)
	report.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("rebuild cancelled: %w", err)
	}
	if len(embeddings) == 0 {
		return report, ErrNothingEmbedded
	}

	previous, _, err := b.store.IndexModel(ctx)
	if err != nil {
		b.log.Debug("Reading previous index model failed", zap.Error(err))
	}

	if err := b.store.ReplaceEmbeddings(ctx, embeddings); err != nil {
		return report, fmt.Errorf("swapping index: %w", err)
	}

	if previous != "" && previous != report.Model {
		b.evict(previous, report)
	}

	b.log.Info("Embedding index rebuilt",
		zap.Int("success_count", report.SuccessCount),
		zap.Int("error_count", report.ErrorCount),
		zap.String("model", report.Model),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// evict drops the vectors of a model the index no longer uses
func (b *Builder) evict(previous string, report *RebuildReport) {
	ev, ok := b.embedder.(Evicter)
	if !ok {
		return
	}
	n, err := ev.Evict(previous)
	if err != nil {
		b.log.Warn("Evicting cached vectors failed", zap.String("model", previous), zap.Error(err))
		return
	}
	report.EvictedModel = previous
	b.log.Info("Evicted cached vectors of previous embedding model", zap.String("model", previous), zap.Int("count", n))
}
