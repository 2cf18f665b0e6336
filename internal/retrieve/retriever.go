// Package retrieve selects candidate catalog fields for a transcript by
// embedding similarity.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/embed"
	"github.com/ppiankov/vitalscribe/internal/guard"
	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/store"
)

// Defaults used when a caller passes negative arguments
const (
	DefaultThreshold = 0.6
	DefaultTopK      = 20
)

var (
	// ErrDisabled is returned when no embedding service is configured
	ErrDisabled = errors.New("retrieval disabled")
	// ErrNoIndex is returned when the embedding index has not been built
	ErrNoIndex = errors.New("embedding index is empty")
	// ErrModelMismatch is returned when the query and index embeddings come from different spaces
	ErrModelMismatch = errors.New("embedding model mismatch")
)

// Index is the stored embedding index
type Index interface {
	store.VectorSearcher
	IndexModel(ctx context.Context) (string, int, error)
}

// Retriever finds catalog fields relevant to a transcript
type Retriever struct {
	embedder  embed.Embedder
	index     Index
	guard     *guard.Guard // Wraps vector search; may be nil
	threshold float64
	topK      int
	log       *zap.Logger
}

// New creates a retriever. threshold and topK become the defaults for
// FindCandidates; negative values select the package defaults.
func New(embedder embed.Embedder, index Index, g *guard.Guard, threshold float64, topK int, log *zap.Logger) *Retriever {
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	if topK < 0 {
		topK = DefaultTopK
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{
		embedder:  embedder,
		index:     index,
		guard:     g,
		threshold: clamp(threshold),
		topK:      topK,
		log:       log,
	}
}

// FindCandidates returns up to topK fields whose similarity to text is at least
// threshold, most similar first. Negative arguments use the retriever defaults.
// A zero threshold admits every field and a zero topK returns nothing.
func (r *Retriever) FindCandidates(ctx context.Context, text string, threshold float64, topK int) ([]model.ExtractionCandidate, error) {
	if r.embedder == nil || r.index == nil {
		return nil, ErrDisabled
	}
	if threshold < 0 {
		threshold = r.threshold
	}
	threshold = clamp(threshold)
	if topK < 0 {
		topK = r.topK
	}
	if topK == 0 || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	indexModel, dims, err := r.index.IndexModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	if indexModel == "" {
		return nil, ErrNoIndex
	}
	if indexModel != r.embedder.Model() {
		return nil, fmt.Errorf("%w: index built with %s, query uses %s", ErrModelMismatch, indexModel, r.embedder.Model())
	}

	query, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding transcript: %w", err)
	}
	if len(query) != dims {
		return nil, fmt.Errorf("%w: index has %d dimensions, query has %d", ErrModelMismatch, dims, len(query))
	}

	var candidates []model.ExtractionCandidate
	search := func(ctx context.Context) error {
		c, err := r.index.SearchEmbeddings(ctx, query, threshold, topK)
		if err != nil {
			return err
		}
		candidates = c
		return nil
	}
	if r.guard != nil {
		err = r.guard.Do(ctx, search)
	} else {
		err = search(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	r.log.Debug("Retrieved candidates", zap.Int("count", len(candidates)), zap.Float64("threshold", threshold), zap.Int("top_k", topK))
	return candidates, nil
}

func clamp(threshold float64) float64 {
	if threshold < 0 {
		return 0
	}
	if threshold > 1 {
		return 1
	}
	return threshold
}
