package extract

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/llm"
	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/score"
)

// ErrNoCandidates is returned when retrieval finds no relevant field
var ErrNoCandidates = errors.New("no candidate fields retrieved")

// Retriever finds candidate fields for a transcript
type Retriever interface {
	FindCandidates(ctx context.Context, text string, threshold float64, topK int) ([]model.ExtractionCandidate, error)
}

// Catalog resolves field definitions
type Catalog interface {
	Lookup(id model.FieldID) (model.FieldDefinition, bool)
}

// RAGStrategy retrieves candidate fields, prompts a model with them and keeps
// the extractions that name a known field.
type RAGStrategy struct {
	retriever Retriever
	provider  llm.Provider
	catalog   Catalog
	log       *zap.Logger

	threshold float64
	topK      int
	maxTokens int
}

// NewRAGStrategy creates the retrieval-augmented strategy. Until WithRetrieval
// is called the retriever's own threshold and topK apply.
func NewRAGStrategy(retriever Retriever, provider llm.Provider, cat Catalog, log *zap.Logger) *RAGStrategy {
	if log == nil {
		log = zap.NewNop()
	}
	return &RAGStrategy{retriever: retriever, provider: provider, catalog: cat, log: log, threshold: -1, topK: -1}
}

// WithRetrieval overrides the similarity threshold and candidate count.
// Negative values keep the retriever defaults.
func (s *RAGStrategy) WithRetrieval(threshold float64, topK int) *RAGStrategy {
	s.threshold = threshold
	s.topK = topK
	return s
}

// WithMaxTokens bounds the completion length
func (s *RAGStrategy) WithMaxTokens(n int) *RAGStrategy {
	s.maxTokens = n
	return s
}

// Name returns "rag"
func (s *RAGStrategy) Name() string {
	return StrategyRAG
}

// Extract runs retrieve, prompt, complete, parse and filter in order
func (s *RAGStrategy) Extract(ctx context.Context, transcript string) (*Outcome, error) {
	candidates, err := s.retriever.FindCandidates(ctx, transcript, s.threshold, s.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	system, user := BuildPrompt(transcript, candidates, s.catalog)
	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		System:    system,
		User:      user,
		JSON:      true,
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	raw, sh, err := parseResponse(resp.Text)
	if err != nil {
		return nil, err
	}
	s.log.Debug("Parsed model response",
		zap.String("shape", sh.String()), zap.Int("items", len(raw)), zap.Int("candidates", len(candidates)))

	return &Outcome{
		Extractions: s.filter(raw, candidates),
		Candidates:  candidates,
	}, nil
}

// filter drops incomplete and unknown extractions and rescales confidence
// for fields that were retrieved as candidates.
func (s *RAGStrategy) filter(raw []rawExtraction, candidates []model.ExtractionCandidate) []model.FieldExtraction {
	similarity := make(map[model.FieldID]float64, len(candidates))
	for _, c := range candidates {
		similarity[c.FieldID] = c.Similarity
	}

	out := make([]model.FieldExtraction, 0, len(raw))
	for _, r := range raw {
		if r.FieldID == "" || r.SectionID == "" || r.Value == "" {
			s.log.Debug("Dropping incomplete extraction", zap.String("field_id", r.FieldID))
			continue
		}

		id := model.FieldID(r.FieldID)
		def, ok := s.catalog.Lookup(id)
		if !ok {
			s.log.Warn("Dropping extraction for unknown field", zap.String("field_id", r.FieldID))
			continue
		}

		confidence := score.Clamp(r.ConfidenceScore)
		if !r.hasConfidence {
			confidence = 0.5
		}
		if sim, ok := similarity[id]; ok {
			confidence = score.Rescale(confidence, sim)
		}

		label := r.FieldLabel
		if label == "" {
			label = def.Label
		}

		out = append(out, model.FieldExtraction{
			FieldID:         id,
			SectionID:       def.SectionID,
			FieldLabel:      label,
			Value:           r.Value,
			AISourceText:    r.AISourceText,
			ConfidenceScore: confidence,
		})
	}
	return out
}
