package extract

import (
	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/llm"
)

// Options configures the default strategy chain
type Options struct {
	Retriever Retriever
	Provider  llm.Provider
	Catalog   Catalog

	// Passed to every FindCandidates call; negative keeps the retriever defaults
	Threshold float64
	TopK      int
	MaxTokens int
}

// New builds the extraction chain. The retrieval-augmented strategy is used
// only when both a retriever and a provider are configured; the pattern
// strategy always runs last.
func New(opts Options, log *zap.Logger) *Chain {
	if log == nil {
		log = zap.NewNop()
	}

	var strategies []Strategy
	if opts.Retriever != nil && opts.Provider != nil {
		rag := NewRAGStrategy(opts.Retriever, opts.Provider, opts.Catalog, log).
			WithRetrieval(opts.Threshold, opts.TopK).
			WithMaxTokens(opts.MaxTokens)
		strategies = append(strategies, rag)
	} else {
		log.Info("Model extraction disabled, using pattern strategy only")
	}
	strategies = append(strategies, NewPatternStrategy(opts.Catalog))

	return NewChain(log, strategies...)
}
