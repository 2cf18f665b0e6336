// Package extract turns transcripts into field extractions: retrieval-augmented
// model extraction first, deterministic patterns when that path fails.
package extract

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/model"
)

// Strategy names
const (
	StrategyRAG     = "rag"
	StrategyPattern = "pattern"
	StrategyNone    = "none"
)

// ErrEmptyTranscript is returned for blank input
var ErrEmptyTranscript = errors.New("empty transcript")

// Outcome is what a strategy produced for one transcript
type Outcome struct {
	Extractions []model.FieldExtraction
	Candidates  []model.ExtractionCandidate
}

// Strategy is one way of extracting fields from a transcript
type Strategy interface {
	Name() string
	Extract(ctx context.Context, transcript string) (*Outcome, error)
}

// Failure records a strategy that was skipped
type Failure struct {
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

// Result is the chain's answer for one transcript
type Result struct {
	Strategy    string                      `json:"strategy"`
	Extractions []model.FieldExtraction     `json:"extractions"`
	Candidates  []model.ExtractionCandidate `json:"candidates,omitempty"`
	Failures    []Failure                   `json:"failures,omitempty"`
}

// Fallback reports whether the retrieval-augmented path did not produce the result
func (r *Result) Fallback() bool {
	return r.Strategy != StrategyRAG
}

// Chain tries strategies in order until one succeeds
type Chain struct {
	strategies []Strategy
	log        *zap.Logger
}

// NewChain creates a chain. Put the deterministic strategy last.
func NewChain(log *zap.Logger, strategies ...Strategy) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{strategies: strategies, log: log}
}

// Strategies returns the configured strategy names in order
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Run extracts fields. Only a blank transcript is an error; when every strategy
// fails the result is empty.
func (c *Chain) Run(ctx context.Context, transcript string) (*Result, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrEmptyTranscript
	}

	res := &Result{Strategy: StrategyNone}
	for i, s := range c.strategies {
		out, err := s.Extract(ctx, transcript)
		if err != nil {
			res.Failures = append(res.Failures, Failure{Strategy: s.Name(), Reason: err.Error()})
			c.log.Warn("Extraction strategy failed",
				zap.String("strategy", s.Name()), zap.Error(err))
			continue
		}

		if i > 0 {
			c.log.Info("Fallback strategy selected", zap.String("strategy", s.Name()))
		}
		res.Strategy = s.Name()
		res.Extractions = Dedupe(out.Extractions)
		res.Candidates = out.Candidates
		return res, nil
	}

	return res, nil
}

// Extract runs the chain and returns only the extractions
func (c *Chain) Extract(ctx context.Context, transcript string) ([]model.FieldExtraction, error) {
	res, err := c.Run(ctx, transcript)
	if err != nil {
		return nil, err
	}
	return res.Extractions, nil
}

// Dedupe keeps one extraction per field. A later mention replaces an earlier
// one in place.
func Dedupe(in []model.FieldExtraction) []model.FieldExtraction {
	if len(in) == 0 {
		return []model.FieldExtraction{}
	}
	pos := make(map[model.FieldID]int, len(in))
	out := make([]model.FieldExtraction, 0, len(in))
	for _, e := range in {
		if i, ok := pos[e.FieldID]; ok {
			out[i] = e
			continue
		}
		pos[e.FieldID] = len(out)
		out = append(out, e)
	}
	return out
}
