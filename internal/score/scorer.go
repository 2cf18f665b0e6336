// Package score rescales extraction confidence and grades extraction runs.
package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/vitalscribe/internal/catalog"
	"github.com/ppiankov/vitalscribe/internal/model"
)

// LowConfidence is the floor below which an extraction is flagged
const LowConfidence = 0.5

// Input is everything the scorer looks at for one transcript
type Input struct {
	Extractions []model.ValidatedExtraction
	Fallback    bool // Pattern strategy produced the extractions
	Conflicts   int  // Consistency rules that fired as errors
}

// Scorer calculates the quality index and generates signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate grades an extraction run and explains the grade with signals
func (s *Scorer) Calculate(in Input) model.QualityScore {
	if len(in.Extractions) == 0 {
		signals := []model.Signal{{
			Type:        model.SignalEmptyResult,
			Severity:    model.SeverityWarning,
			Description: "No data extracted yet",
		}}
		if in.Fallback {
			signals = append(signals, s.fallbackSignal())
		}
		return model.QualityScore{Index: 0, Confidence: "low", Signals: signals}
	}

	var signals []model.Signal

	// 1. Validation (0-40 points)
	validationScore, validationSignal := s.calculateValidation(in.Extractions)
	signals = append(signals, validationSignal)

	// 2. Confidence (0-30 points)
	confidenceScore, confidenceSignal := s.calculateConfidence(in.Extractions)
	signals = append(signals, confidenceSignal)

	// 3. Vital-sign coverage (0-20 points)
	coverageScore, coverageSignal := s.calculateCoverage(in.Extractions)
	signals = append(signals, coverageSignal)

	// 4. Strategy (0-10 points)
	strategyScore := 10
	if in.Fallback {
		strategyScore = 5
		signals = append(signals, s.fallbackSignal())
	}

	total := validationScore + confidenceScore + coverageScore + strategyScore

	// 5. Consistency (penalty)
	conflict := in.Conflicts > 0
	if conflict {
		total -= 10 * in.Conflicts
		if total < 0 {
			total = 0
		}
		signals = append(signals, model.Signal{
			Type:        model.SignalConsistency,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("%d cross-field consistency rule(s) failed", in.Conflicts),
			Data: map[string]interface{}{
				"conflicts": in.Conflicts,
				"penalty":   10 * in.Conflicts,
			},
		})
	}

	return model.QualityScore{
		Index:      total,
		Confidence: s.determineConfidence(total, len(in.Extractions), conflict),
		Conflict:   conflict,
		Signals:    signals,
	}
}

// calculateValidation scores the share of valid extractions (0-40 points)
func (s *Scorer) calculateValidation(extractions []model.ValidatedExtraction) (int, model.Signal) {
	valid, warned := 0, 0
	for _, e := range extractions {
		if e.Validation.IsValid {
			valid++
		}
		if len(e.Validation.Warnings) > 0 {
			warned++
		}
	}

	ratio := float64(valid) / float64(len(extractions))
	score := int(math.Round(ratio * 40))

	severity := model.SeverityInfo
	if ratio < 0.5 {
		severity = model.SeverityCritical
	} else if ratio < 1 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalValidation,
		Severity:    severity,
		Description: fmt.Sprintf("Valid fields: %d/%d (%d with warnings)", valid, len(extractions), warned),
		Data: map[string]interface{}{
			"valid":    valid,
			"warnings": warned,
			"total":    len(extractions),
			"score":    score,
			"formula":  "(valid / total) * 40",
		},
	}
}

// calculateConfidence scores the mean confidence (0-30 points)
func (s *Scorer) calculateConfidence(extractions []model.ValidatedExtraction) (int, model.Signal) {
	var sum float64
	var low []string
	for _, e := range extractions {
		c := Clamp(e.ConfidenceScore)
		sum += c
		if c < LowConfidence {
			low = append(low, string(e.FieldID))
		}
	}

	mean := sum / float64(len(extractions))
	score := int(math.Round(mean * 30))

	severity := model.SeverityInfo
	if len(low)*2 > len(extractions) {
		severity = model.SeverityCritical
	} else if len(low) > 0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalLowConfidence,
		Severity:    severity,
		Description: fmt.Sprintf("Mean confidence %.2f, %d field(s) below %.1f", mean, len(low), LowConfidence),
		Data: map[string]interface{}{
			"mean":       mean,
			"low_fields": low,
			"score":      score,
			"formula":    "mean(confidence) * 30",
		},
	}
}

// calculateCoverage scores how many vital signs were captured (0-20 points)
func (s *Scorer) calculateCoverage(extractions []model.ValidatedExtraction) (int, model.Signal) {
	seen := make(map[model.FieldID]bool)
	for _, e := range extractions {
		if catalog.IsCritical(e.FieldID) {
			seen[e.FieldID] = true
		}
	}

	total := len(catalog.CriticalFields)
	score := len(seen) * 20 / total

	var missing []string
	for _, id := range catalog.CriticalFields {
		if !seen[id] {
			missing = append(missing, string(id))
		}
	}

	// Most transcripts cover only part of the form; missing vitals are informational
	return score, model.Signal{
		Type:        model.SignalVitalCoverage,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("Vital signs captured: %d/%d", len(seen), total),
		Data: map[string]interface{}{
			"captured": len(seen),
			"total":    total,
			"missing":  missing,
			"score":    score,
			"formula":  "captured / total * 20",
		},
	}
}

func (s *Scorer) fallbackSignal() model.Signal {
	return model.Signal{
		Type:        model.SignalFallback,
		Severity:    model.SeverityWarning,
		Description: "Retrieval or model unavailable; pattern extraction used",
	}
}

// determineConfidence determines the confidence level based on the score
func (s *Scorer) determineConfidence(score int, extractionCount int, conflict bool) string {
	if conflict || extractionCount < 2 {
		return "low"
	}

	if score >= 75 {
		return "high"
	} else if score >= 50 {
		return "medium"
	}
	return "low"
}
