package score

import (
	"math"
	"testing"

	"github.com/ppiankov/vitalscribe/internal/model"
)

func extraction(id string, confidence float64, valid bool) model.ValidatedExtraction {
	return model.ValidatedExtraction{
		FieldExtraction: model.FieldExtraction{FieldID: model.FieldID(id), ConfidenceScore: confidence},
		Validation:      model.ValidationResult{IsValid: valid},
	}
}

func findSignal(signals []model.Signal, typ model.SignalType) (model.Signal, bool) {
	for _, s := range signals {
		if s.Type == typ {
			return s, true
		}
	}
	return model.Signal{}, false
}

func TestRescale(t *testing.T) {
	tests := []struct {
		name                   string
		confidence, similarity float64
		want                   float64
	}{
		{"product", 0.9, 0.8, 0.72},
		{"capped", 1, 1, 0.95},
		{"zero similarity", 0.9, 0, 0},
		{"confidence above one", 1.5, 0.5, 0.5},
		{"negative", -0.2, 0.9, 0},
		{"nan", math.NaN(), 0.9, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rescale(tt.confidence, tt.similarity)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Rescale(%v, %v) = %v, want %v", tt.confidence, tt.similarity, got, tt.want)
			}
		})
	}
}

func TestScorer_Calculate_Empty(t *testing.T) {
	result := NewScorer().Calculate(Input{Fallback: true})

	if result.Index != 0 {
		t.Errorf("Expected index 0, got %d", result.Index)
	}
	if result.Confidence != "low" {
		t.Errorf("Expected low confidence, got %s", result.Confidence)
	}
	if _, ok := findSignal(result.Signals, model.SignalEmptyResult); !ok {
		t.Error("Expected empty_result signal")
	}
	if _, ok := findSignal(result.Signals, model.SignalFallback); !ok {
		t.Error("Expected fallback signal")
	}
}

func TestScorer_Calculate_HighQuality(t *testing.T) {
	in := Input{Extractions: []model.ValidatedExtraction{
		extraction("temperature", 0.9, true),
		extraction("pulse", 0.9, true),
		extraction("bp_systolic", 0.9, true),
		extraction("bp_diastolic", 0.9, true),
		extraction("respiratory_rate", 0.9, true),
		extraction("spo2", 0.9, true),
		extraction("pain_scale", 0.9, true),
	}}

	result := NewScorer().Calculate(in)

	// 40 validation + 27 confidence + 20 coverage + 10 strategy
	if result.Index != 97 {
		t.Errorf("Expected index 97, got %d", result.Index)
	}
	if result.Confidence != "high" {
		t.Errorf("Expected high confidence, got %s", result.Confidence)
	}
	if result.Conflict {
		t.Error("Expected no conflict")
	}
	if _, ok := findSignal(result.Signals, model.SignalFallback); ok {
		t.Error("Did not expect fallback signal")
	}
}

func TestScorer_Calculate_FallbackAndConflict(t *testing.T) {
	in := Input{
		Extractions: []model.ValidatedExtraction{
			extraction("bp_systolic", 0.8, false),
			extraction("bp_diastolic", 0.8, false),
		},
		Fallback:  true,
		Conflicts: 1,
	}

	result := NewScorer().Calculate(in)

	if !result.Conflict {
		t.Error("Expected conflict")
	}
	if result.Confidence != "low" {
		t.Errorf("Expected low confidence under conflict, got %s", result.Confidence)
	}

	// 0 validation + 24 confidence + 5 coverage + 5 strategy - 10 penalty
	if result.Index != 24 {
		t.Errorf("Expected index 24, got %d", result.Index)
	}

	sig, ok := findSignal(result.Signals, model.SignalValidation)
	if !ok || sig.Severity != model.SeverityCritical {
		t.Errorf("Expected critical validation signal, got %+v", sig)
	}
	if _, ok := findSignal(result.Signals, model.SignalConsistency); !ok {
		t.Error("Expected consistency signal")
	}
}

func TestScorer_Calculate_LowConfidenceFields(t *testing.T) {
	in := Input{Extractions: []model.ValidatedExtraction{
		extraction("temperature", 0.3, true),
		extraction("pulse", 0.9, true),
	}}

	result := NewScorer().Calculate(in)

	sig, ok := findSignal(result.Signals, model.SignalLowConfidence)
	if !ok {
		t.Fatal("Expected low_confidence signal")
	}
	if sig.Severity != model.SeverityWarning {
		t.Errorf("Expected warning severity, got %s", sig.Severity)
	}
	low, _ := sig.Data["low_fields"].([]string)
	if len(low) != 1 || low[0] != "temperature" {
		t.Errorf("Expected temperature flagged, got %v", low)
	}
}
