package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/vitalscribe/internal/catalog"
	"github.com/ppiankov/vitalscribe/internal/model"
)

func fx(id model.FieldID, value string) model.FieldExtraction {
	return model.FieldExtraction{FieldID: id, SectionID: "vital_signs", Value: value, ConfidenceScore: 0.9}
}

func byID(items []model.ValidatedExtraction) map[model.FieldID]model.ValidatedExtraction {
	out := make(map[model.FieldID]model.ValidatedExtraction)
	for _, it := range items {
		out[it.FieldID] = it
	}
	return out
}

func TestConsistencySystolicNotAboveDiastolic(t *testing.T) {
	v := newValidator(t)

	items, findings := v.ValidateAll([]model.FieldExtraction{
		fx(catalog.BPSystolic, "80"),
		fx(catalog.BPDiastolic, "90"),
	})

	got := byID(items)
	assert.False(t, got[catalog.BPSystolic].Validation.IsValid)
	assert.False(t, got[catalog.BPDiastolic].Validation.IsValid)
	require.Len(t, findings, 1)
	assert.Equal(t, "bp_order", findings[0].Rule)
	assert.Equal(t, 1, Conflicts(findings))
}

func TestConsistencyEqualPressuresFail(t *testing.T) {
	items, _ := newValidator(t).ValidateAll([]model.FieldExtraction{
		fx(catalog.BPSystolic, "90"),
		fx(catalog.BPDiastolic, "90"),
	})
	for _, it := range items {
		assert.False(t, it.Validation.IsValid)
	}
}

func TestConsistencyFeverWithSlowPulseWarns(t *testing.T) {
	items, findings := newValidator(t).ValidateAll([]model.FieldExtraction{
		fx(catalog.Temperature, "39"),
		fx(catalog.Pulse, "55"),
	})

	got := byID(items)
	assert.True(t, got[catalog.Temperature].Validation.IsValid)
	assert.True(t, got[catalog.Pulse].Validation.IsValid)
	assert.True(t, hasMessage(got[catalog.Temperature].Validation.Warnings, "atypical"))
	assert.True(t, hasMessage(got[catalog.Pulse].Validation.Warnings, "atypical"))
	require.Len(t, findings, 1)
	assert.Zero(t, Conflicts(findings))
}

func TestConsistencySkipsIncompletePairs(t *testing.T) {
	items, findings := newValidator(t).ValidateAll([]model.FieldExtraction{
		fx(catalog.BPSystolic, "80"),
		fx(catalog.Temperature, "39.5"),
	})

	assert.Empty(t, findings)
	for _, it := range items {
		assert.True(t, it.Validation.IsValid)
	}
}

func TestConsistencyValidPair(t *testing.T) {
	items, findings := newValidator(t).ValidateAll([]model.FieldExtraction{
		fx(catalog.Temperature, "38.2"),
		fx(catalog.BPSystolic, "130"),
		fx(catalog.BPDiastolic, "85"),
		fx(catalog.Pulse, "76"),
	})

	assert.Empty(t, findings)
	got := byID(items)
	assert.Equal(t, "38.2°C", got[catalog.Temperature].Validation.NormalizedValue)
	assert.Empty(t, got[catalog.Temperature].Validation.Warnings)
	assert.Equal(t, "130 mmHg", got[catalog.BPSystolic].Validation.NormalizedValue)
	assert.Equal(t, "85 mmHg", got[catalog.BPDiastolic].Validation.NormalizedValue)
	assert.Equal(t, "76 bpm", got[catalog.Pulse].Validation.NormalizedValue)
}

func TestNewCheckerRejectsUnknownIdentifiers(t *testing.T) {
	_, err := NewChecker([]Rule{{
		Name:   "broken",
		When:   "weight > height",
		Fields: []model.FieldID{catalog.Weight},
	}})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	items, _ := newValidator(t).ValidateAll([]model.FieldExtraction{
		fx(catalog.PainScale, "13"),
		fx(catalog.Temperature, "39.5"),
		fx(catalog.MorseAmbulatoryAid, "wheelchair"),
		fx(catalog.Pulse, "76"),
	})

	s := Summarize(items)
	assert.Equal(t, 4, s.TotalFields)
	assert.Equal(t, 2, s.ValidFields)
	assert.Equal(t, 2, s.FieldsWithErrors)
	assert.Equal(t, 1, s.FieldsWithWarnings)
	// The ambulatory aid error is not a vital sign
	require.Len(t, s.CriticalErrors, 1)
	assert.Contains(t, s.CriticalErrors[0], "pain_scale")
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.TotalFields)
	assert.NotNil(t, s.CriticalErrors)
}
