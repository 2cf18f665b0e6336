package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/vitalscribe/internal/catalog"
	"github.com/ppiankov/vitalscribe/internal/model"
)

func patternValues(t *testing.T, transcript string) map[model.FieldID]model.FieldExtraction {
	t.Helper()
	out, err := NewPatternStrategy(catalog.MustDefault()).Extract(context.Background(), transcript)
	require.NoError(t, err)
	got := make(map[model.FieldID]model.FieldExtraction, len(out.Extractions))
	for _, e := range out.Extractions {
		got[e.FieldID] = e
	}
	return got
}

func TestPatternFallHistoryWithFrequency(t *testing.T) {
	got := patternValues(t, "I fell three times last week")

	fall, ok := got[catalog.MorseHistoryFalling]
	require.True(t, ok, "expected a fall history extraction")
	assert.Equal(t, "Yes (25 points)", fall.Value)
	assert.Equal(t, "morse_fall_scale", fall.SectionID)
	assert.InDelta(t, 0.7, fall.ConfidenceScore, 1e-9)
	assert.Contains(t, fall.AISourceText, "fell")

	freq, ok := got[catalog.FallFrequency]
	require.True(t, ok, "expected a fall frequency extraction")
	assert.Equal(t, "3", freq.Value)
}

func TestPatternFalls(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantFall  bool
		wantCount string
	}{
		{"denies falls", "Patient denies falls.", false, ""},
		{"no falls", "No falls in the past year", false, ""},
		{"never fallen", "She has never fallen at home", false, ""},
		{"hasn't fallen", "He hasn’t fallen since admission", false, ""},
		{"didn't fall", "I didn't fall, I just sat down", false, ""},
		{"fall risk only", "Fall risk assessment done, fall precautions in place", false, ""},
		{"at risk of falls", "She is at high risk of falls.", false, ""},
		{"risk of falling", "Reviewed risk of falling with family.", false, ""},
		{"at risk for falls", "Patient at risk for falls, bed alarm on", false, ""},
		{"hyphenated fall-risk", "Fall-risk band applied", false, ""},
		{"risk and a real fall", "At risk of falls; she fell twice last week", true, "2"},
		{"slipped once", "She slipped once in the bathroom", true, "1"},
		{"digits", "fell 2 times this month", true, "2"},
		{"count before noun", "history of two falls at home", true, "2"},
		{"no count", "He tripped over the rug", true, ""},
		{"cantonese fall with count", "佢上個月跌親兩次", true, "2"},
		{"cantonese fall", "婆婆喺廁所跌倒", true, ""},
		{"cantonese denial", "我冇跌過", false, ""},
		{"full width digits", "跌咗３次", true, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := patternValues(t, tt.text)

			fall, ok := got[catalog.MorseHistoryFalling]
			assert.Equal(t, tt.wantFall, ok)
			if ok {
				assert.Equal(t, "Yes (25 points)", fall.Value)
			}

			freq, ok := got[catalog.FallFrequency]
			if tt.wantCount == "" {
				assert.False(t, ok, "unexpected frequency %q", freq.Value)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantCount, freq.Value)
		})
	}
}

func TestPatternEndToEndTranscript(t *testing.T) {
	got := patternValues(t, "Patient's temp is 38.2, BP 130 over 85, pulse 76, denies falls.")

	assert.Equal(t, "38.2°C", got[catalog.Temperature].Value)
	assert.Equal(t, "130 mmHg", got[catalog.BPSystolic].Value)
	assert.Equal(t, "85 mmHg", got[catalog.BPDiastolic].Value)
	assert.Equal(t, "76 bpm", got[catalog.Pulse].Value)
	assert.NotContains(t, got, catalog.MorseHistoryFalling)
	assert.Len(t, got, 4)

	assert.InDelta(t, 0.8, got[catalog.Temperature].ConfidenceScore, 1e-9)
	assert.Equal(t, "bp 130 over 85", got[catalog.BPSystolic].AISourceText)
}

func TestPatternVitals(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field model.FieldID
		want  string
	}{
		{"temperature fahrenheit", "temperature 101.3 f this morning", catalog.Temperature, "38.5°C"},
		{"temperature degrees", "temp of 37 degrees", catalog.Temperature, "37°C"},
		{"cantonese temperature", "體溫37.5度", catalog.Temperature, "37.5°C"},
		{"bp slash", "blood pressure: 142/91", catalog.BPSystolic, "142 mmHg"},
		{"cantonese bp", "血壓 120/80", catalog.BPDiastolic, "80 mmHg"},
		{"heart rate", "heart rate is 88", catalog.Pulse, "88 bpm"},
		{"spo2", "sats 96% on room air", catalog.SpO2, "96%"},
		{"oxygen saturation without percent", "oxygen saturation 95 on 2 litres", catalog.SpO2, "95%"},
		{"respiratory rate", "respiratory rate 18", catalog.RespiratoryRate, "18/min"},
		{"pain out of ten", "pain is about 7 out of 10", catalog.PainScale, "7/10"},
		{"pain score", "pain score 4", catalog.PainScale, "4/10"},
		{"cantonese pain", "痛到8分", catalog.PainScale, "8/10"},
		{"last mention wins", "pulse 70 at rest, pulse 96 after walking", catalog.Pulse, "96 bpm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := patternValues(t, tt.text)
			e, ok := got[tt.field]
			require.True(t, ok, "no %s extraction in %v", tt.field, got)
			assert.Equal(t, tt.want, e.Value)
			assert.NotEmpty(t, e.AISourceText)
			assert.NotEmpty(t, e.FieldLabel)
		})
	}
}

func TestPatternNothingMatches(t *testing.T) {
	out, err := NewPatternStrategy(catalog.MustDefault()).Extract(context.Background(), "Good morning, how are you today?")
	require.NoError(t, err)
	assert.Empty(t, out.Extractions)
}

func TestPatternSatVerbIsNotSaturation(t *testing.T) {
	got := patternValues(t, "Patient sat 10 minutes in the chair, then sat up for lunch")
	assert.NotContains(t, got, catalog.SpO2)
}

func TestPatternEmptyTranscript(t *testing.T) {
	_, err := NewPatternStrategy(catalog.MustDefault()).Extract(context.Background(), "  \n ")
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}

func TestParseCount(t *testing.T) {
	tests := map[string]int{"3": 3, "three": 3, "twice": 2, "a couple of": 2, "兩": 2, "十": 10, "十二": 12, "三十": 30}
	for in, want := range tests {
		got, ok := parseCount(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := parseCount("many")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "bp 130/85", Normalize("  ＢＰ　１３０／８５ "))
	assert.Equal(t, "patient's temp", Normalize("Patient’s\tTemp"))
	assert.Equal(t, "", Normalize(" \n\t"))
}
