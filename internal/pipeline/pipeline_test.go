package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/vitalscribe/internal/catalog"
	"github.com/ppiankov/vitalscribe/internal/extract"
	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/store"
	"github.com/ppiankov/vitalscribe/internal/validate"
)

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open(store.Config{Driver: "sqlite", DSN: ":memory:", Retention: time.Hour})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newPipeline(st Store) *Pipeline {
	cat := catalog.MustDefault()
	chain := extract.New(extract.Options{Catalog: cat}, nil)
	return New(chain, validate.New(cat, nil), st, time.Second, nil)
}

func byField(items []model.ValidatedExtraction) map[model.FieldID]model.ValidatedExtraction {
	out := make(map[model.FieldID]model.ValidatedExtraction, len(items))
	for _, it := range items {
		out[it.FieldID] = it
	}
	return out
}

func TestProcessEndToEnd(t *testing.T) {
	st := newStore(t)
	p := newPipeline(st)
	ctx := context.Background()

	report, err := p.Process(ctx, Request{
		AssessmentID: "assess-1",
		Transcript:   "Patient's temp is 38.2, BP 130 over 85, pulse 76, denies falls.",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if report.Strategy != extract.StrategyPattern {
		t.Errorf("Strategy = %q, want %q", report.Strategy, extract.StrategyPattern)
	}
	if report.TranscriptID == uuid.Nil {
		t.Error("expected a transcript ID")
	}
	if report.PersistError != 0 {
		t.Errorf("PersistError = %d, want 0", report.PersistError)
	}

	got := byField(report.Extractions)
	if len(got) != 4 {
		t.Fatalf("got %d extractions, want 4: %v", len(got), got)
	}
	if _, ok := got[catalog.MorseHistoryFalling]; ok {
		t.Error("a denied fall must not be extracted")
	}

	temp := got[catalog.Temperature]
	if temp.Validation.NormalizedValue != "38.2°C" {
		t.Errorf("temperature = %q, want 38.2°C", temp.Validation.NormalizedValue)
	}
	if !temp.Validation.IsValid || len(temp.Validation.Warnings) != 0 {
		t.Errorf("temperature validation = %+v, want valid without warnings", temp.Validation)
	}

	want := map[model.FieldID]string{
		catalog.BPSystolic:  "130 mmHg",
		catalog.BPDiastolic: "85 mmHg",
		catalog.Pulse:       "76 bpm",
	}
	for id, value := range want {
		v := got[id].Validation
		if !v.IsValid {
			t.Errorf("%s should be valid: %+v", id, v)
		}
		if v.NormalizedValue != value {
			t.Errorf("%s = %q, want %q", id, v.NormalizedValue, value)
		}
	}

	if report.Summary.TotalFields != 4 || report.Summary.ValidFields != 4 {
		t.Errorf("summary = %+v, want 4 total and 4 valid", report.Summary)
	}
	if len(report.Summary.CriticalErrors) != 0 {
		t.Errorf("CriticalErrors = %v, want none", report.Summary.CriticalErrors)
	}

	values, err := st.ListFieldValues(ctx, "assess-1")
	if err != nil {
		t.Fatalf("ListFieldValues() error = %v", err)
	}
	if len(values) != 4 {
		t.Fatalf("stored %d values, want 4", len(values))
	}
	for _, v := range values {
		if v.DataSource != model.DataSourceAIFilled {
			t.Errorf("%s DataSource = %q, want %q", v.FieldID, v.DataSource, model.DataSourceAIFilled)
		}
	}

	tr, err := st.GetTranscript(ctx, report.TranscriptID)
	if err != nil {
		t.Fatalf("GetTranscript() error = %v", err)
	}
	if !tr.Processed {
		t.Error("transcript should be marked processed")
	}
}

func TestProcessFallHistory(t *testing.T) {
	report, err := newPipeline(newStore(t)).Process(context.Background(), Request{
		AssessmentID: "assess-2",
		Transcript:   "I fell three times last week",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	got := byField(report.Extractions)
	history := got[catalog.MorseHistoryFalling].Validation
	if history.NormalizedValue != "Yes (25 points)" || !history.IsValid {
		t.Errorf("history of falling = %+v, want valid Yes (25 points)", history)
	}
	if v := got[catalog.FallFrequency].Validation.NormalizedValue; v != "3" {
		t.Errorf("fall frequency = %q, want 3", v)
	}
}

func TestProcessInconsistentPressures(t *testing.T) {
	report, err := newPipeline(nil).Process(context.Background(), Request{
		AssessmentID: "assess-3",
		Transcript:   "BP 80/90",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	got := byField(report.Extractions)
	if got[catalog.BPSystolic].Validation.IsValid || got[catalog.BPDiastolic].Validation.IsValid {
		t.Error("systolic below diastolic should invalidate both pressures")
	}
	if !report.Score.Conflict {
		t.Error("score should flag the conflict")
	}
	if len(report.Summary.CriticalErrors) != 2 {
		t.Errorf("CriticalErrors = %v, want 2", report.Summary.CriticalErrors)
	}
}

func TestProcessNothingExtracted(t *testing.T) {
	report, err := newPipeline(nil).Process(context.Background(), Request{
		AssessmentID: "assess-4",
		Transcript:   "Good morning, how are you?",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !report.Empty() {
		t.Errorf("expected empty report, got %d extractions", len(report.Extractions))
	}
	if report.Extractions == nil {
		t.Error("Extractions should be an empty slice, not nil")
	}
	if report.Score.Index != 0 {
		t.Errorf("Score.Index = %d, want 0", report.Score.Index)
	}

	var buf bytes.Buffer
	if err := NewRenderer().WriteMarkdown(&buf, report); err != nil {
		t.Fatalf("WriteMarkdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), EmptyMessage) {
		t.Errorf("markdown missing %q:\n%s", EmptyMessage, buf.String())
	}
}

func TestProcessPreconditions(t *testing.T) {
	p := newPipeline(nil)

	_, err := p.Process(context.Background(), Request{Transcript: "pulse 76"})
	if !errors.Is(err, ErrMissingAssessment) {
		t.Errorf("error = %v, want ErrMissingAssessment", err)
	}

	_, err = p.Process(context.Background(), Request{AssessmentID: "a", Transcript: " "})
	if !errors.Is(err, extract.ErrEmptyTranscript) {
		t.Errorf("error = %v, want ErrEmptyTranscript", err)
	}
}

type failingStore struct {
	Store
	upserts int
}

func (f *failingStore) UpsertFieldValue(ctx context.Context, v store.FieldValue) error {
	f.upserts++
	return errors.New("disk full")
}

func TestProcessPersistFailureIsNotFatal(t *testing.T) {
	st := &failingStore{Store: newStore(t)}

	report, err := newPipeline(st).Process(context.Background(), Request{
		AssessmentID: "assess-5",
		Transcript:   "pulse 76, temp 37",
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(report.Extractions) != 2 {
		t.Errorf("got %d extractions, want 2", len(report.Extractions))
	}
	if st.upserts != 2 || report.PersistError != 2 {
		t.Errorf("upserts = %d, PersistError = %d, want 2 and 2", st.upserts, report.PersistError)
	}
}
