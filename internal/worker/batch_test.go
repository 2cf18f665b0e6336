package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/pipeline"
)

// MockProcessor implements Processor
type MockProcessor struct {
	ShouldError bool
}

func (m *MockProcessor) Process(ctx context.Context, req pipeline.Request) (*model.Report, error) {
	time.Sleep(5 * time.Millisecond) // Simulate work
	if m.ShouldError {
		return nil, errors.New("extraction error")
	}
	if req.AssessmentID == "" {
		return nil, pipeline.ErrMissingAssessment
	}
	return &model.Report{AssessmentID: req.AssessmentID}, nil
}

func TestBatchProcessor_Process(t *testing.T) {
	processor := NewBatchProcessor(&MockProcessor{}, 2, NewLimiter(0, 1))

	reqs := []pipeline.Request{
		{AssessmentID: "a1", Transcript: "pulse 76"},
		{AssessmentID: "a2", Transcript: "temp 38.2"},
		{AssessmentID: "a3", Transcript: "BP 130/85"},
	}

	results := processor.Process(context.Background(), reqs)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.AssessmentID, res.Error)
		}
		if res.Index != i || res.AssessmentID != reqs[i].AssessmentID {
			t.Errorf("result %d out of order: %+v", i, res)
		}
		if res.Report == nil {
			t.Error("expected report for successful extraction")
		}
	}
}

func TestBatchProcessor_Process_Error(t *testing.T) {
	processor := NewBatchProcessor(&MockProcessor{ShouldError: true}, 2, nil)

	results := processor.Process(context.Background(), []pipeline.Request{{AssessmentID: "a1", Transcript: "x"}})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].GetError() == nil {
		t.Error("expected error")
	}
}

func TestBatchProcessor_Process_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockProcessor{}, 2, nil)
	results := processor.Process(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadTranscripts(t *testing.T) {
	input := `# ward 7 morning round
{"assessmentId": "a1", "transcript": "pulse 76"}

{"assessmentId": "a2", "transcript": "denies falls", "source": "bed-12"}
`
	reqs, err := ReadTranscripts(strings.NewReader(input), "round.jsonl")
	if err != nil {
		t.Fatalf("ReadTranscripts failed: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	if reqs[0].Source != "round.jsonl:2" {
		t.Errorf("expected generated source round.jsonl:2, got %s", reqs[0].Source)
	}
	if reqs[1].Source != "bed-12" {
		t.Errorf("expected explicit source bed-12, got %s", reqs[1].Source)
	}
}

func TestReadTranscripts_Malformed(t *testing.T) {
	_, err := ReadTranscripts(strings.NewReader("{\"assessmentId\": \"a1\"}\nnot json\n"), "x")
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected error naming line 2, got %v", err)
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.jsonl")
	content := `{"assessmentId": "a1", "transcript": "pulse 76"}
{"assessmentId": "", "transcript": "temp 37"}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	processor := NewBatchProcessor(&MockProcessor{}, 2, nil)
	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Error != nil {
		t.Errorf("unexpected error: %v", results[0].Error)
	}
	if !errors.Is(results[1].Error, pipeline.ErrMissingAssessment) {
		t.Errorf("expected ErrMissingAssessment, got %v", results[1].Error)
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&MockProcessor{}, 2, nil)
	if _, err := processor.ProcessFile(context.Background(), "/nonexistent/batch.jsonl"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}
