package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/pipeline"
)

// Processor runs the extraction pipeline for one transcript
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*model.Report, error)
}

// TranscriptJob represents one transcript extraction
type TranscriptJob struct {
	Index     int
	Request   pipeline.Request
	Processor Processor
	Limiter   *Limiter
}

// Execute executes the extraction job
func (j *TranscriptJob) Execute(ctx context.Context) Result {
	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, KeyCompletion); err != nil {
			return &TranscriptResult{Index: j.Index, AssessmentID: j.Request.AssessmentID, Error: err}
		}
	}

	report, err := j.Processor.Process(ctx, j.Request)
	return &TranscriptResult{
		Index:        j.Index,
		AssessmentID: j.Request.AssessmentID,
		Report:       report,
		Error:        err,
	}
}

// TranscriptResult represents the result of a transcript job
type TranscriptResult struct {
	Index        int
	AssessmentID string
	Report       *model.Report
	Error        error
}

// GetError returns the error from the extraction result
func (r *TranscriptResult) GetError() error {
	return r.Error
}

// BatchProcessor processes multiple transcripts concurrently. Every transcript
// runs its own independent pipeline instance.
type BatchProcessor struct {
	processor   Processor
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a new batch processor. limiter may be nil.
func NewBatchProcessor(processor Processor, concurrency int, limiter *Limiter) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
		limiter:     limiter,
	}
}

// Process runs all requests and returns results in input order
func (b *BatchProcessor) Process(ctx context.Context, reqs []pipeline.Request) []*TranscriptResult {
	if len(reqs) == 0 {
		return []*TranscriptResult{}
	}

	jobs := make([]Job, len(reqs))
	for i, req := range reqs {
		jobs[i] = &TranscriptJob{Index: i, Request: req, Processor: b.processor, Limiter: b.limiter}
	}

	results := Run(ctx, b.concurrency, jobs)

	out := make([]*TranscriptResult, 0, len(results))
	for _, r := range results {
		out = append(out, r.(*TranscriptResult))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ProcessFile reads a JSON-lines transcript file and processes it
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*TranscriptResult, error) {
	reqs, err := ReadTranscriptsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read transcripts: %w", err)
	}

	return b.Process(ctx, reqs), nil
}

type batchLine struct {
	AssessmentID string `json:"assessmentId"`
	Transcript   string `json:"transcript"`
	Source       string `json:"source"`
}

// ReadTranscriptsFromFile reads requests from a JSON-lines file
// ({"assessmentId": ..., "transcript": ...} per line)
func ReadTranscriptsFromFile(filePath string) ([]pipeline.Request, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadTranscripts(file, filePath)
}

// ReadTranscripts parses JSON-lines requests from r. Blank lines and # comments are skipped.
func ReadTranscripts(r io.Reader, source string) ([]pipeline.Request, error) {
	var reqs []pipeline.Request

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var bl batchLine
		if err := json.Unmarshal([]byte(line), &bl); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		src := bl.Source
		if src == "" {
			src = fmt.Sprintf("%s:%d", source, lineNo)
		}
		reqs = append(reqs, pipeline.Request{
			AssessmentID: bl.AssessmentID,
			Transcript:   bl.Transcript,
			Source:       src,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return reqs, nil
}
