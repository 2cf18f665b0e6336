// Package pipeline runs one transcript end to end: store the raw text, extract,
// validate, score, persist the values and mark the transcript processed.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/extract"
	"github.com/ppiankov/vitalscribe/internal/metrics"
	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/score"
	"github.com/ppiankov/vitalscribe/internal/store"
	"github.com/ppiankov/vitalscribe/internal/validate"
)

// ErrMissingAssessment is returned when a request names no assessment
var ErrMissingAssessment = errors.New("assessment id is required")

// Request is one transcript to process
type Request struct {
	AssessmentID string `json:"assessmentId"`
	Transcript   string `json:"transcript"`
	Source       string `json:"source,omitempty"`
}

// Extractor produces field extractions for a transcript
type Extractor interface {
	Run(ctx context.Context, transcript string) (*extract.Result, error)
}

// Validator validates a batch of extractions and applies cross-field rules
type Validator interface {
	ValidateAll(extractions []model.FieldExtraction) ([]model.ValidatedExtraction, []validate.Finding)
}

// Store receives raw transcripts and AI-filled values
type Store interface {
	InsertTranscript(ctx context.Context, t store.Transcript) (uuid.UUID, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	UpsertFieldValue(ctx context.Context, v store.FieldValue) error
}

// Pipeline orchestrates the complete extraction process
type Pipeline struct {
	extractor      Extractor
	validator      Validator
	scorer         *score.Scorer
	store          Store
	persistTimeout time.Duration
	log            *zap.Logger
}

// New creates a pipeline. st may be nil to skip persistence.
func New(extractor Extractor, validator Validator, st Store, persistTimeout time.Duration, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		extractor:      extractor,
		validator:      validator,
		scorer:         score.NewScorer(),
		store:          st,
		persistTimeout: persistTimeout,
		log:            log,
	}
}

// Process runs the pipeline for one transcript. Only missing input is an
// error; service and store failures degrade the report instead.
func (p *Pipeline) Process(ctx context.Context, req Request) (*model.Report, error) {
	if strings.TrimSpace(req.AssessmentID) == "" {
		return nil, ErrMissingAssessment
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, extract.ErrEmptyTranscript
	}

	start := time.Now()
	log := p.log.With(zap.String("assessment_id", req.AssessmentID))
	report := &model.Report{AssessmentID: req.AssessmentID}

	// 1. Store the raw transcript
	if p.store != nil {
		err := p.persist(ctx, func(ctx context.Context) error {
			id, err := p.store.InsertTranscript(ctx, store.Transcript{
				AssessmentID: req.AssessmentID,
				Text:         req.Transcript,
				Source:       req.Source,
			})
			report.TranscriptID = id
			return err
		})
		if err != nil {
			report.PersistError++
			log.Error("Failed to store transcript", zap.Error(err))
		}
	}

	// 2. Extract
	res, err := p.extractor.Run(ctx, req.Transcript)
	if err != nil {
		return nil, err
	}
	report.Strategy = res.Strategy
	report.Candidates = res.Candidates

	// 3. Validate, including the consistency pass
	validated, findings := p.validator.ValidateAll(res.Extractions)
	if validated == nil {
		validated = []model.ValidatedExtraction{}
	}
	report.Extractions = validated
	report.Summary = validate.Summarize(validated)

	// 4. Score
	report.Score = p.scorer.Calculate(score.Input{
		Extractions: validated,
		Fallback:    res.Fallback(),
		Conflicts:   validate.Conflicts(findings),
	})

	// 5. Persist values and mark the transcript processed
	if p.store != nil {
		for _, v := range validated {
			if err := p.persist(ctx, func(ctx context.Context) error {
				return p.store.UpsertFieldValue(ctx, fieldValue(req.AssessmentID, v))
			}); err != nil {
				report.PersistError++
				log.Error("Failed to persist field value",
					zap.String("field_id", string(v.FieldID)), zap.Error(err))
			}
		}

		if report.TranscriptID != uuid.Nil {
			if err := p.persist(ctx, func(ctx context.Context) error {
				return p.store.MarkProcessed(ctx, report.TranscriptID)
			}); err != nil {
				report.PersistError++
				log.Error("Failed to mark transcript processed",
					zap.String("transcript_id", report.TranscriptID.String()), zap.Error(err))
			}
		}
	}

	report.ProcessedAt = time.Now().UTC()
	elapsed := time.Since(start)

	metrics.ObserveExtraction(report.Strategy, report.Summary.ValidFields,
		report.Summary.TotalFields-report.Summary.ValidFields, elapsed)
	if report.PersistError > 0 {
		metrics.PersistFailures.Add(float64(report.PersistError))
	}

	log.Info("Transcript processed",
		zap.String("strategy", report.Strategy),
		zap.Int("fields", report.Summary.TotalFields),
		zap.Int("valid", report.Summary.ValidFields),
		zap.Int("quality", report.Score.Index),
		zap.Int("persist_errors", report.PersistError),
		zap.Duration("elapsed", elapsed))

	return report, nil
}

func (p *Pipeline) persist(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.persistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.persistTimeout)
		defer cancel()
	}
	return fn(ctx)
}

// fieldValue stores the normalized value when validation produced one
func fieldValue(assessmentID string, v model.ValidatedExtraction) store.FieldValue {
	value := v.Validation.NormalizedValue
	if value == "" {
		value = v.Value
	}
	return store.FieldValue{
		AssessmentID: assessmentID,
		FieldID:      v.FieldID,
		SectionID:    v.SectionID,
		FieldLabel:   v.FieldLabel,
		Value:        value,
		DataSource:   model.DataSourceAIFilled,
		AISourceText: v.AISourceText,
		Confidence:   v.ConfidenceScore,
	}
}
