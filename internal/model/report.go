package model

import (
	"time"

	"github.com/google/uuid"
)

// Report is the complete outcome of processing one transcript
type Report struct {
	TranscriptID uuid.UUID             `json:"transcriptId"`
	AssessmentID string                `json:"assessmentId"`
	ProcessedAt  time.Time             `json:"processedAt"`
	Strategy     string                `json:"strategy"`              // Which extraction strategy produced the fields (rag, pattern)
	Candidates   []ExtractionCandidate `json:"candidates,omitempty"` // Retrieved fields (RAG path only)
	Extractions  []ValidatedExtraction `json:"extractions"`
	Summary      ValidationSummary     `json:"summary"`
	Score        QualityScore          `json:"score"`
	PersistError int                   `json:"persistErrors,omitempty"` // Field writes that failed (logged, not fatal)
}

// Empty reports whether no fields were extracted
func (r *Report) Empty() bool {
	return len(r.Extractions) == 0
}

// QualityScore is a transparent quality breakdown of an extraction run
type QualityScore struct {
	Index      int      `json:"index"`      // 0-100
	Confidence string   `json:"confidence"` // "low", "medium", "high"
	Conflict   bool     `json:"conflict"`   // Whether a cross-field consistency rule fired as an error
	Signals    []Signal `json:"signals"`
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalVitalCoverage SignalType = "vital_coverage" // Share of vital signs captured
	SignalLowConfidence SignalType = "low_confidence" // Extractions below the confidence floor
	SignalValidation    SignalType = "validation"     // Fields failing validation
	SignalFallback      SignalType = "fallback"       // Pattern strategy used instead of retrieval
	SignalConsistency   SignalType = "consistency"    // Cross-field rule violations
	SignalEmptyResult   SignalType = "empty_result"   // Nothing extracted
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
