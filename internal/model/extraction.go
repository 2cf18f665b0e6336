package model

// DataSourceAIFilled marks field values produced by the extraction pipeline
const DataSourceAIFilled = "ai-filled"

// FieldExtraction is a single field value detected in a transcript
type FieldExtraction struct {
	FieldID         FieldID `json:"fieldId"`
	SectionID       string  `json:"sectionId"`
	FieldLabel      string  `json:"fieldLabel"`
	Value           string  `json:"value"`
	AISourceText    string  `json:"aiSourceText"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

// ValidationResult is the outcome of validating one extracted value
type ValidationResult struct {
	IsValid         bool     `json:"isValid"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	NormalizedValue string   `json:"normalizedValue"`
}

// AddError records a hard error and marks the result invalid
func (r *ValidationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.IsValid = false
}

// AddWarning records a soft warning; validity is unchanged
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// ValidatedExtraction pairs an extraction with its validation outcome
type ValidatedExtraction struct {
	FieldExtraction
	Validation ValidationResult `json:"validation"`
}

// ValidationSummary aggregates validation outcomes for one transcript
type ValidationSummary struct {
	TotalFields        int      `json:"totalFields"`
	ValidFields        int      `json:"validFields"`
	FieldsWithErrors   int      `json:"fieldsWithErrors"`
	FieldsWithWarnings int      `json:"fieldsWithWarnings"`
	CriticalErrors     []string `json:"criticalErrors"`
}
