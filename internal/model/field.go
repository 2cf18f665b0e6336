package model

import "errors"

// ErrUnknownField is returned when a field id is not present in the catalog
var ErrUnknownField = errors.New("unknown field")

// FieldID identifies a catalog field (e.g., "bp_systolic")
type FieldID string

func (id FieldID) String() string {
	return string(id)
}

// FieldType classifies how a field is captured and validated
type FieldType string

const (
	FieldTypeText       FieldType = "text"
	FieldTypeNumber     FieldType = "number"
	FieldTypeSelect     FieldType = "select"
	FieldTypeRadio      FieldType = "radio"
	FieldTypeCheckbox   FieldType = "checkbox"
	FieldTypeTextarea   FieldType = "textarea"
	FieldTypeCalculated FieldType = "calculated"
)

// Valid reports whether t is one of the known field types
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeSelect, FieldTypeRadio,
		FieldTypeCheckbox, FieldTypeTextarea, FieldTypeCalculated:
		return true
	}
	return false
}

// HasOptions reports whether values of this type must match a catalog option
func (t FieldType) HasOptions() bool {
	return t == FieldTypeSelect || t == FieldTypeRadio
}

// ValidationRules holds catalog-level bounds and patterns for a field
type ValidationRules struct {
	Min     *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Pattern string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// FieldDefinition is an immutable catalog entry describing one extractable form field
type FieldDefinition struct {
	ID              FieldID         `yaml:"id" json:"fieldId"`
	SectionID       string          `yaml:"section" json:"sectionId"`
	Label           string          `yaml:"label" json:"label"`
	Type            FieldType       `yaml:"type" json:"type"`
	Synonyms        []string        `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Options         []string        `yaml:"options,omitempty" json:"options,omitempty"`
	Rules           ValidationRules `yaml:"rules,omitempty" json:"validationRules"`
	ExtractionHints []string        `yaml:"hints,omitempty" json:"extractionHints,omitempty"`
	Unit            string          `yaml:"unit,omitempty" json:"unit,omitempty"`
	ExpectedFormat  string          `yaml:"format,omitempty" json:"expectedFormat,omitempty"`
}

// FieldEmbedding is the persisted embedding of a field's medical-context document
type FieldEmbedding struct {
	FieldID    FieldID   `json:"fieldId"`
	Vector     []float32 `json:"embedding"`
	SourceText string    `json:"sourceText"`
	Model      string    `json:"model"`
}

// ExtractionCandidate is a catalog field judged relevant to a transcript by vector similarity
type ExtractionCandidate struct {
	FieldID    FieldID `json:"fieldId"`
	Similarity float64 `json:"similarity"`
}
