// Package validate checks and normalizes extracted field values against the catalog.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/model"
)

// LowConfidence is the confidence below which a value is flagged for review
const LowConfidence = 0.5

// MaxTextLength is the longest free-text value accepted without a warning
const MaxTextLength = 1000

// Catalog is the part of the field catalog the validator needs
type Catalog interface {
	Lookup(id model.FieldID) (model.FieldDefinition, bool)
}

// Validator validates single values and batches of extractions
type Validator struct {
	catalog  Catalog
	checker  *Checker
	log      *zap.Logger
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// New creates a validator with the default consistency rules
func New(cat Catalog, log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{
		catalog:  cat,
		checker:  MustDefaultChecker(),
		log:      log,
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Validate checks one raw value. confidence may be nil.
func (v *Validator) Validate(fieldID model.FieldID, raw string, confidence *float64) model.ValidationResult {
	res := model.ValidationResult{
		IsValid:         true,
		Errors:          []string{},
		Warnings:        []string{},
		NormalizedValue: raw,
	}

	def, ok := v.catalog.Lookup(fieldID)
	if !ok {
		res.AddError(fmt.Sprintf("%s: %s", model.ErrUnknownField, fieldID))
		return res
	}

	switch def.Type {
	case model.FieldTypeNumber:
		validateNumber(def, raw, &res)
	case model.FieldTypeSelect, model.FieldTypeRadio:
		validateOption(def, raw, &res)
	case model.FieldTypeText, model.FieldTypeTextarea:
		v.validateText(def, raw, &res)
	default:
		res.NormalizedValue = strings.TrimSpace(raw)
		if res.NormalizedValue == "" {
			res.AddWarning(fmt.Sprintf("%s is empty", def.Label))
		}
	}

	if confidence != nil && *confidence < LowConfidence {
		res.AddWarning(fmt.Sprintf("Low confidence (%.2f); please verify %s", *confidence, def.Label))
	}

	return res
}

// ValidateAll validates every extraction, then runs the consistency rules over the batch.
// The returned findings are the rules that fired.
func (v *Validator) ValidateAll(extractions []model.FieldExtraction) ([]model.ValidatedExtraction, []Finding) {
	out := make([]model.ValidatedExtraction, 0, len(extractions))
	for _, e := range extractions {
		conf := e.ConfidenceScore
		res := v.Validate(e.FieldID, e.Value, &conf)
		if !res.IsValid {
			v.log.Debug("Field failed validation",
				zap.String("field_id", string(e.FieldID)), zap.Strings("errors", res.Errors))
		}
		out = append(out, model.ValidatedExtraction{FieldExtraction: e, Validation: res})
	}

	findings := v.checker.Check(out)
	for _, f := range findings {
		v.log.Info("Consistency rule fired",
			zap.String("rule", f.Rule), zap.String("severity", string(f.Severity)), zap.String("message", f.Message))
	}
	return out, findings
}

func (v *Validator) pattern(src string) (*regexp.Regexp, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if re, ok := v.patterns[src]; ok {
		return re, nil
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, err
	}
	v.patterns[src] = re
	return re, nil
}
