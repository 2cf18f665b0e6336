package validate

import (
	"fmt"

	"github.com/ppiankov/vitalscribe/internal/catalog"
	"github.com/ppiankov/vitalscribe/internal/model"
)

// Summarize aggregates validation outcomes. Only vital-sign fields contribute
// to CriticalErrors.
func Summarize(items []model.ValidatedExtraction) model.ValidationSummary {
	s := model.ValidationSummary{
		TotalFields:    len(items),
		CriticalErrors: []string{},
	}
	for _, it := range items {
		v := it.Validation
		if v.IsValid {
			s.ValidFields++
		}
		if len(v.Errors) > 0 {
			s.FieldsWithErrors++
		}
		if len(v.Warnings) > 0 {
			s.FieldsWithWarnings++
		}
		if catalog.IsCritical(it.FieldID) {
			label := it.FieldLabel
			if label == "" {
				label = string(it.FieldID)
			}
			for _, e := range v.Errors {
				s.CriticalErrors = append(s.CriticalErrors, fmt.Sprintf("%s: %s", label, e))
			}
		}
	}
	return s
}
