package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/vitalscribe/internal/catalog"
	"github.com/ppiankov/vitalscribe/internal/model"
)

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// band is a physiological plausibility range. Values outside raise a warning,
// or an error when hard is set.
type band struct {
	low, high float64
	hard      bool
	// above, when set, warns for values over it even inside [low, high]
	above *float64
	note  string
}

var febrile = 38.5

var bands = map[model.FieldID]band{
	catalog.Temperature:     {low: 35, high: 42, above: &febrile, note: "above 38.5°C febrile threshold"},
	catalog.Pulse:           {low: 50, high: 150},
	catalog.BPSystolic:      {low: 80, high: 200},
	catalog.BPDiastolic:     {low: 40, high: 120},
	catalog.RespiratoryRate: {low: 10, high: 30},
	catalog.SpO2:            {low: 85, high: 100},
	catalog.PainScale:       {low: 0, high: 10, hard: true},
}

// ParseNumber returns the first numeric token in raw
func ParseNumber(raw string) (float64, bool) {
	m := numberPattern.FindString(raw)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatNumber renders n without trailing zeros
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// WithUnit appends a physical unit. Units starting with °, % or / attach directly.
func WithUnit(n float64, unit string) string {
	s := FormatNumber(n)
	if unit == "" {
		return s
	}
	if strings.HasPrefix(unit, "°") || strings.HasPrefix(unit, "%") || strings.HasPrefix(unit, "/") {
		return s + unit
	}
	return s + " " + unit
}

func validateNumber(def model.FieldDefinition, raw string, res *model.ValidationResult) {
	n, ok := ParseNumber(raw)
	if !ok {
		res.NormalizedValue = strings.TrimSpace(raw)
		res.AddError(fmt.Sprintf("%s must be a number, got %q", def.Label, raw))
		return
	}
	res.NormalizedValue = WithUnit(n, def.Unit)

	b, hasBand := bands[def.ID]
	if hasBand && b.hard && (n < b.low || n > b.high) {
		res.AddError(fmt.Sprintf("%s must be between %s and %s, got %s",
			def.Label, FormatNumber(b.low), FormatNumber(b.high), FormatNumber(n)))
		return
	}

	if min := def.Rules.Min; min != nil && n < *min {
		res.AddError(fmt.Sprintf("%s below minimum %s, got %s", def.Label, WithUnit(*min, def.Unit), res.NormalizedValue))
		return
	}
	if max := def.Rules.Max; max != nil && n > *max {
		res.AddError(fmt.Sprintf("%s above maximum %s, got %s", def.Label, WithUnit(*max, def.Unit), res.NormalizedValue))
		return
	}

	if !hasBand || b.hard {
		return
	}
	switch {
	case n < b.low || n > b.high:
		res.AddWarning(fmt.Sprintf("Unusual %s reading: %s (expected %s to %s)",
			strings.ToLower(def.Label), res.NormalizedValue, WithUnit(b.low, def.Unit), WithUnit(b.high, def.Unit)))
	case b.above != nil && n > *b.above:
		res.AddWarning(fmt.Sprintf("Unusual %s reading: %s, %s", strings.ToLower(def.Label), res.NormalizedValue, b.note))
	}
}
