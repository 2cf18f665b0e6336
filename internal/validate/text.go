package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/vitalscribe/internal/model"
)

// Hong Kong numbers: 8 digits starting 2/3 (fixed line) or 5/6/7/9 (mobile)
var localPhone = regexp.MustCompile(`^[235679]\d{7}$`)

const countryCode = "852"

func isPhoneField(id model.FieldID) bool {
	return strings.Contains(string(id), "phone")
}

// NormalizePhone formats a local number as "+852 XXXX XXXX"
func NormalizePhone(raw string) (string, bool) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
	if len(digits) == len(countryCode)+8 && strings.HasPrefix(digits, countryCode) {
		digits = digits[len(countryCode):]
	}
	if !localPhone.MatchString(digits) {
		return "", false
	}
	return fmt.Sprintf("+%s %s %s", countryCode, digits[:4], digits[4:]), true
}

func (v *Validator) validateText(def model.FieldDefinition, raw string, res *model.ValidationResult) {
	text := strings.TrimSpace(raw)
	res.NormalizedValue = text

	if text == "" {
		res.AddWarning(fmt.Sprintf("%s is empty", def.Label))
		return
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		res.AddWarning(fmt.Sprintf("%s is longer than %d characters", def.Label, MaxTextLength))
	}

	if isPhoneField(def.ID) {
		if phone, ok := NormalizePhone(text); ok {
			res.NormalizedValue = phone
		} else {
			res.AddWarning(fmt.Sprintf("%s %q is not an 8-digit local number", def.Label, text))
		}
	}

	if def.Rules.Pattern == "" {
		return
	}
	re, err := v.pattern(def.Rules.Pattern)
	if err != nil {
		// Verify rejects bad patterns; a custom catalog may not have been verified
		res.AddWarning(fmt.Sprintf("%s has an invalid format rule", def.Label))
		return
	}
	if !re.MatchString(text) {
		expected := def.ExpectedFormat
		if expected == "" {
			expected = def.Rules.Pattern
		}
		res.AddWarning(fmt.Sprintf("%s does not match the expected format (%s)", def.Label, expected))
	}
}
