package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/ppiankov/vitalscribe/internal/model"
)

// pointsSuffix matches the score annotation on scored-scale options, e.g. "Yes (25 points)"
var pointsSuffix = regexp.MustCompile(`\s*\((\d+)\s*points?\)\s*$`)

// scoredPrefixes mark field ids belonging to scored clinical scales
var scoredPrefixes = []string{"morse_", "braden_", "norton_", "gcs_", "must_", "barthel_"}

// optionCore strips the points annotation: "Yes (25 points)" -> "Yes"
func optionCore(option string) string {
	return strings.TrimSpace(pointsSuffix.ReplaceAllString(option, ""))
}

// optionPoints returns the score of a scored option
func optionPoints(option string) (int, bool) {
	m := pointsSuffix.FindStringSubmatch(option)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

func isScored(id model.FieldID) bool {
	for _, p := range scoredPrefixes {
		if strings.HasPrefix(string(id), p) {
			return true
		}
	}
	return false
}

// MatchOption finds the catalog option for value. partial is set when the match
// was not exact and the caller should warn about the substitution.
func MatchOption(def model.FieldDefinition, value string) (option string, partial bool, ok bool) {
	v := strings.TrimSpace(value)
	lv := strings.ToLower(v)
	if lv == "" {
		return "", false, false
	}

	for _, opt := range def.Options {
		if strings.EqualFold(opt, v) || strings.EqualFold(optionCore(opt), v) {
			return opt, false, true
		}
	}

	// Whole-word containment either way. When several option cores appear in a
	// verbose answer the one mentioned first wins: "Yes, fell in May, no injury".
	if len([]rune(lv)) >= 2 {
		best, bestAt := "", -1
		for _, opt := range def.Options {
			core := strings.ToLower(optionCore(opt))
			if core == "" {
				continue
			}
			if containsWord(core, lv) {
				return opt, true, true
			}
			if at := wordIndex(lv, core); at >= 0 && (bestAt < 0 || at < bestAt) {
				best, bestAt = opt, at
			}
		}
		if bestAt >= 0 {
			return best, true, true
		}
	}

	// "uses a cane" -> "Crutches/cane/walker (15 points)"
	for _, opt := range def.Options {
		for _, alt := range alternatives(optionCore(opt)) {
			if containsWord(lv, alt) {
				return opt, true, true
			}
		}
	}

	if isScored(def.ID) {
		if n, ok := ParseNumber(v); ok {
			for _, opt := range def.Options {
				if p, ok := optionPoints(opt); ok && float64(p) == n {
					return opt, true, true
				}
			}
		}
	}

	return "", false, false
}

func alternatives(core string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(strings.ToLower(core), func(r rune) bool { return r == '/' || r == ',' }) {
		part = strings.TrimSpace(part)
		if len([]rune(part)) >= 3 {
			out = append(out, part)
		}
	}
	return out
}

// containsWord reports whether word appears in s on word boundaries.
// Scripts without spaces (Chinese) match as plain substrings.
func containsWord(s, word string) bool {
	return wordIndex(s, word) >= 0
}

// wordIndex returns the byte offset of the first whole-word occurrence of word
// in s, or -1.
func wordIndex(s, word string) int {
	if word == "" {
		return -1
	}
	start := 0
	for start <= len(s) {
		i := strings.Index(s[start:], word)
		if i < 0 {
			return -1
		}
		i += start
		if boundaryBefore(s, i) && boundaryAfter(s, i+len(word)) {
			return i
		}
		start = i + 1
	}
	return -1
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r := lastRune(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r := []rune(s[i:])[0]
	return !isWordRune(r)
}

func lastRune(s string) rune {
	r := []rune(s)
	return r[len(r)-1]
}

func isWordRune(r rune) bool {
	if unicode.Is(unicode.Han, r) {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func validateOption(def model.FieldDefinition, raw string, res *model.ValidationResult) {
	option, partial, ok := MatchOption(def, raw)
	if !ok {
		res.NormalizedValue = strings.TrimSpace(raw)
		res.AddError(fmt.Sprintf("Invalid option %q for %s. Valid options: %s",
			strings.TrimSpace(raw), def.Label, strings.Join(def.Options, ", ")))
		return
	}
	res.NormalizedValue = option
	if partial {
		res.AddWarning(fmt.Sprintf("Partial match: %q interpreted as %q", strings.TrimSpace(raw), option))
	}
}
