package extract

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Normalize folds a transcript for pattern matching: NFKC, width folding
// (full-width digits and punctuation from Chinese speech-to-text), lower case,
// collapsed whitespace.
func Normalize(text string) string {
	s := norm.NFKC.String(text)
	s = width.Fold.String(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "’", "'")
	return strings.Join(strings.Fields(s), " ")
}
