package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnparseableResponse is returned when no known JSON shape can be read from a model reply
var ErrUnparseableResponse = errors.New("unparseable model response")

// shape is the JSON layout a model reply arrived in
type shape int

const (
	shapeNone        shape = iota
	shapeArray             // [ {...}, ... ]
	shapeExtractions       // {"extractions": [...]}
	shapeFields            // {"fields": [...]}
	shapeData              // {"data": [...]} or {"data": {"extractions": [...]}}
)

func (s shape) String() string {
	switch s {
	case shapeArray:
		return "array"
	case shapeExtractions:
		return "extractions"
	case shapeFields:
		return "fields"
	case shapeData:
		return "data"
	}
	return "none"
}

var wrappedShapes = []struct {
	key   string
	shape shape
}{
	{"extractions", shapeExtractions},
	{"fields", shapeFields},
	{"data", shapeData},
}

// rawExtraction is one model-reported extraction before filtering. Values and
// confidences may arrive as strings or numbers; keys in camelCase or snake_case.
type rawExtraction struct {
	FieldID         string
	SectionID       string
	FieldLabel      string
	Value           string
	AISourceText    string
	ConfidenceScore float64
	hasConfidence   bool
}

func (r *rawExtraction) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	r.FieldID = stringField(m, "fieldId", "field_id", "id")
	r.SectionID = stringField(m, "sectionId", "section_id", "section")
	r.FieldLabel = stringField(m, "fieldLabel", "field_label", "label")
	r.Value = stringField(m, "value")
	r.AISourceText = stringField(m, "aiSourceText", "ai_source_text", "sourceText", "source_text")
	if c := stringField(m, "confidenceScore", "confidence_score", "confidence"); c != "" {
		if f, err := strconv.ParseFloat(c, 64); err == nil {
			r.ConfidenceScore = f
			r.hasConfidence = true
		}
	}
	return nil
}

func stringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			return strings.TrimSpace(t)
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		default:
			b, _ := json.Marshal(t)
			return string(b)
		}
	}
	return ""
}

// parseResponse reads extractions from a model reply: the text as is, then a
// repaired copy with code fences and surrounding prose removed.
func parseResponse(text string) ([]rawExtraction, shape, error) {
	attempts := []string{strings.TrimSpace(text)}
	if repaired := repairJSON(text); repaired != attempts[0] {
		attempts = append(attempts, repaired)
	}

	for _, a := range attempts {
		if items, sh, ok := decodeShape([]byte(a)); ok {
			return items, sh, nil
		}
	}

	preview := strings.TrimSpace(text)
	if len(preview) > 80 {
		preview = preview[:80] + "..."
	}
	return nil, shapeNone, fmt.Errorf("%w: %q", ErrUnparseableResponse, preview)
}

func decodeShape(data []byte) ([]rawExtraction, shape, bool) {
	if len(data) == 0 {
		return nil, shapeNone, false
	}

	switch data[0] {
	case '[':
		var items []rawExtraction
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, shapeNone, false
		}
		return items, shapeArray, true

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, shapeNone, false
		}
		for _, w := range wrappedShapes {
			raw, ok := obj[w.key]
			if !ok {
				continue
			}
			var items []rawExtraction
			if err := json.Unmarshal(raw, &items); err == nil {
				return items, w.shape, true
			}
			// {"data": {"extractions": [...]}}
			if w.shape == shapeData {
				if items, _, ok := decodeShape(raw); ok {
					return items, shapeData, true
				}
			}
		}
	}
	return nil, shapeNone, false
}

// repairJSON strips markdown code fences and any prose before the first
// bracket or after the last matching one.
func repairJSON(text string) string {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:] // drop the language tag line
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}
