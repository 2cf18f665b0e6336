package extract

import (
	"fmt"
	"strings"

	"github.com/ppiankov/vitalscribe/internal/model"
)

const systemPreamble = `You are a clinical documentation assistant filling in a nursing assessment form from a recorded conversation between a nurse and a patient. The conversation may mix English and Cantonese.

Extract values ONLY for the candidate fields listed below. Each candidate shows its relevance score from semantic retrieval; higher scores are more likely to be present.`

const extractionRules = `EXTRACTION RULES:
1. Only extract what is explicitly stated. Never infer values that were not said.
2. Falls: English terms "fell", "fall", "fallen", "slipped", "tripped" and Cantonese terms 跌倒, 跌親, 仆親, 跣親, 跌咗 describe a fall. A fall history answers "Yes (25 points)" on morse_history_falling. An explicit denial ("denies falls", "no falls", "never fallen", 冇跌過) means do NOT extract a fall. Capture how many times when stated ("three times", 兩次) as fall_frequency.
3. Numbers: return the number with its unit as listed (e.g. "38.2°C", "130 mmHg", "76 bpm", "97%"). Convert Fahrenheit to Celsius. "130 over 85" is systolic 130 and diastolic 85.
4. Options: for select and radio fields, return the closest option EXACTLY as written in the option list, including any "(N points)" suffix.
5. aiSourceText is the exact words from the transcript that justify the value.
6. confidenceScore is between 0 and 1: 0.9 or more for explicit statements, 0.5 to 0.8 for paraphrases, below 0.5 when unsure.
7. Use the fieldId and sectionId exactly as given. Return each field at most once.`

const outputFormat = `OUTPUT FORMAT:
Respond with a single JSON object and nothing else:
{"extractions": [{"fieldId": "...", "sectionId": "...", "fieldLabel": "...", "value": "...", "aiSourceText": "...", "confidenceScore": 0.0}]}
If nothing can be extracted, respond with {"extractions": []}.`

// BuildPrompt renders the system and user prompts for one transcript and its candidates
func BuildPrompt(transcript string, candidates []model.ExtractionCandidate, cat Catalog) (system, user string) {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\nCANDIDATE FIELDS:\n")

	n := 0
	for _, c := range candidates {
		def, ok := cat.Lookup(c.FieldID)
		if !ok {
			continue
		}
		n++
		writeCandidate(&b, n, def, c.Similarity)
	}

	b.WriteString("\n")
	b.WriteString(extractionRules)
	b.WriteString("\n\n")
	b.WriteString(outputFormat)

	user = fmt.Sprintf("Transcript:\n\"\"\"\n%s\n\"\"\"", strings.TrimSpace(transcript))
	return b.String(), user
}

func writeCandidate(b *strings.Builder, n int, def model.FieldDefinition, similarity float64) {
	fmt.Fprintf(b, "%d. %s (fieldId: %s, sectionId: %s, type: %s, relevance: %.2f)\n",
		n, def.Label, def.ID, def.SectionID, def.Type, similarity)
	if len(def.Synonyms) > 0 {
		fmt.Fprintf(b, "   Synonyms: %s\n", strings.Join(def.Synonyms, ", "))
	}
	if len(def.Options) > 0 {
		fmt.Fprintf(b, "   Options: %s\n", strings.Join(quoteAll(def.Options), ", "))
	}
	if def.Unit != "" {
		fmt.Fprintf(b, "   Unit: %s\n", def.Unit)
	}
	if def.ExpectedFormat != "" {
		fmt.Fprintf(b, "   Format: %s\n", def.ExpectedFormat)
	}
	if len(def.ExtractionHints) > 0 {
		fmt.Fprintf(b, "   Hints: %s\n", strings.Join(def.ExtractionHints, "; "))
	}
}

func quoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
