package index

import (
	"fmt"
	"strings"

	"github.com/ppiankov/vitalscribe/internal/model"
)

var sectionContext = map[string]string{
	"vital_signs":                "physiological observations recorded at the bedside",
	"pain_assessment":            "the patient's pain experience and its management",
	"morse_fall_scale":           "fall risk scoring on the Morse Fall Scale",
	"fall_history":               "previous falls and their circumstances",
	"braden_scale":               "pressure injury risk on the Braden Scale",
	"norton_scale":               "pressure injury risk on the Norton Scale",
	"glasgow_coma_scale":         "level of consciousness on the Glasgow Coma Scale",
	"nutrition":                  "malnutrition screening and eating habits",
	"activities_of_daily_living": "independence in daily self-care activities",
	"continence":                 "bladder and bowel function",
	"skin_assessment":            "skin condition, wounds and pressure areas",
	"respiratory":                "breathing and chest symptoms",
	"cardiovascular":             "circulation and heart symptoms",
	"neurological":               "cognition, orientation and senses",
	"psychosocial":               "mood, sleep and behaviour",
	"social_history":             "home situation, family and community support",
	"mobility":                   "walking, transfers and physical function",
	"allergies":                  "known allergies and reactions",
	"medication":                 "current medicines and how they are taken",
	"infection_control":          "infection risk and isolation needs",
	"admission":                  "why the patient was admitted and their history",
	"discharge_planning":         "plans and support needed after discharge",
}

// RenderDocument renders the medical-context document embedded for a field
func RenderDocument(def model.FieldDefinition) string {
	section := strings.ReplaceAll(def.SectionID, "_", " ")

	var b strings.Builder
	fmt.Fprintf(&b, "Field: %s\n", def.Label)
	fmt.Fprintf(&b, "Section: %s\n", section)
	fmt.Fprintf(&b, "Type: %s\n", def.Type)
	if len(def.Synonyms) > 0 {
		fmt.Fprintf(&b, "Also known as: %s\n", strings.Join(def.Synonyms, ", "))
	}
	if len(def.Options) > 0 {
		fmt.Fprintf(&b, "Options: %s\n", strings.Join(def.Options, "; "))
	}
	if def.Unit != "" {
		fmt.Fprintf(&b, "Unit: %s\n", def.Unit)
	}
	if def.ExpectedFormat != "" {
		fmt.Fprintf(&b, "Expected format: %s\n", def.ExpectedFormat)
	}
	if len(def.ExtractionHints) > 0 {
		fmt.Fprintf(&b, "Hints: %s\n", strings.Join(def.ExtractionHints, " "))
	}

	ctx, ok := sectionContext[def.SectionID]
	if !ok {
		ctx = "the " + section + " part of the assessment"
	}
	fmt.Fprintf(&b, "In a nursing assessment conversation, %s is recorded as part of %s.", def.Label, ctx)

	return b.String()
}
