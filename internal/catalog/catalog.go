// Package catalog holds the static registry of extractable nursing-assessment fields.
package catalog

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/vitalscribe/internal/model"
)

//go:embed fields.yaml
var fieldsYAML []byte

// Field ids referenced directly by extraction and validation code.
const (
	Temperature         model.FieldID = "temperature"
	Pulse               model.FieldID = "pulse"
	BPSystolic          model.FieldID = "bp_systolic"
	BPDiastolic         model.FieldID = "bp_diastolic"
	RespiratoryRate     model.FieldID = "respiratory_rate"
	SpO2                model.FieldID = "spo2"
	PainScale           model.FieldID = "pain_scale"
	MorseHistoryFalling model.FieldID = "morse_history_falling"
	MorseAmbulatoryAid  model.FieldID = "morse_ambulatory_aid"
	FallFrequency       model.FieldID = "fall_frequency"
	OxygenTherapy       model.FieldID = "oxygen_therapy"
	OxygenFlowRate      model.FieldID = "oxygen_flow_rate"
	Weight              model.FieldID = "weight"
	Height              model.FieldID = "height"
	FallInjury          model.FieldID = "fall_injury"
	CaregiverPhone      model.FieldID = "caregiver_phone"
	NextOfKinPhone      model.FieldID = "next_of_kin_phone"
	PatientPhone        model.FieldID = "patient_phone"
)

// CriticalFields are the vital-sign fields whose validation errors are escalated
// in a transcript summary.
var CriticalFields = []model.FieldID{
	Temperature, Pulse, BPSystolic, BPDiastolic, RespiratoryRate, SpO2, PainScale,
}

// Section groups related fields on the assessment form
type Section struct {
	ID     string                  `yaml:"id" json:"id"`
	Title  string                  `yaml:"title" json:"title"`
	Fields []model.FieldDefinition `yaml:"fields" json:"fields"`
}

type document struct {
	Sections []Section `yaml:"sections"`
}

// Catalog is an immutable, ordered registry of field definitions
type Catalog struct {
	sections []Section
	fields   []model.FieldDefinition
	byID     map[model.FieldID]int
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog, parsed and verified once per process
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(fieldsYAML)
		if defaultErr == nil {
			defaultErr = defaultCat.Verify()
		}
	})
	return defaultCat, defaultErr
}

// MustDefault is like Default but panics on a malformed embedded catalog
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(fmt.Sprintf("catalog: %v", err))
	}
	return c
}

// Parse decodes a catalog document. Structural checks are left to Verify.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{byID: make(map[model.FieldID]int)}
	for _, sec := range doc.Sections {
		for i := range sec.Fields {
			sec.Fields[i].SectionID = sec.ID
			if _, dup := c.byID[sec.Fields[i].ID]; !dup {
				c.byID[sec.Fields[i].ID] = len(c.fields)
			}
			c.fields = append(c.fields, sec.Fields[i])
		}
		c.sections = append(c.sections, sec)
	}
	return c, nil
}

// Verify checks catalog integrity and returns every problem found
func (c *Catalog) Verify() error {
	var problems []string
	seen := make(map[model.FieldID]bool, len(c.fields))

	for _, f := range c.fields {
		if f.ID == "" {
			problems = append(problems, fmt.Sprintf("field with label %q has no id", f.Label))
			continue
		}
		if seen[f.ID] {
			problems = append(problems, fmt.Sprintf("duplicate field id %s", f.ID))
		}
		seen[f.ID] = true

		if !f.Type.Valid() {
			problems = append(problems, fmt.Sprintf("%s: unknown type %q", f.ID, f.Type))
		}
		if f.Type.HasOptions() && len(f.Options) == 0 {
			problems = append(problems, fmt.Sprintf("%s: %s field has no options", f.ID, f.Type))
		}
		if f.Rules.Min != nil && f.Rules.Max != nil && *f.Rules.Min > *f.Rules.Max {
			problems = append(problems, fmt.Sprintf("%s: min %v exceeds max %v", f.ID, *f.Rules.Min, *f.Rules.Max))
		}
		if f.Rules.Pattern != "" {
			if _, err := regexp.Compile(f.Rules.Pattern); err != nil {
				problems = append(problems, fmt.Sprintf("%s: bad pattern: %v", f.ID, err))
			}
		}
	}

	for _, id := range append(append([]model.FieldID{}, CriticalFields...),
		MorseHistoryFalling, MorseAmbulatoryAid, FallFrequency, OxygenTherapy, OxygenFlowRate,
		Weight, Height, FallInjury, CaregiverPhone, NextOfKinPhone, PatientPhone) {
		if !seen[id] {
			problems = append(problems, fmt.Sprintf("required field %s missing", id))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("catalog invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Lookup returns the definition for id
func (c *Catalog) Lookup(id model.FieldID) (model.FieldDefinition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.FieldDefinition{}, false
	}
	return c.fields[i], true
}

// All returns every field in catalog order. The slice is a copy.
func (c *Catalog) All() []model.FieldDefinition {
	out := make([]model.FieldDefinition, len(c.fields))
	copy(out, c.fields)
	return out
}

// Sections returns the sections in catalog order
func (c *Catalog) Sections() []Section {
	out := make([]Section, len(c.sections))
	copy(out, c.sections)
	return out
}

// BySection returns the fields of one section, or nil if the section is unknown
func (c *Catalog) BySection(sectionID string) []model.FieldDefinition {
	for _, s := range c.sections {
		if s.ID == sectionID {
			out := make([]model.FieldDefinition, len(s.Fields))
			copy(out, s.Fields)
			return out
		}
	}
	return nil
}

// Len returns the number of fields
func (c *Catalog) Len() int {
	return len(c.fields)
}

// IsCritical reports whether id is a vital-sign field
func IsCritical(id model.FieldID) bool {
	for _, c := range CriticalFields {
		if c == id {
			return true
		}
	}
	return false
}
