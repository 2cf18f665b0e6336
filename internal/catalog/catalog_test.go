package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/vitalscribe/internal/model"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, c.Len(), 180)
	assert.NotEmpty(t, c.Sections())
}

func TestDefaultFieldIDsUnique(t *testing.T) {
	c := MustDefault()
	seen := make(map[model.FieldID]bool)
	for _, f := range c.All() {
		assert.False(t, seen[f.ID], "duplicate id %s", f.ID)
		seen[f.ID] = true
		assert.NotEmpty(t, f.SectionID, "field %s has no section", f.ID)
		assert.NotEmpty(t, f.Label, "field %s has no label", f.ID)
	}
}

func TestLookup(t *testing.T) {
	c := MustDefault()

	f, ok := c.Lookup(BPSystolic)
	require.True(t, ok)
	assert.Equal(t, model.FieldTypeNumber, f.Type)
	assert.Equal(t, "mmHg", f.Unit)
	assert.Equal(t, "vital_signs", f.SectionID)

	_, ok = c.Lookup("not_a_field")
	assert.False(t, ok)
}

func TestAmbulatoryAidOptions(t *testing.T) {
	f, ok := MustDefault().Lookup(MorseAmbulatoryAid)
	require.True(t, ok)
	assert.Contains(t, f.Options, "Crutches/cane/walker (15 points)")
}

func TestBySection(t *testing.T) {
	c := MustDefault()
	fields := c.BySection("morse_fall_scale")
	require.NotEmpty(t, fields)
	for _, f := range fields {
		assert.Equal(t, "morse_fall_scale", f.SectionID)
	}
	assert.Nil(t, c.BySection("nope"))
}

func TestAllReturnsCopy(t *testing.T) {
	c := MustDefault()
	all := c.All()
	all[0].Label = "mutated"

	f, _ := c.Lookup(all[0].ID)
	assert.NotEqual(t, "mutated", f.Label)
}

func TestVerifyReportsProblems(t *testing.T) {
	doc := `
sections:
  - id: s
    title: S
    fields:
      - {id: a, label: A, type: select}
      - {id: a, label: A2, type: text}
      - {id: b, label: B, type: number, rules: {min: 10, max: 1}}
      - {id: c, label: C, type: text, rules: {pattern: "("}}
      - {id: d, label: D, type: bogus}
`
	c, err := Parse([]byte(doc))
	require.NoError(t, err)

	err = c.Verify()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"duplicate field id a",
		"a: select field has no options",
		"b: min 10 exceeds max 1",
		"c: bad pattern",
		`d: unknown type "bogus"`,
		"required field temperature missing",
	} {
		assert.True(t, strings.Contains(msg, want), "missing %q in %s", want, msg)
	}
}

func TestIsCritical(t *testing.T) {
	assert.True(t, IsCritical(SpO2))
	assert.True(t, IsCritical(PainScale))
	assert.False(t, IsCritical(FallFrequency))
}
