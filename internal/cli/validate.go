package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ppiankov/vitalscribe/internal/model"
)

var (
	confidenceFlag string
	sectionFlag    string
	fieldsJSON     bool
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <field-id> <value>",
	Short: "Validate and normalize one field value",
	Long: `Validate checks a single value against the catalog rules of a field:
numeric ranges, option lists, text length and patterns. The normalized
value is printed with any errors and warnings.

Exits with status 1 when the value is invalid.

Example:
  vitalscribe validate pulse 76
  vitalscribe validate morse_ambulatory_aid "uses a cane"
  vitalscribe validate pain_score 12 --confidence 0.9`,
	Args: cobra.ExactArgs(2),
	RunE: runValidate,
}

// fieldsCmd represents the fields command
var fieldsCmd = &cobra.Command{
	Use:   "fields [field-id]",
	Short: "List catalog fields",
	Long: `Fields lists the assessment form fields known to the catalog, optionally
restricted to one section, or shows the full definition of one field.

Example:
  vitalscribe fields
  vitalscribe fields --section vital_signs
  vitalscribe fields morse_gait --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFields,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(fieldsCmd)

	validateCmd.Flags().StringVar(&confidenceFlag, "confidence", "", "confidence score of the value (0-1)")
	fieldsCmd.Flags().StringVar(&sectionFlag, "section", "", "only list fields of this section")
	fieldsCmd.Flags().BoolVar(&fieldsJSON, "json", false, "print JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	var confidence *float64
	if confidenceFlag != "" {
		c, err := strconv.ParseFloat(confidenceFlag, 64)
		if err != nil {
			return fmt.Errorf("invalid --confidence %q: %w", confidenceFlag, err)
		}
		confidence = &c
	}

	res := a.validator.Validate(model.FieldID(args[0]), args[1], confidence)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}

	switch {
	case !res.IsValid:
		color.New(color.FgHiRed, color.Bold).Fprintf(os.Stderr, "✗ %s: invalid\n", args[0])
		return fmt.Errorf("invalid value for %s: %s", args[0], strings.Join(res.Errors, "; "))
	case len(res.Warnings) > 0:
		color.New(color.FgHiYellow, color.Bold).Fprintf(os.Stderr, "⚠ %s: %s (check: %s)\n",
			args[0], res.NormalizedValue, strings.Join(res.Warnings, "; "))
	default:
		color.New(color.FgHiGreen, color.Bold).Fprintf(os.Stderr, "✓ %s: %s\n", args[0], res.NormalizedValue)
	}
	return nil
}

func runFields(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	var defs []model.FieldDefinition
	switch {
	case len(args) == 1:
		def, ok := a.catalog.Lookup(model.FieldID(args[0]))
		if !ok {
			return fmt.Errorf("%w: %s", model.ErrUnknownField, args[0])
		}
		defs = []model.FieldDefinition{def}
	case sectionFlag != "":
		defs = a.catalog.BySection(sectionFlag)
		if len(defs) == 0 {
			return fmt.Errorf("no fields in section %q", sectionFlag)
		}
	default:
		defs = a.catalog.All()
	}

	if fieldsJSON || len(args) == 1 {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if len(args) == 1 {
			return enc.Encode(defs[0])
		}
		return enc.Encode(defs)
	}

	table := tablewriter.NewWriter(os.Stdout)
	if err := table.Append([]string{"Field", "Section", "Type", "Label", "Unit"}); err != nil {
		return err
	}
	for _, d := range defs {
		if err := table.Append([]string{string(d.ID), d.SectionID, string(d.Type), d.Label, d.Unit}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d fields\n", len(defs))
	return nil
}
