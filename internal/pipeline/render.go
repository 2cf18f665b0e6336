package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/vitalscribe/internal/model"
)

// EmptyMessage is shown for a report without extractions
const EmptyMessage = "No data extracted yet"

// Renderer writes reports as JSON or Markdown
type Renderer struct{}

// NewRenderer creates a renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// WriteJSON writes the report as indented JSON
func (r *Renderer) WriteJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// WriteMarkdown writes a human-readable report
func (r *Renderer) WriteMarkdown(w io.Writer, report *model.Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Assessment %s\n\n", report.AssessmentID)
	if !report.ProcessedAt.IsZero() {
		fmt.Fprintf(&b, "- Processed: %s\n", report.ProcessedAt.Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Fprintf(&b, "- Strategy: %s\n", report.Strategy)
	fmt.Fprintf(&b, "- Quality: %d/100 (%s confidence)\n", report.Score.Index, report.Score.Confidence)
	if report.PersistError > 0 {
		fmt.Fprintf(&b, "- Store errors: %d\n", report.PersistError)
	}
	b.WriteString("\n")

	if report.Empty() {
		fmt.Fprintf(&b, "_%s._\n", EmptyMessage)
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("## Fields\n\n")
	b.WriteString("| Section | Field | Value | Confidence | Status |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, e := range report.Extractions {
		value := e.Validation.NormalizedValue
		if value == "" {
			value = e.Value
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %.2f | %s |\n",
			e.SectionID, escapeCell(e.FieldLabel), escapeCell(value), e.ConfidenceScore, status(e.Validation))
	}
	b.WriteString("\n")

	var issues []string
	for _, e := range report.Extractions {
		for _, msg := range e.Validation.Errors {
			issues = append(issues, fmt.Sprintf("- **%s** (error): %s", e.FieldLabel, msg))
		}
		for _, msg := range e.Validation.Warnings {
			issues = append(issues, fmt.Sprintf("- **%s** (warning): %s", e.FieldLabel, msg))
		}
	}
	if len(issues) > 0 {
		b.WriteString("## Issues\n\n")
		b.WriteString(strings.Join(issues, "\n"))
		b.WriteString("\n\n")
	}

	s := report.Summary
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "%d fields, %d valid, %d with errors, %d with warnings\n",
		s.TotalFields, s.ValidFields, s.FieldsWithErrors, s.FieldsWithWarnings)
	for _, c := range s.CriticalErrors {
		fmt.Fprintf(&b, "- Critical: %s\n", c)
	}
	b.WriteString("\n")

	if len(report.Score.Signals) > 0 {
		b.WriteString("## Signals\n\n")
		for _, sig := range report.Score.Signals {
			fmt.Fprintf(&b, "- [%s] %s\n", sig.Severity, sig.Description)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderJSON writes the JSON report to path
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	return writeFile(path, func(w io.Writer) error { return r.WriteJSON(w, report) })
}

// RenderMarkdown writes the Markdown report to path
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, func(w io.Writer) error { return r.WriteMarkdown(w, report) })
}

// RenderSummary prints a short summary for terminals
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	fmt.Fprintf(w, "\nAssessment: %s\n", report.AssessmentID)
	fmt.Fprintf(w, "Strategy: %s\n", report.Strategy)
	if report.Empty() {
		fmt.Fprintf(w, "%s\n", EmptyMessage)
		return
	}
	fmt.Fprintf(w, "Fields: %d (%d valid, %d with errors, %d with warnings)\n",
		report.Summary.TotalFields, report.Summary.ValidFields,
		report.Summary.FieldsWithErrors, report.Summary.FieldsWithWarnings)
	fmt.Fprintf(w, "Quality: %d/100 (%s confidence)\n", report.Score.Index, report.Score.Confidence)
	for _, c := range report.Summary.CriticalErrors {
		fmt.Fprintf(w, "  ✗ %s\n", c)
	}
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func status(v model.ValidationResult) string {
	switch {
	case !v.IsValid:
		return "✗ invalid"
	case len(v.Warnings) > 0:
		return "⚠ check"
	}
	return "✓"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}
