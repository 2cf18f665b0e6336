package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ppiankov/vitalscribe/internal/pipeline"
)

var (
	outJSON      string
	outMD        string
	assessmentID string
	timeout      time.Duration
	noPersist    bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <file|-|url>",
	Short: "Extract assessment fields from one transcript",
	Long: `Extract reads a nursing assessment transcript and:
- Selects relevant catalog fields by embedding similarity
- Extracts their values with the configured language model
- Falls back to pattern extraction when retrieval or the model is unavailable
- Validates and normalizes every value against the catalog rules
- Stores the values as AI-filled suggestions for the assessment

The transcript is read from a file, from stdin ("-") or from an http(s) URL.

Example:
  vitalscribe extract visit.txt --assessment A-1001
  echo "pulse 88, bp 130 over 85" | vitalscribe extract - --md report.md
  vitalscribe extract visit.txt --llm-provider openai --embedding-provider openai`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&assessmentID, "assessment", "", "assessment id (default: a new UUID)")
	extractCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (default: stdout)")
	extractCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	extractCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall extraction timeout")
	extractCmd.Flags().BoolVar(&noPersist, "no-persist", false, "do not store the transcript or extracted values")
}

func runExtract(cmd *cobra.Command, args []string) error {
	src := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := newApp(!noPersist)
	if err != nil {
		return err
	}
	defer a.Close()

	if assessmentID == "" {
		assessmentID = uuid.NewString()
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Reading: %s\n", src)
		fmt.Fprintf(os.Stderr, "Assessment: %s\n", assessmentID)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintln(os.Stderr)
	}

	loader := pipeline.NewLoader(a.cfg.Timeouts.Completion, a.cfg.HTTP)
	text, err := loader.Load(ctx, src)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	report, err := a.pipeline.Process(ctx, pipeline.Request{
		AssessmentID: assessmentID,
		Transcript:   text,
		Source:       src,
	})
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Strategy: %s\n", report.Strategy)
		fmt.Fprintf(os.Stderr, "✓ Extracted %d fields\n", len(report.Extractions))
		if report.PersistError > 0 {
			fmt.Fprintf(os.Stderr, "⚠ %d values could not be stored\n", report.PersistError)
		}
		fmt.Fprintln(os.Stderr)
	}

	renderer := pipeline.NewRenderer()
	if outJSON == "" {
		if err := renderer.WriteJSON(os.Stdout, report); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	} else {
		if err := renderer.RenderJSON(report, outJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", outJSON)
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(report, outMD); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", outMD)
	}

	renderer.RenderSummary(os.Stderr, report)
	return nil
}
