package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	rebuildTimeout time.Duration
	rebuildJSON    bool
)

// indexCmd groups embedding index commands
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the field embedding index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Regenerate embeddings for every catalog field",
	Long: `Rebuild embeds a descriptive document for every field in the catalog
and replaces the stored index in one transaction.

Fields whose embedding fails are skipped and reported. If every field
fails, the previous index is kept.

Example:
  vitalscribe index rebuild --embedding-provider openai
  vitalscribe index rebuild --embedding-provider ollama --embedding-model nomic-embed-text`,
	Args: cobra.NoArgs,
	RunE: runIndexRebuild,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexRebuildCmd)

	indexRebuildCmd.Flags().DurationVar(&rebuildTimeout, "timeout", 10*time.Minute, "rebuild timeout")
	indexRebuildCmd.Flags().BoolVar(&rebuildJSON, "json", false, "print the rebuild report as JSON")
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), rebuildTimeout)
	defer cancel()

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(os.Stderr, "⚙️  Embedding %d catalog fields...\n", a.catalog.Len())

	report, err := a.builder.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	if rebuildJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(os.Stderr, "✓ Indexed %d fields with %s in %v\n", report.SuccessCount, report.Model, report.Duration.Round(time.Millisecond))
	if report.EvictedModel != "" {
		fmt.Fprintf(os.Stderr, "✓ Dropped cached vectors of %s\n", report.EvictedModel)
	}
	if report.ErrorCount > 0 {
		fmt.Fprintf(os.Stderr, "⚠ %d fields failed:\n", report.ErrorCount)
		for _, id := range report.Failed {
			fmt.Fprintf(os.Stderr, "  - %s\n", id)
		}
	}
	return nil
}
