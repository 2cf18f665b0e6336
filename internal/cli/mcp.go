package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/vitalscribe/internal/mcpserver"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve extraction tools over the Model Context Protocol (stdio)",
	Long: `Mcp starts a Model Context Protocol server on stdin/stdout exposing:
- scribe_extract   extract and validate fields from a transcript
- scribe_validate  validate and normalize one field value
- scribe_fields    list catalog fields or show one definition

Logs go to stderr so stdout stays reserved for the protocol.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		s := mcpserver.NewServer(mcpserver.Config{
			Processor: a.pipeline,
			Validator: a.validator,
			Catalog:   a.catalog,
			Version:   Version,
			Log:       a.log.Named("mcp"),
		})
		return mcpserver.ServeStdio(s)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
