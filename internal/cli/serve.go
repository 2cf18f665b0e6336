package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/vitalscribe/internal/server"
)

var purgeSchedule string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes extraction, validation, the field catalog and index
rebuilds over a JSON HTTP API, plus /healthz and Prometheus /metrics.

Expired transcripts are purged in the background.

Example:
  vitalscribe serve
  vitalscribe serve --addr :9090 --llm-provider ollama --embedding-provider ollama`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().StringVar(&purgeSchedule, "purge-schedule", "@every 1h", "cron schedule for deleting expired transcripts (empty disables)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := server.Options{
		Processor:    a.pipeline,
		Validator:    a.validator,
		Catalog:      a.catalog,
		Values:       a.store,
		Health:       a.store,
		MaxBodyBytes: a.cfg.HTTP.MaxBodyBytes,
	}
	if a.builder != nil {
		opts.Rebuilder = a.builder
	}
	srv := server.New(opts, a.log.Named("server"))

	if purgeSchedule != "" {
		c, err := schedulePurge(ctx, a.store, purgeSchedule, a.log.Named("purge"))
		if err != nil {
			return err
		}
		defer func() { <-c.Stop().Done() }()
	}

	fmt.Fprintf(os.Stderr, "Listening on %s\n", a.cfg.Server.Addr)
	return srv.ListenAndServe(ctx, a.cfg.Server.Addr)
}
