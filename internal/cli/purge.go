package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/store"
)

// purgeCmd represents the purge command
var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete transcripts past their retention period",
	Long: `Purge deletes raw transcripts whose retention period has elapsed.
Extracted field values are kept.

The retention period is store.transcript_retention (default 720h).
"vitalscribe serve" runs the same purge on a schedule.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.store.PurgeExpired(cmd.Context(), time.Now())
		if err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}

		fmt.Fprintf(os.Stderr, "✓ Deleted %d expired transcripts\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

// schedulePurge starts a cron job deleting expired transcripts. Stop the
// returned scheduler to end it.
func schedulePurge(ctx context.Context, st store.TranscriptStore, schedule string, log *zap.Logger) (*cron.Cron, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if ctx.Err() != nil {
			return
		}
		n, err := st.PurgeExpired(ctx, time.Now())
		if err != nil {
			log.Error("Transcript purge failed", zap.Error(err))
			return
		}
		if n > 0 {
			log.Info("Purged expired transcripts", zap.Int64("count", n))
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}
