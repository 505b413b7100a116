package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/trafficgen/internal/output"
	"github.com/wesleyorama2/trafficgen/internal/scheduler"
)

func newFireCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fire TASK",
		Short: "Run one traffic task once and wait for its requests",
		Long: `Run one traffic task once, outside of its cadence, wait for every
request it sent and print a report. Use "trafficgen tasks" for the names.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatName, _ := cmd.Flags().GetString("format")
			noColor, _ := cmd.Flags().GetBool("no-color")
			noPacing, _ := cmd.Flags().GetBool("no-pacing")

			format, err := output.ParseFormat(formatName)
			if err != nil {
				return err
			}

			var options []scheduler.Option
			if noPacing {
				options = append(options, scheduler.WithWait(skipWait))
			}

			a, err := newApp(cmd, options...)
			if err != nil {
				return err
			}

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := a.scheduler.Fire(ctx, args[0])
			if err != nil {
				return err
			}

			return output.NewPrinter(cmd.OutOrStdout(), format, noColor).Fire(&output.FireResult{
				Report:   *report,
				Summary:  a.engine.Snapshot(),
				Requests: a.engine.RequestStats(),
			})
		},
	}

	cmd.Flags().StringP("format", "f", "table", "Output format (table, json, yaml)")
	cmd.Flags().Bool("no-pacing", false, "Skip pacing and pre-delays")
	return cmd
}

// skipWait returns at once, honoring only cancellation.
func skipWait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
