package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	synchttp "rentbridge/contexts/legacy-integration/sync-queue-service/transport/http"
)

func newRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler loop until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(app App) error {
				return app.Run(cmd.Context())
			})
		},
	}
}

func newProcessCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process one batch of eligible items and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(app App) error {
				resp, err := app.Module().Handler.ProcessQueueHandler(cmd.Context(), synchttp.ProcessQueueRequest{
					Action: synchttp.ActionProcessQueue,
					Limit:  limit,
				})
				if err != nil {
					return err
				}
				return opts.write(cmd.OutOrStdout(), resp, func(w io.Writer) {
					fmt.Fprintf(w, "processed=%d completed=%d failed=%d dead_lettered=%d skipped=%d\n",
						resp.Processed, resp.Completed, resp.Failed, resp.DeadLettered, resp.Skipped)
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum items to claim (0 uses the batch size)")
	return cmd
}

func newRetryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <item-id>",
		Short: "Reset a dead-lettered item to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(app App) error {
				resp, err := app.Module().Handler.RetryItemHandler(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return opts.write(cmd.OutOrStdout(), resp, func(w io.Writer) {
					fmt.Fprintf(w, "item %s is %s\n", resp.Item.ID, resp.Item.Status)
				})
			})
		},
	}
}

func newStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print queue counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(app App) error {
				resp, err := app.Module().Handler.QueueStatusHandler(cmd.Context())
				if err != nil {
					return err
				}
				return opts.write(cmd.OutOrStdout(), resp, func(w io.Writer) {
					fmt.Fprintf(w, "pending=%d processing=%d completed=%d failed=%d oldest_pending_age=%ds\n",
						resp.Pending, resp.Processing, resp.Completed, resp.Failed, resp.OldestPendingAgeSeconds)
				})
			})
		},
	}
}

func newDeadLettersCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "dead-letters",
		Short: "List failed items with their last error",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(app App) error {
				resp, err := app.Module().Handler.DeadLettersHandler(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return opts.write(cmd.OutOrStdout(), resp, func(w io.Writer) {
					if len(resp.Items) == 0 {
						fmt.Fprintln(w, "no failed items")
						return
					}
					for _, item := range resp.Items {
						fmt.Fprintf(w, "%s\t%s/%s\t%s #%d\tattempts=%d\t%s\n",
							item.ID, item.Target, item.RecordID, item.CorrelationID, item.Sequence, item.AttemptCount, item.LastError)
					}
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum items to list")
	return cmd
}

func newSweepCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Requeue stale claims and run retention cleanup once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(app App) error {
				module := app.Module()
				if err := module.Scheduler.Maintain(cmd.Context()); err != nil {
					return err
				}
				status, err := module.Handler.QueueStatusHandler(cmd.Context())
				if err != nil {
					return err
				}
				return opts.write(cmd.OutOrStdout(), status, func(w io.Writer) {
					fmt.Fprintf(w, "maintenance complete: %s\n", summary(status))
				})
			})
		},
	}
}

func summary(status synchttp.QueueStatusResponse) string {
	return fmt.Sprintf("pending=%d processing=%d failed=%d", status.Pending, status.Processing, status.Failed)
}
