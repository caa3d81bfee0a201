package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	syncqueue "rentbridge/contexts/legacy-integration/sync-queue-service"
)

// App is the wired worker process the commands operate on.
type App interface {
	Module() syncqueue.Module
	Run(ctx context.Context) error
	Close() error
}

// AppFactory builds the App lazily so flag parsing errors never touch the database.
type AppFactory func(ctx context.Context) (App, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string
	factory AppFactory
}

var validFormats = []string{"text", "json"}

func NewRootCommand(factory AppFactory) *cobra.Command {
	opts := &RootOptions{factory: factory}

	cmd := &cobra.Command{
		Use:   "rentbridge-worker",
		Short: "Legacy sync queue worker",
		Long:  "Drives queued marketplace writes through push, read-back and reconcile against the legacy platform.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, format := range validFormats {
				if format == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newProcessCommand(opts))
	cmd.AddCommand(newRetryCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newDeadLettersCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))
	return cmd
}

// withApp builds the App for one command invocation and always closes it.
func (o *RootOptions) withApp(ctx context.Context, fn func(App) error) (err error) {
	app, err := o.factory(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap worker: %w", err)
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(app)
}

// write renders value as indented JSON, or through text when the text format is selected.
func (o *RootOptions) write(w io.Writer, value any, text func(io.Writer)) error {
	if o.Format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	}
	text(w)
	return nil
}
