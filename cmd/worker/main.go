package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"rentbridge/internal/app/bootstrap"
	"rentbridge/internal/cli"
)

// Worker process entrypoint.
// Data flow:
// 1) Parse the operator command.
// 2) Build app wiring.
// 3) Run the scheduler loop or a one-shot command (process, retry, status, sweep).
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	root := cli.NewRootCommand(func(ctx context.Context) (cli.App, error) {
		return bootstrap.BuildWorker(ctx)
	})
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
