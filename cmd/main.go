package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	runner := NewRunner(RunnerOpts{})
	app := rootCommand(runner)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := app.Run(ctx, os.Args); err != nil {
		runner.logger.Error("application error", "error", err)
		stop()
		os.Exit(1)
	}
	stop()
}
