// Package main is the entry point for spw, the global setup runner.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(newGlobalState(os.LookupEnv)).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
