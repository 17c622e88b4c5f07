package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bistro/pkg/app"
	"bistro/pkg/logging"
)

// main acts as a thin adapter so process managers can keep using cmd/server.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New("bistro", os.Stdout, slog.LevelInfo)
	if err := app.Run(ctx, os.Args[1:], logger); err != nil {
		logger.Error("application stopped with error", "error", err)
		os.Exit(1)
	}
}
