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

// main exposes a root-level entry point so operators can simply run `go run bistro.go`.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args[1:], nil); err != nil {
		logging.New("bistro", os.Stderr, slog.LevelError).Error("application stopped with error", "error", err)
		os.Exit(1)
	}
}
