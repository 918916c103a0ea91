package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"recall/internal/app"
	"recall/internal/config"
	"recall/internal/logger"
)

func main() {
	// Structured logs go to stderr so the interactive loop owns stdout.
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stderr, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("failed to bootstrap", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("command loop failed", "error", err)
		os.Exit(1)
	}
}
