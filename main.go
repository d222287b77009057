package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"campaignlab/features/campaign"
	"campaignlab/features/document"
	"campaignlab/internal/app"
	"campaignlab/internal/config"
	"campaignlab/internal/logger"
)

func main() {
	slog.SetDefault(slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()
	defer deps.Embedder.Close()
	defer deps.Generator.Close()
	defer deps.Producer.Stop()

	application, err := app.New(
		cfg,
		document.NewPostgresRepo(deps.DB),
		campaign.NewPostgresRepo(deps.DB),
		deps.Store,
		deps.Embedder,
		deps.Generator,
		deps.Producer,
	)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
