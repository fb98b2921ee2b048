package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/exp/slog"

	"hotelsync/internal/app/server"
	"hotelsync/internal/config"
	"hotelsync/internal/utils/logger"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	log.Info("starting hotelsync agent",
		slog.String("env", cfg.Env),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("backend", cfg.Backend.BaseURL),
	)

	app, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Error("init agent", logger.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		log.Error("agent failed", logger.Err(err))
		os.Exit(1)
	}
}
