package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/invoicedesk/internal/logging"
	"github.com/dmitrijs2005/invoicedesk/internal/mockapi"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := mockapi.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mockapi.NewServer(cfg, mockapi.WithLogger(logger))
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error(ctx, "mock invoice service failed", "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info(ctx, "mock invoice service stopped")
}
