package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/campusmind/campusmind/api"
	"github.com/campusmind/campusmind/internal/app"
	"github.com/campusmind/campusmind/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(*cobra.Command, []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting campusmind", "version", Version)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	server := api.NewServer(
		api.NewHealthHandler(a.Pool, logger),
		api.NewDocumentHandler(a.Blobs, a.Store, a.Pipeline, logger),
		api.NewAskHandler(a.Synthesizer, logger),
		logger,
		api.Options{
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
			TrustProxy:     cfg.TrustProxy,
		},
	)
	return server.Run(ctx, cfg.ServeAddr)
}
