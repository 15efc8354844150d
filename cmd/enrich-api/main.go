package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-enrich-pipeline/internal/app"
	"go-enrich-pipeline/internal/config"
	"go-enrich-pipeline/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "enrich-api",
	Short:         "Serve the enrichment job API",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          serve,
}

func main() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	serveErr := a.Serve(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Close(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
	return serveErr
}
