package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kycreview/internal/platform/config"
	"kycreview/internal/platform/httpserver"
	"kycreview/internal/platform/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background workers",
	Long: `Starts the case review API. Postgres, Redis and Kafka are optional:
without DATABASE_URL cases and audit events are kept in memory, without
REDIS_URL upload idempotency is process-local, and without KAFKA_BROKERS the
audit relay and OCR consumer are not started.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides KYC_ADDR)")
	serveCmd.Flags().Bool("no-seed", false, "skip loading demo cases")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if noSeed, _ := cmd.Flags().GetBool("no-seed"); noSeed {
		cfg.Workflow.Seed = false
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	for _, worker := range a.workers {
		g.Go(func() error {
			if err := worker(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		srv := httpserver.New(cfg.Server.Addr, a.router)
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped with error", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}
