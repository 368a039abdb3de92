package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yallaspeak/syncd/internal/scheduler"
	"github.com/yallaspeak/syncd/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sync HTTP server",
	Long: `Start the HTTP server that accepts sync requests from devices.

The server exposes the sync API under /api/v1/sync behind JWT auth
and periodically drains offline queues in the background.`,
	RunE: runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)
	logger.Info("Starting syncd", "version", Version)

	ctx := context.Background()

	application, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	srv := server.New(logger, server.Config{
		Addr:            cfg.Server.Addr(),
		Version:         Version,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		JWTSecret:       []byte(cfg.Auth.JWTSecret),
	}, application.engine)

	var sweep *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sweep = scheduler.New(logger, application.engine, application.queue, cfg.Scheduler.Schedule)
		if err := sweep.Start(); err != nil {
			return err
		}
	} else {
		logger.Info("Queue sweep scheduler disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Graceful shutdown по SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if sweep != nil {
			sweep.Stop()
		}
		return err
	case sig := <-quit:
		logger.Info("Received shutdown signal", "signal", sig.String())
	}

	if sweep != nil {
		sweep.Stop()
	}

	return srv.Shutdown(ctx)
}
