package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/troubleshootd/internal/config"
	httpserver "github.com/fyrsmithlabs/troubleshootd/internal/http"
	"github.com/fyrsmithlabs/troubleshootd/internal/services"
	"github.com/fyrsmithlabs/troubleshootd/internal/storage"
	"github.com/fyrsmithlabs/troubleshootd/internal/telemetry"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return runServer(ctx, cfg)
		},
	}
}

// runServer runs until ctx is cancelled, then shuts down within
// server.shutdown_timeout.
func runServer(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version), nil)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := newLogger(cfg, tel.LoggerProvider(), os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	zlog := logger.Underlying()
	zlog.Info("starting troubleshootd",
		zap.String("version", version),
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.Bool("telemetry", tel.Enabled()),
		zap.Bool("telemetry_degraded", tel.Degraded()),
	)

	store, err := storage.Open(cfg.Storage.DataDir, zlog.Named("storage"))
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	if cfg.Suggestions.SeedOnStartup {
		if _, err := store.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("failed to seed knowledge base: %w", err)
		}
	}

	reg, err := services.New(services.Options{
		Store:   store,
		Config:  cfg,
		Logger:  zlog,
		Metrics: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	srv, err := httpserver.NewServer(httpserver.Deps{
		Suggestions: reg.Suggestions(),
		Feedback:    reg.Feedback(),
		Articles:    store,
		Health:      store,
	}, logger, &httpserver.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		FeedbackRate:  cfg.Server.FeedbackRate,
		FeedbackBurst: cfg.Server.FeedbackBurst,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		zlog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	zlog.Info("troubleshootd stopped")
	return nil
}
