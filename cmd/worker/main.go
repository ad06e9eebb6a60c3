package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/ulugbekov/savdo-backend/internal/notifications"
	"github.com/ulugbekov/savdo-backend/pkg/config"
	"github.com/ulugbekov/savdo-backend/pkg/db"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
	"github.com/ulugbekov/savdo-backend/pkg/metrics"
	"github.com/ulugbekov/savdo-backend/pkg/migrate"
	"github.com/ulugbekov/savdo-backend/pkg/outbox"
	"github.com/ulugbekov/savdo-backend/pkg/sms"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	notifier, err := sms.New(cfg.SMS)
	if err != nil {
		logg.Error(context.Background(), "failed to create sms client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	workerMetrics := metrics.NewWorkerMetrics(registry)

	dispatcher := notifications.NewDispatcher(
		outbox.NewRepository(dbClient.DB()),
		notifier,
		workerMetrics,
		cfg.Outbox,
		logg,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":           cfg.App.Env,
		"batch_size":    cfg.Outbox.BatchSize,
		"poll_interval": cfg.Outbox.PollInterval.String(),
	})
	logg.Info(ctx, "starting notifications worker")

	metricsServer := &http.Server{
		Addr:    ":" + cfg.Outbox.MetricsPort,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped unexpectedly", err)
		}
	}()

	runErr := dispatcher.Run(ctx)

	var closeErr error
	closeErr = multierr.Append(closeErr, metricsServer.Close())

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", multierr.Append(runErr, closeErr))
		os.Exit(1)
	}
	if closeErr != nil {
		logg.Error(ctx, "error during worker shutdown", closeErr)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
