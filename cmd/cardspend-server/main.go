package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"cardspend/internal/cli"
	apphttp "cardspend/internal/http"
	applog "cardspend/internal/log"
	"cardspend/internal/metrics"
	"cardspend/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)
	logger.Info("Starting cardspend server")

	be := cli.InitBackend(context.Background(), logger, cfg)
	m := metrics.New()

	var publisher services.ReportPublisher
	amqpClient := cli.InitAMQP(logger.WithComponent(applog.ComponentAMQP), cfg)
	if amqpClient != nil {
		publisher = amqpClient
	}

	svc := services.NewAnalysisService(be.Sources, be.Catalog, publisher, m,
		cli.AnalysisConfig(cfg), logger.WithComponent(applog.ComponentAnalysis).Logger,
		services.WithBusinessRules(be.Business))

	ready := func(ctx context.Context) error {
		if be.Repository != nil {
			return be.Repository.Ping(ctx)
		}
		return nil
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc,
		apphttp.WithLogger(logger),
		apphttp.WithMetrics(m),
		apphttp.WithReadiness(ready),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute))

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", "error", err)
			}
		}
		if err := be.Close(); err != nil {
			logger.Warn("Failed to close backend", "error", err)
		}
	})

	logger.Info("Listening",
		"port", cfg.Port,
		"source", cfg.DataSource,
		"catalog", cfg.CatalogBackend,
		"reports_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
