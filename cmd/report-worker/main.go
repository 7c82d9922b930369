package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cardspend/internal/amqp"
	"cardspend/internal/cli"
	applog "cardspend/internal/log"
	"cardspend/internal/metrics"
	"cardspend/internal/services"
	"cardspend/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)
	logger.Info("Starting report worker")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the report worker")
		os.Exit(1)
	}

	be := cli.InitBackend(context.Background(), logger, cfg)
	defer be.Close()

	m := metrics.New()
	svc := services.NewAnalysisService(be.Sources, be.Catalog, nil, m,
		cli.AnalysisConfig(cfg), logger.WithComponent(applog.ComponentAnalysis).Logger,
		services.WithBusinessRules(be.Business))

	reportWorker, err := worker.NewReportWorker(svc, cfg.ReportDir, m)
	if err != nil {
		logger.Error("Failed to initialize report worker", "error", err, "dir", cfg.ReportDir)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.WorkerMetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:              cfg.WorkerMetricsAddr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", "error", err, "addr", cfg.WorkerMetricsAddr)
			}
		}()
		logger.Info("Serving metrics", "addr", cfg.WorkerMetricsAddr)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if metricsServer != nil {
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Warn("Metrics server shutdown error", "error", err)
			}
		}
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", "error", err)
		}
	})

	logger.Info("Consuming report requests",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"report_dir", cfg.ReportDir)
	if err := amqpClient.ConsumeReportRequests(ctx, reportWorker.HandleReportRequest); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Report consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Report worker stopped")
}
