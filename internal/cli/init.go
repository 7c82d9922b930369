// Package cli provides common CLI initialization utilities shared by
// cmd/cardspend, cmd/cardspend-server and cmd/report-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cardspend/internal/amqp"
	"cardspend/internal/backend"
	"cardspend/internal/config"
	"cardspend/internal/ingest"
	applog "cardspend/internal/log"
	"cardspend/internal/recurring"
	"cardspend/internal/services"
)

// SetupLogger initializes structured logging from the loaded config and
// sets it as the default logger. Logs go to stderr so commands can write
// documents to stdout. Unknown levels fall back to info.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	lvl, err := config.ParseLevel(cfg.LogLevel)
	logger := applog.New(applog.Config{
		Level:     lvl,
		Component: component,
		Format:    cfg.LogFormat,
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Invalid log level, using info", "error", err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration, sets up logging from it and
// validates it. Exits the process on validation failure.
func LoadAndValidateConfig(component string) (*config.Config, *applog.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitBackend builds the transaction sources and subscription catalog.
// Returns the backend or exits the process on failure.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err,
			"source", backendCfg.Source,
			"catalog", backendCfg.Catalog)
		os.Exit(1)
	}
	return result
}

// AnalysisConfig maps the loaded configuration onto the pipeline knobs.
func AnalysisConfig(cfg *config.Config) services.AnalysisConfig {
	ingestOpts := ingest.DefaultOptions()
	ingestOpts.DateLayout = cfg.DateLayout
	ingestOpts.Concurrency = cfg.IngestConcurrency
	ingestOpts.Strict = cfg.StrictSchema

	return services.AnalysisConfig{
		Ingest: ingestOpts,
		Recurring: recurring.Params{
			MinMonths:    cfg.RecurringMinMonths,
			MaxVariation: cfg.RecurringMaxVariation,
		},
		LoadTimeout: cfg.AnalysisTimeout,
	}
}

// InitAMQP connects to the broker when one is configured. A nil client
// means report requests are disabled; connection failures are logged and
// tolerated.
func InitAMQP(logger *applog.Logger, cfg *config.Config) *amqp.Client {
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP disabled, report requests will be rejected")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, report requests will be rejected", "error", err)
		return nil
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
