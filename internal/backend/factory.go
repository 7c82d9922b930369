package backend

import (
	"context"
	"fmt"
	"log/slog"

	"cardspend/internal/business"
	"cardspend/internal/ingest"
	gsheet "cardspend/internal/sheets/google"
	"cardspend/internal/storage"
	"cardspend/internal/subscriptions"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var sheet ingest.Source
	if config.Source.readsSheets() {
		src, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      config.GoogleSpreadsheetID,
			Range:              config.GoogleSheetRange,
			ServiceAccountFile: config.GoogleServiceAccountFile,
			ServiceAccountJSON: config.GoogleServiceAccountJSON,
			OAuthTokenFile:     config.GoogleOAuthTokenFile,
			OAuthClientFile:    config.GoogleOAuthClientFile,
			OAuthClientJSON:    config.GoogleOAuthClientJSON,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets source: %w", err)
		}
		sheet = src
		f.logger.Info("Initialized Google Sheets source", "source", src.Name())
	}

	result := &BackendResult{
		Sources: f.sourceProvider(config, sheet),
	}

	switch config.Catalog {
	case FileCatalog:
		result.Catalog = subscriptions.NewFileCatalog(config.CatalogFile)
		f.logger.Info("Using file subscription catalog", "path", config.CatalogFile)
	case SQLiteCatalog:
		repo, err := storage.NewCatalogRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite catalog: %w", err)
		}
		result.Catalog = repo
		result.Repository = repo
		result.Cleanup = repo.Close
		f.logger.Info("Using SQLite subscription catalog", "db_path", config.SQLiteDBPath)
	case NoCatalog:
		f.logger.Info("No subscription catalog configured")
	}

	if config.BusinessRulesFile != "" {
		result.Business = business.NewFileRules(config.BusinessRulesFile)
		f.logger.Info("Using business expense rules", "path", config.BusinessRulesFile)
	}

	f.logger.Info("Initialized backend",
		"source", config.Source,
		"catalog", config.Catalog)

	return result, nil
}

// sourceProvider lists data files on every call so new exports are picked
// up without a restart.
func (f *DefaultFactory) sourceProvider(config Config, sheet ingest.Source) func(context.Context) ([]ingest.Source, error) {
	return func(ctx context.Context) ([]ingest.Source, error) {
		var sources []ingest.Source
		if config.Source.readsFiles() {
			files, err := ingest.DiscoverFiles(config.DataDir, config.DataGlob)
			if err != nil {
				return nil, err
			}
			if len(files) == 0 {
				f.logger.WarnContext(ctx, "No data files found", "dir", config.DataDir, "glob", config.DataGlob)
			}
			sources = append(sources, files...)
		}
		if sheet != nil {
			sources = append(sources, sheet)
		}
		return sources, nil
	}
}
