package backend

import (
	"context"

	"cardspend/internal/business"
	"cardspend/internal/services"
	"cardspend/internal/storage"
	"cardspend/internal/subscriptions"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds what the analysis pipeline reads from: the
// transaction sources and the subscription catalog.
type BackendResult struct {
	Sources services.SourceProvider
	// Catalog is nil when no catalog is configured.
	Catalog subscriptions.Source
	// Repository is set for the sqlite catalog so commands can edit it.
	Repository *storage.CatalogRepository
	// Business is nil when no business rules file is configured.
	Business business.Source
	Cleanup  CleanupFunc
}

// Close runs Cleanup if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Source SourceType

	// Files
	DataDir  string
	DataGlob string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetRange         string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientFile    string
	GoogleOAuthClientJSON    string

	// Catalog
	Catalog      CatalogType
	CatalogFile  string
	SQLiteDBPath string

	// Optional business-expense rules
	BusinessRulesFile string
}

// SourceType selects where transactions come from.
type SourceType string

const (
	FilesSource  SourceType = "files"
	SheetsSource SourceType = "sheets"
	BothSources  SourceType = "both"
)

// String implements fmt.Stringer
func (st SourceType) String() string {
	return string(st)
}

// IsValid returns true if the source type is valid
func (st SourceType) IsValid() bool {
	switch st {
	case FilesSource, SheetsSource, BothSources:
		return true
	default:
		return false
	}
}

func (st SourceType) readsFiles() bool  { return st == FilesSource || st == BothSources }
func (st SourceType) readsSheets() bool { return st == SheetsSource || st == BothSources }

// CatalogType selects where the subscription catalog lives.
type CatalogType string

const (
	FileCatalog   CatalogType = "file"
	SQLiteCatalog CatalogType = "sqlite"
	NoCatalog     CatalogType = "none"
)

func (ct CatalogType) String() string {
	return string(ct)
}

func (ct CatalogType) IsValid() bool {
	switch ct {
	case FileCatalog, SQLiteCatalog, NoCatalog:
		return true
	default:
		return false
	}
}
