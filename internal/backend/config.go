package backend

import (
	"fmt"

	"cardspend/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	sourceType := SourceType(appConfig.DataSource)
	if !sourceType.IsValid() {
		return Config{}, fmt.Errorf("invalid data source in config: %s", appConfig.DataSource)
	}
	catalogType := CatalogType(appConfig.CatalogBackend)
	if !catalogType.IsValid() {
		return Config{}, fmt.Errorf("invalid catalog backend in config: %s", appConfig.CatalogBackend)
	}

	return Config{
		Source: sourceType,

		DataDir:  appConfig.DataDir,
		DataGlob: appConfig.DataGlob,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetRange:         appConfig.GoogleSheetRange,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleOAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
		GoogleOAuthClientFile:    appConfig.GoogleOAuthClientFile,
		GoogleOAuthClientJSON:    appConfig.GoogleOAuthClientJSON,

		Catalog:      catalogType,
		CatalogFile:  appConfig.CatalogFile,
		SQLiteDBPath: appConfig.SQLiteDBPath,

		BusinessRulesFile: appConfig.BusinessRulesFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Source.IsValid() {
		return fmt.Errorf("invalid source type: %s", c.Source)
	}
	if !c.Catalog.IsValid() {
		return fmt.Errorf("invalid catalog type: %s", c.Catalog)
	}

	if c.Source.readsFiles() {
		if c.DataDir == "" {
			return fmt.Errorf("data directory is required for %s source", c.Source)
		}
		if c.DataGlob == "" {
			return fmt.Errorf("data glob is required for %s source", c.Source)
		}
	}
	if c.Source.readsSheets() {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for %s source", c.Source)
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" && c.GoogleOAuthTokenFile == "" {
			return fmt.Errorf("either GoogleServiceAccountFile, GoogleServiceAccountJSON or GoogleOAuthTokenFile must be provided for %s source", c.Source)
		}
	}

	switch c.Catalog {
	case FileCatalog:
		if c.CatalogFile == "" {
			return fmt.Errorf("catalog file is required for file catalog")
		}
	case SQLiteCatalog:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite catalog")
		}
	case NoCatalog:
		// Subscriptions are simply not reported
	}

	return nil
}
