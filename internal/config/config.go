package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Data source kinds.
const (
	SourceFiles  = "files"
	SourceSheets = "sheets"
	SourceBoth   = "both"
)

// Catalog backends.
const (
	CatalogFile   = "file"
	CatalogSQLite = "sqlite"
	CatalogNone   = "none"
)

type Config struct {
	// HTTP Server
	Port      string
	LogLevel  string
	LogFormat string

	// Ingestion
	DataSource        string
	DataDir           string
	DataGlob          string
	DateLayout        string
	StrictSchema      bool
	IngestConcurrency int

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetRange         string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientFile    string
	GoogleOAuthClientJSON    string
	OAuthRedirectPort        string

	// Subscription catalog
	CatalogBackend string
	CatalogFile    string
	SQLiteDBPath   string

	// Business expense rules; empty disables the section
	BusinessRulesFile string

	// Recurring detection
	RecurringMinMonths    int
	RecurringMaxVariation float64

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Report worker
	ReportDir         string
	ShutdownTimeout   time.Duration
	WorkerMetricsAddr string

	// HTTP
	RateLimitPerMinute int
	AnalysisTimeout    time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:      getEnv("PORT", "8081"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataSource:        getEnv("DATA_SOURCE", SourceFiles),
		DataDir:           getEnv("DATA_DIR", "./data"),
		DataGlob:          getEnv("DATA_GLOB", "*.csv"),
		DateLayout:        getEnv("DATE_LAYOUT", "1/2/2006"),
		StrictSchema:      getEnvBool("STRICT_SCHEMA", false),
		IngestConcurrency: getEnvInt("INGEST_CONCURRENCY", 4),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetRange:         getEnv("GOOGLE_SHEET_RANGE", "Transactions!A:Z"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		OAuthRedirectPort:        getEnv("OAUTH_REDIRECT_PORT", "8085"),

		CatalogBackend: getEnv("CATALOG_BACKEND", CatalogFile),
		CatalogFile:    getEnv("CATALOG_FILE", "./configs/subscriptions.json"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/cardspend.db"),

		BusinessRulesFile: getEnv("BUSINESS_RULES_FILE", ""),

		RecurringMinMonths:    getEnvInt("RECURRING_MIN_MONTHS", 3),
		RecurringMaxVariation: getEnvFloat("RECURRING_MAX_VARIATION", 0.3),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cardspend"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "dashboard_reports"),

		ReportDir:         getEnv("REPORT_DIR", "./reports"),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		WorkerMetricsAddr: getEnv("WORKER_METRICS_ADDR", ""),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		AnalysisTimeout:    getEnvDuration("ANALYSIS_TIMEOUT", time.Minute),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if f := strings.ToLower(c.LogFormat); f != "" && f != "text" && f != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	// Validate data source
	validSources := []string{SourceFiles, SourceSheets, SourceBoth}
	if !slices.Contains(validSources, c.DataSource) {
		errors = append(errors, fmt.Sprintf("invalid data source '%s': must be one of %v", c.DataSource, validSources))
	}

	if c.UsesFiles() {
		if c.DataDir == "" {
			errors = append(errors, "data directory cannot be empty when reading files")
		}
		if c.DataGlob == "" {
			errors = append(errors, "data glob cannot be empty when reading files")
		}
	}

	if c.DateLayout == "" {
		errors = append(errors, "date layout cannot be empty")
	}

	if c.IngestConcurrency < 1 || c.IngestConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid ingest concurrency %d: must be between 1 and 64", c.IngestConcurrency))
	}

	// Validate Google Sheets configuration if sheets are read
	if c.UsesSheets() {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "GOOGLE_SPREADSHEET_ID is required when reading sheets")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasToken := c.GoogleOAuthTokenFile != ""
		if !hasFile && !hasJSON && !hasToken {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_OAUTH_TOKEN_FILE must be provided when reading sheets")
		}
		if hasToken && c.GoogleOAuthClientFile == "" && c.GoogleOAuthClientJSON == "" {
			errors = append(errors, "GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON is required with GOOGLE_OAUTH_TOKEN_FILE")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Validate catalog backend
	validCatalogs := []string{CatalogFile, CatalogSQLite, CatalogNone}
	if !slices.Contains(validCatalogs, c.CatalogBackend) {
		errors = append(errors, fmt.Sprintf("invalid catalog backend '%s': must be one of %v", c.CatalogBackend, validCatalogs))
	}
	if c.CatalogBackend == CatalogFile && c.CatalogFile == "" {
		errors = append(errors, "catalog file cannot be empty when using file catalog")
	}
	if c.CatalogBackend == CatalogSQLite && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite catalog")
	}

	// Validate recurring thresholds
	if c.RecurringMinMonths < 1 {
		errors = append(errors, fmt.Sprintf("invalid recurring min months %d: must be at least 1", c.RecurringMinMonths))
	}
	if c.RecurringMaxVariation < 0 || c.RecurringMaxVariation > 10 {
		errors = append(errors, fmt.Sprintf("invalid recurring max variation %v: must be between 0 and 10", c.RecurringMaxVariation))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.AnalysisTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid analysis timeout %v: must be at least 1 second", c.AnalysisTimeout))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// UsesFiles reports whether CSV files are part of the input.
func (c *Config) UsesFiles() bool {
	return c.DataSource == SourceFiles || c.DataSource == SourceBoth
}

// UsesSheets reports whether a Google Sheet is part of the input.
func (c *Config) UsesSheets() bool {
	return c.DataSource == SourceSheets || c.DataSource == SourceBoth
}

// AMQPEnabled reports whether report requests can be queued.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// ParseLevel maps LOG_LEVEL values to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", s)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
