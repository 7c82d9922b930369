package backend

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cardspend/internal/config"
	"cardspend/internal/core"
	"cardspend/internal/subscriptions"
)

func quietFactory() Factory {
	return NewFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataSource:     config.SourceFiles,
		DataDir:        "./data",
		DataGlob:       "*.csv",
		CatalogBackend: config.CatalogSQLite,
		SQLiteDBPath:   "./data/x.db",

		BusinessRulesFile: "./configs/business.json",
	}
	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if got.Source != FilesSource || got.Catalog != SQLiteCatalog || got.SQLiteDBPath != "./data/x.db" || got.BusinessRulesFile != "./configs/business.json" {
		t.Errorf("FromAppConfig() = %+v", got)
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	cfg.DataSource = "ftp"
	if _, err := FromAppConfig(cfg); err == nil {
		t.Error("expected error for unknown data source")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"files ok", Config{Source: FilesSource, DataDir: "d", DataGlob: "*.csv", Catalog: NoCatalog}, ""},
		{"missing dir", Config{Source: FilesSource, DataGlob: "*.csv", Catalog: NoCatalog}, "data directory"},
		{"sheets without id", Config{Source: SheetsSource, GoogleServiceAccountJSON: "{}", Catalog: NoCatalog}, "Spreadsheet ID"},
		{"sheets without credentials", Config{Source: BothSources, DataDir: "d", DataGlob: "*", GoogleSpreadsheetID: "id", Catalog: NoCatalog}, "GoogleServiceAccount"},
		{"file catalog without path", Config{Source: FilesSource, DataDir: "d", DataGlob: "*", Catalog: FileCatalog}, "catalog file"},
		{"sqlite without path", Config{Source: FilesSource, DataDir: "d", DataGlob: "*", Catalog: SQLiteCatalog}, "SQLite"},
		{"bad catalog", Config{Source: FilesSource, DataDir: "d", DataGlob: "*", Catalog: "redis"}, "invalid catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend_FilesAndFileCatalog(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "subscriptions.json")
	catalogJSON := `[{"name":"Netflix","patterns":["NETFLIX"],"expectedAmount":15.49,"cycle":"monthly","tolerance":0.5}]`
	if err := os.WriteFile(catalogPath, []byte(catalogJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := quietFactory().CreateBackend(context.Background(), Config{
		Source:      FilesSource,
		DataDir:     dir,
		DataGlob:    "*.csv",
		Catalog:     FileCatalog,
		CatalogFile: catalogPath,
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer result.Close()

	sources, err := result.Sources(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 0 {
		t.Errorf("expected no sources yet, got %d", len(sources))
	}

	// Files written after start are picked up by the next listing.
	if err := os.WriteFile(filepath.Join(dir, "jan.csv"), []byte("Date,Amount,Card,Category,Description\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sources, err = result.Sources(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 || filepath.Base(sources[0].Name()) != "jan.csv" {
		t.Errorf("sources = %v", sources)
	}

	cat, err := result.Catalog.Load(context.Background())
	if err != nil {
		t.Fatalf("catalog load: %v", err)
	}
	if len(cat) != 1 || cat[0].Name != "Netflix" {
		t.Errorf("catalog = %+v", cat)
	}
	if result.Repository != nil {
		t.Error("file catalog must not open a repository")
	}
}

func TestCreateBackend_SQLiteCatalog(t *testing.T) {
	dir := t.TempDir()
	result, err := quietFactory().CreateBackend(context.Background(), Config{
		Source:       FilesSource,
		DataDir:      dir,
		DataGlob:     "*.csv",
		Catalog:      SQLiteCatalog,
		SQLiteDBPath: filepath.Join(dir, "db", "cardspend.db"),
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if result.Repository == nil {
		t.Fatal("sqlite catalog should expose its repository")
	}

	entry := subscriptions.Entry{Name: "Gym", Patterns: []string{"GYM"}, ExpectedAmount: core.MustParseMoney("30"), Cycle: subscriptions.Monthly, Tolerance: core.MustParseMoney("1")}
	if err := result.Repository.Add(context.Background(), entry); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	cat, err := result.Catalog.Load(context.Background())
	if err != nil || len(cat) != 1 {
		t.Fatalf("catalog = %+v, err = %v", cat, err)
	}
	if err := result.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestCreateBackend_NoCatalog(t *testing.T) {
	result, err := quietFactory().CreateBackend(context.Background(), Config{
		Source:   FilesSource,
		DataDir:  t.TempDir(),
		DataGlob: "*.csv",
		Catalog:  NoCatalog,
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if result.Catalog != nil || result.Cleanup != nil || result.Business != nil {
		t.Errorf("no catalog expected, got %+v", result)
	}
	if err := result.Close(); err != nil {
		t.Error(err)
	}
}

func TestCreateBackend_BusinessRules(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "business.json")
	rules := `[{"service":"Hosting Provider","category":"Infrastructure","patterns":["EXAMPLE HOSTING"]}]`
	if err := os.WriteFile(rulesPath, []byte(rules), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := quietFactory().CreateBackend(context.Background(), Config{
		Source:            FilesSource,
		DataDir:           t.TempDir(),
		DataGlob:          "*.csv",
		Catalog:           NoCatalog,
		BusinessRulesFile: rulesPath,
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if result.Business == nil {
		t.Fatal("expected a business rules source")
	}
	got, err := result.Business.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 || got[0].Service != "Hosting Provider" || got[0].Category != "Infrastructure" {
		t.Errorf("Load() = %+v", got)
	}
}
