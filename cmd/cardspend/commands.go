package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cardspend/internal/backend"
	"cardspend/internal/cli"
	"cardspend/internal/config"
	"cardspend/internal/core"
	applog "cardspend/internal/log"
	"cardspend/internal/services"
	"cardspend/internal/storage"
	"cardspend/internal/subscriptions"
)

func runAnalyze(ctx context.Context, cfg *config.Config, logger *applog.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	year := fs.Int("year", 0, "restrict to one year")
	month := fs.Int("month", 0, "restrict to one month of -year (1-12)")
	sort := fs.String("sort", "amount", "order of recurring and subscription lists: amount or name")
	out := fs.String("out", "", "write the document to FILE instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := services.Request{Year: *year, Month: *month, Sort: *sort}
	if err := req.Validate(); err != nil {
		return err
	}

	be, err := createBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	svc := services.NewAnalysisService(be.Sources, be.Catalog, nil, nil,
		cli.AnalysisConfig(cfg), logger.WithComponent(applog.ComponentAnalysis).Logger,
		services.WithBusinessRules(be.Business))

	doc, err := svc.Dashboard(ctx, req)
	if err != nil {
		return err
	}

	logger.Info("Analysis complete",
		applog.FieldTransactions, doc.Totals.TransactionCount,
		applog.FieldRecurring, len(doc.Recurring),
		applog.FieldSubscriptions, len(doc.Subscriptions))

	return writeDocument(*out, stdout, doc)
}

func runCatalogImport(ctx context.Context, cfg *config.Config, logger *applog.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("catalog import takes exactly one FILE argument")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	cat, err := subscriptions.DecodeCatalog(f)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", args[0], err)
	}

	repo, err := storage.NewCatalogRepository(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.Replace(ctx, cat); err != nil {
		return err
	}
	logger.Info("Catalog imported",
		applog.FieldOperation, applog.OpImport,
		"entries", len(cat),
		"db_path", cfg.SQLiteDBPath)
	return nil
}

func runCatalogExport(ctx context.Context, cfg *config.Config, logger *applog.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("catalog export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	out := fs.String("out", "", "write the catalog to FILE instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	be, err := createBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	cat := subscriptions.Catalog{}
	if be.Catalog != nil {
		if cat, err = be.Catalog.Load(ctx); err != nil {
			return err
		}
	}

	if *out == "" {
		return subscriptions.EncodeCatalog(stdout, cat)
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	if err := subscriptions.EncodeCatalog(f, cat); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// patternList collects a repeated -pattern flag.
type patternList []string

func (p *patternList) String() string { return strings.Join(*p, ",") }

func (p *patternList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func runCatalogAdd(ctx context.Context, cfg *config.Config, logger *applog.Logger, args []string) error {
	fs := flag.NewFlagSet("catalog add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var patterns patternList
	fs.Var(&patterns, "pattern", "description substring; repeat for several")
	name := fs.String("name", "", "subscription name")
	amount := fs.String("amount", "", "expected charge")
	cycle := fs.String("cycle", string(subscriptions.Monthly), "monthly, annual or biannual")
	tolerance := fs.String("tolerance", "0", "allowed difference from the expected charge")
	category := fs.String("category", "", "optional grouping label")
	note := fs.String("note", "", "optional note")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("catalog add takes flags only, got %q", fs.Args())
	}

	e := subscriptions.Entry{
		Name:     strings.TrimSpace(*name),
		Patterns: patterns,
		Category: *category,
		Note:     *note,
	}
	var err error
	if e.ExpectedAmount, err = core.ParseAmount(*amount); err != nil {
		return fmt.Errorf("-amount: %w", err)
	}
	if e.Tolerance, err = core.ParseAmount(*tolerance); err != nil {
		return fmt.Errorf("-tolerance: %w", err)
	}
	if e.Cycle, err = subscriptions.ParseCycle(*cycle); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}

	repo, err := storage.NewCatalogRepository(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.Add(ctx, e); err != nil {
		return err
	}
	logger.Info("Catalog entry added",
		applog.FieldOperation, applog.OpImport,
		"name", e.Name,
		"db_path", cfg.SQLiteDBPath)
	return nil
}

func runCatalogRemove(ctx context.Context, cfg *config.Config, logger *applog.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("catalog remove takes exactly one NAME argument")
	}

	repo, err := storage.NewCatalogRepository(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	removed, err := repo.Delete(ctx, args[0])
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no catalog entry named %q", args[0])
	}
	logger.Info("Catalog entry removed", "name", args[0], "db_path", cfg.SQLiteDBPath)
	return nil
}

func createBackend(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*backend.BackendResult, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
}

// writeDocument encodes v as indented JSON. A file is written through a
// temporary sibling and renamed into place.
func writeDocument(path string, stdout io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err := stdout.Write(data)
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".cardspend-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
