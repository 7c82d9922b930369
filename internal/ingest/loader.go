package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"cardspend/internal/core"
)

// Snapshot is the canonical, sorted transaction sequence of one load plus
// its diagnostics. Transactions must be treated as read-only.
type Snapshot struct {
	Transactions []core.Transaction
	Report       Report
}

// Loader reads sources concurrently and merges them into a Snapshot.
type Loader struct {
	opts   Options
	logger *slog.Logger
}

func NewLoader(opts Options, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{opts: opts.withDefaults(), logger: logger}
}

type sourceResult struct {
	txns   []core.Transaction
	report SourceReport
	err    error
}

// Load reads every source, normalises it and merges the results.
//
// A source that cannot be read or mapped is skipped and reported. The load
// fails when every source failed (the joined source errors are returned),
// when Strict is set and any source has a SchemaError, or when no usable
// rows remain (core.ErrEmptyData).
func (l *Loader) Load(ctx context.Context, sources ...Source) (Snapshot, error) {
	if len(sources) == 0 {
		return Snapshot{}, fmt.Errorf("no sources configured: %w", core.ErrEmptyData)
	}

	results := make([]sourceResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = l.readOne(gctx, src)
			if errors.Is(results[i].err, context.Canceled) || errors.Is(results[i].err, context.DeadlineExceeded) {
				return results[i].err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("load sources: %w", err)
	}

	var (
		all      []core.Transaction
		reports  = make([]SourceReport, 0, len(results))
		failures []error
	)
	for _, r := range results {
		reports = append(reports, r.report)
		if r.err != nil {
			failures = append(failures, r.err)
			continue
		}
		all = append(all, r.txns...)
	}
	report := buildReport(reports, failures)

	if l.opts.Strict {
		var schemaErrs []error
		for _, err := range failures {
			var se *core.SchemaError
			if errors.As(err, &se) {
				schemaErrs = append(schemaErrs, err)
			}
		}
		if len(schemaErrs) > 0 {
			return Snapshot{Report: report}, errors.Join(schemaErrs...)
		}
	}
	if len(failures) == len(sources) {
		return Snapshot{Report: report}, errors.Join(failures...)
	}
	if len(all) == 0 {
		return Snapshot{Report: report}, fmt.Errorf("%d rows read, none usable: %w", report.RowsRead, core.ErrEmptyData)
	}

	l.logger.InfoContext(ctx, "Transactions loaded",
		"sources", len(sources),
		"failed_sources", report.FailedSources,
		"rows_read", report.RowsRead,
		"rows_ingested", report.RowsIngested,
		"unparsed_amounts", report.UnparsedAmounts,
		"unparsed_dates", report.UnparsedDates,
		"skipped_credits", report.SkippedCredits)

	return Snapshot{Transactions: core.SortTransactions(all), Report: report}, nil
}

func (l *Loader) readOne(ctx context.Context, src Source) sourceResult {
	table, err := src.Read(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "Source skipped", "source", src.Name(), "error", err)
		return sourceResult{report: SourceReport{Source: src.Name(), Failed: err.Error()}, err: err}
	}
	if table.Name == "" {
		table.Name = src.Name()
	}
	txns, rep, err := Normalize(table, l.opts)
	if err != nil {
		l.logger.WarnContext(ctx, "Source skipped", "source", table.Name, "error", err)
		return sourceResult{report: rep, err: err}
	}
	if rejected := rep.UnparsedAmounts + rep.UnparsedDates + rep.MissingDescriptions; rejected > 0 {
		l.logger.WarnContext(ctx, "Rows excluded from source",
			"source", table.Name,
			"unparsed_amounts", rep.UnparsedAmounts,
			"unparsed_dates", rep.UnparsedDates,
			"missing_descriptions", rep.MissingDescriptions)
	}
	return sourceResult{txns: txns, report: rep}
}
