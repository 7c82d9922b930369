package ingest

import (
	"errors"
	"strings"

	"cardspend/internal/core"
)

// Options controls how tables are mapped onto transactions.
type Options struct {
	Aliases AliasTable
	// DateLayout is the Go time layout used unless the matched date header
	// has an entry in HeaderLayouts.
	DateLayout    string
	HeaderLayouts map[string]string
	// Concurrency bounds parallel source reads.
	Concurrency int
	// Strict turns any SchemaError into a failure of the whole load.
	Strict       bool
	MaxRowErrors int
}

func DefaultOptions() Options {
	return Options{
		Aliases:       DefaultAliases(),
		DateLayout:    core.DefaultDateLayout,
		HeaderLayouts: DefaultHeaderLayouts(),
		Concurrency:   4,
		MaxRowErrors:  DefaultMaxRowErrors,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Aliases == nil {
		o.Aliases = d.Aliases
	}
	if o.DateLayout == "" {
		o.DateLayout = d.DateLayout
	}
	if o.HeaderLayouts == nil {
		o.HeaderLayouts = d.HeaderLayouts
	}
	if o.Concurrency < 1 {
		o.Concurrency = d.Concurrency
	}
	if o.MaxRowErrors < 1 {
		o.MaxRowErrors = d.MaxRowErrors
	}
	return o
}

func (o Options) dateLayoutFor(header string) string {
	key := normalizeHeader(header)
	for h, layout := range o.HeaderLayouts {
		if normalizeHeader(h) == key {
			return layout
		}
	}
	return o.DateLayout
}

var errBlankDescription = errors.New("blank description")

// Normalize maps one table onto canonical transactions. Bad rows are
// dropped and counted in the returned report; only a SchemaError is
// returned as an error.
func Normalize(t Table, opts Options) ([]core.Transaction, SourceReport, error) {
	opts = opts.withDefaults()
	rep := SourceReport{Source: t.Name, RowsRead: len(t.Rows)}

	cols, err := opts.Aliases.Resolve(t.Name, t.Header)
	if err != nil {
		rep.Failed = err.Error()
		return nil, rep, err
	}

	layout := opts.dateLayoutFor(cols.Header(FieldDate))
	idxDate := cols.Index(FieldDate)
	idxAmount := cols.Index(FieldAmount)
	idxCard := cols.Index(FieldCard)
	idxCategory := cols.Index(FieldCategory)
	idxDesc := cols.Index(FieldDescription)
	idxCredit := cols.Index(FieldCredit)

	out := make([]core.Transaction, 0, len(t.Rows))
	for _, row := range t.Rows {
		if isBlank(row.Values) {
			rep.BlankRows++
			continue
		}
		cell := func(i int) string {
			if i < 0 || i >= len(row.Values) {
				return ""
			}
			return strings.TrimSpace(row.Values[i])
		}

		rawAmount := cell(idxAmount)
		if rawAmount == "" && cell(idxCredit) != "" {
			rep.SkippedCredits++
			continue
		}

		rawDate := cell(idxDate)
		date, err := core.ParseDate(layout, rawDate)
		if err != nil {
			rep.UnparsedDates++
			rep.recordRowError(&core.RowParseError{Source: t.Name, Line: row.Line, Field: string(FieldDate), Value: rawDate, Err: err}, opts.MaxRowErrors)
			continue
		}

		amount, err := core.ParseAmount(rawAmount)
		if err != nil {
			rep.UnparsedAmounts++
			rep.recordRowError(&core.RowParseError{Source: t.Name, Line: row.Line, Field: string(FieldAmount), Value: rawAmount, Err: err}, opts.MaxRowErrors)
			continue
		}

		desc := cell(idxDesc)
		if desc == "" {
			rep.MissingDescriptions++
			rep.recordRowError(&core.RowParseError{Source: t.Name, Line: row.Line, Field: string(FieldDescription), Err: errBlankDescription}, opts.MaxRowErrors)
			continue
		}

		out = append(out, core.Transaction{
			Date:        date,
			Amount:      amount,
			Card:        cell(idxCard),
			Category:    core.NormalizeCategory(cell(idxCategory)),
			Description: desc,
			Source:      t.Name,
			Line:        row.Line,
		})
	}
	rep.RowsAccepted = len(out)
	return out, rep, nil
}

func isBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
