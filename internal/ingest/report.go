package ingest

import (
	"cmp"
	"errors"
	"slices"

	"cardspend/internal/core"
)

// DefaultMaxRowErrors caps the row errors kept per source.
const DefaultMaxRowErrors = 20

// RowIssue is the serialisable form of a RowParseError.
type RowIssue struct {
	Line   int    `json:"line"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// SourceReport counts what happened to the rows of one source.
type SourceReport struct {
	Source              string     `json:"source"`
	RowsRead            int        `json:"rowsRead"`
	RowsAccepted        int        `json:"rowsAccepted"`
	UnparsedAmounts     int        `json:"unparsedAmounts"`
	UnparsedDates       int        `json:"unparsedDates"`
	MissingDescriptions int        `json:"missingDescriptions"`
	SkippedCredits      int        `json:"skippedCredits"`
	BlankRows           int        `json:"blankRows"`
	Errors              []RowIssue `json:"errors,omitempty"`
	// Failed holds the reason the whole source was skipped, if it was.
	Failed string `json:"failed,omitempty"`
}

func (r *SourceReport) recordRowError(err *core.RowParseError, limit int) {
	if len(r.Errors) >= limit {
		return
	}
	reason := ""
	if err.Err != nil {
		reason = err.Err.Error()
	}
	r.Errors = append(r.Errors, RowIssue{Line: err.Line, Field: err.Field, Value: err.Value, Reason: reason})
}

// Report summarises a whole load. RowsIngested is exposed so that
// duplicate exports, which are not deduplicated, show up as doubled counts.
type Report struct {
	Sources             []SourceReport `json:"sources"`
	RowsRead            int            `json:"rowsRead"`
	RowsIngested        int            `json:"rowsIngested"`
	UnparsedAmounts     int            `json:"unparsedAmounts"`
	UnparsedDates       int            `json:"unparsedDates"`
	MissingDescriptions int            `json:"missingDescriptions"`
	SkippedCredits      int            `json:"skippedCredits"`
	SchemaErrors        []string       `json:"schemaErrors,omitempty"`
	FailedSources       int            `json:"failedSources"`
}

// Rejected is the number of rows excluded for parse problems.
func (r Report) Rejected() int {
	return r.UnparsedAmounts + r.UnparsedDates + r.MissingDescriptions
}

func buildReport(sources []SourceReport, failures []error) Report {
	sources = slices.Clone(sources)
	slices.SortFunc(sources, func(a, b SourceReport) int { return cmp.Compare(a.Source, b.Source) })

	rep := Report{Sources: sources}
	for _, s := range sources {
		rep.RowsRead += s.RowsRead
		rep.RowsIngested += s.RowsAccepted
		rep.UnparsedAmounts += s.UnparsedAmounts
		rep.UnparsedDates += s.UnparsedDates
		rep.MissingDescriptions += s.MissingDescriptions
		rep.SkippedCredits += s.SkippedCredits
		if s.Failed != "" {
			rep.FailedSources++
		}
	}
	for _, err := range failures {
		var se *core.SchemaError
		if errors.As(err, &se) {
			rep.SchemaErrors = append(rep.SchemaErrors, se.Error())
		}
	}
	slices.Sort(rep.SchemaErrors)
	return rep
}
