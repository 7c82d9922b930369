package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyData is returned when no usable transactions remain after
	// ingestion or filtering. Callers must report "no data available"
	// instead of emitting zero-filled figures.
	ErrEmptyData = errors.New("no data available")

	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyDescription   = errors.New("empty description")
	ErrInvalidCycle       = errors.New("invalid billing cycle")
	ErrEmptyPattern       = errors.New("empty match pattern")
	ErrNegativeTolerance  = errors.New("tolerance cannot be negative")
	ErrEmptyEntryName     = errors.New("empty subscription name")
	ErrDuplicateEntryName = errors.New("duplicate subscription name")
	ErrEmptyServiceName   = errors.New("empty business service name")
	ErrDuplicateService   = errors.New("duplicate business service")
)

// SchemaError reports a source whose header row has no alias for a
// required canonical field. It is fatal for that source only.
type SchemaError struct {
	Source  string
	Field   string
	Headers []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: no column for required field %q (headers: %s)",
		e.Source, e.Field, strings.Join(e.Headers, ", "))
}

// RowParseError describes a single row excluded from the snapshot.
type RowParseError struct {
	Source string
	Line   int
	Field  string
	Value  string
	Err    error
}

func (e *RowParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s %q: %v", e.Source, e.Line, e.Field, e.Value, e.Err)
}

func (e *RowParseError) Unwrap() error {
	return e.Err
}
