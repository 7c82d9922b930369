package aggregate

import (
	"fmt"
	"slices"
	"time"

	"cardspend/internal/core"
)

// Filter restricts a snapshot to a date range, calendar period or set of
// categories. Zero fields do not filter.
type Filter struct {
	From       core.Date
	To         core.Date
	Year       int
	Month      time.Month
	Categories []string
}

// IsZero reports whether the filter keeps everything.
func (f Filter) IsZero() bool {
	return f.From.IsZero() && f.To.IsZero() && f.Year == 0 && f.Month == 0 && len(f.Categories) == 0
}

// Validate rejects a month without a year and out-of-range values.
func (f Filter) Validate() error {
	if f.Month != 0 && f.Year == 0 {
		return fmt.Errorf("month filter requires a year")
	}
	if f.Month < 0 || f.Month > 12 {
		return fmt.Errorf("invalid month: %d", f.Month)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return fmt.Errorf("invalid range: %s is before %s", f.To, f.From)
	}
	return nil
}

func (f Filter) Match(tx core.Transaction) bool {
	if !f.From.IsZero() && tx.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && tx.Date.After(f.To.Time) {
		return false
	}
	if f.Year != 0 && tx.Date.Year() != f.Year {
		return false
	}
	if f.Month != 0 && tx.Date.Month() != f.Month {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, tx.Category) {
		return false
	}
	return true
}

// Apply returns the matching transactions in a new slice, preserving order.
func (f Filter) Apply(txns []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txns))
	for _, tx := range txns {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}
