package core

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Uncategorized is the reserved category for rows with a blank category.
const Uncategorized = "Uncategorized"

// DefaultDateLayout is MM/DD/YYYY. Month and day may be written with or
// without a leading zero.
const DefaultDateLayout = "1/2/2006"

type (
	// Date is a calendar date at midnight UTC.
	Date struct {
		time.Time
	}

	// Month identifies a calendar month.
	Month struct {
		Year  int
		Month time.Month
	}

	// Transaction is one normalized export row. Values are never modified
	// after ingestion.
	Transaction struct {
		Date        Date
		Amount      Money
		Card        string
		Category    string
		Description string

		// Source and Line locate the row in its export for diagnostics.
		Source string
		Line   int
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses value with an explicit layout.
func ParseDate(layout, value string) (Date, error) {
	t, err := time.ParseInLocation(layout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	y, m, d := t.Date()
	return NewDate(y, int(m), d), nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDate("2006-01-02", strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysSince returns the number of whole days from earlier to d.
func (d Date) DaysSince(earlier Date) int {
	return int(d.Sub(earlier.Time).Hours() / 24)
}

// MonthOf returns the calendar month of d.
func MonthOf(d Date) Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

// ParseMonth parses a YYYY-MM key.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) Compare(o Month) int {
	if c := cmp.Compare(m.Year, o.Year); c != 0 {
		return c
	}
	return cmp.Compare(m.Month, o.Month)
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// NormalizeCategory maps blank labels to Uncategorized.
func NormalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Uncategorized
	}
	return s
}

// MerchantKey collapses runs of whitespace in a description.
func MerchantKey(description string) string {
	return strings.Join(strings.Fields(description), " ")
}

// MatchesAnyPattern reports whether description contains any of patterns,
// ignoring case and surrounding whitespace of each pattern.
func MatchesAnyPattern(description string, patterns []string) bool {
	upper := strings.ToUpper(description)
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" && strings.Contains(upper, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}

func (t Transaction) Month() Month { return MonthOf(t.Date) }

func (t Transaction) Merchant() string { return MerchantKey(t.Description) }

// IsPurchase reports a positive amount.
func (t Transaction) IsPurchase() bool { return t.Amount.IsPositive() }

// IsRefund reports a negative amount (refund or credit).
func (t Transaction) IsRefund() bool { return t.Amount.IsNegative() }

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

// CompareTransactions defines the canonical snapshot order. Ties on every
// business field fall back to source position, so the order is total.
func CompareTransactions(a, b Transaction) int {
	if c := a.Date.Compare(b.Date.Time); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Card, b.Card); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Category, b.Category); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Description, b.Description); c != 0 {
		return c
	}
	if c := a.Amount.Cmp(b.Amount); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Source, b.Source); c != 0 {
		return c
	}
	return cmp.Compare(a.Line, b.Line)
}

// SortTransactions returns a canonically ordered copy of txns.
func SortTransactions(txns []Transaction) []Transaction {
	out := slices.Clone(txns)
	slices.SortFunc(out, CompareTransactions)
	return out
}
