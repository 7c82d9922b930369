// Package core provides money parsing and handling utilities.
//
// Amounts are kept as arbitrary-precision decimals so that sums are exact
// and do not depend on the order rows were read in.
package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed decimal amount in the export's (single) currency.
// The zero value is a valid zero amount.
type Money struct {
	d decimal.Decimal
}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d}
}

// MoneyFromCents builds an amount from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// MustParseMoney is ParseAmount for literals known to be valid.
func MustParseMoney(s string) Money {
	m, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseAmount converts a raw export cell to Money.
//
// It accepts optional surrounding quotes, a leading currency sign, thousands
// separators and accounting-style parentheses for negatives:
//
//	ParseAmount("12.34")       -> 12.34
//	ParseAmount("\"-29.99\"")  -> -29.99
//	ParseAmount("$1,204.50")   -> 1204.50
//	ParseAmount("(15.00)")     -> -15.00
//
// Blank, non-numeric or exponent input returns ErrInvalidAmount; it is never
// read as zero.
func ParseAmount(raw string) (Money, error) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign, s = s[:1], s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	// Exports never use exponents, and "1e200000" would expand to a
	// 200000-digit amount.
	if s == "" || strings.ContainsAny(s, "eE") {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	d, err := decimal.NewFromString(sign + s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if neg {
		d = d.Neg()
	}
	return Money{d: d}, nil
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

func (m Money) Neg() Money { return Money{d: m.d.Neg()} }

func (m Money) Abs() Money { return Money{d: m.d.Abs()} }

// MulInt multiplies by an integer factor.
func (m Money) MulInt(n int64) Money { return Money{d: m.d.Mul(decimal.NewFromInt(n))} }

// MulFloat multiplies by a ratio (projections, velocity).
func (m Money) MulFloat(f float64) Money { return Money{d: m.d.Mul(decimal.NewFromFloat(f))} }

// DivInt divides by n. Division by zero returns zero; callers guard the
// cases where that would be misleading.
func (m Money) DivInt(n int) Money {
	if n == 0 {
		return Money{}
	}
	return Money{d: m.d.Div(decimal.NewFromInt(int64(n)))}
}

// Ratio returns m/o as a float, or 0 when o is zero.
func (m Money) Ratio(o Money) float64 {
	if o.d.IsZero() {
		return 0
	}
	f, _ := m.d.Div(o.d).Float64()
	return f
}

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) Sign() int { return m.d.Sign() }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) IsPositive() bool { return m.d.IsPositive() }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Float64 is for statistics and display only; never sum floats.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// Round rounds to the given number of decimal places.
func (m Money) Round(places int32) Money { return Money{d: m.d.Round(places)} }

// String renders the amount with two decimal places.
func (m Money) String() string {
	return m.d.StringFixed(2)
}

// MarshalJSON writes the amount as a bare JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or a quoted amount.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	v, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Sum adds amounts; the result does not depend on their order.
func Sum(amounts ...Money) Money {
	total := Money{}
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
