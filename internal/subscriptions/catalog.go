// Package subscriptions reconciles a user-maintained catalog of expected
// subscriptions against actual card transactions.
package subscriptions

import (
	"context"
	"fmt"
	"strings"

	"cardspend/internal/core"
)

// Cycle is a billing cycle.
type Cycle string

const (
	Monthly  Cycle = "monthly"
	Annual   Cycle = "annual"
	Biannual Cycle = "biannual"
)

// ParseCycle is case-insensitive; "yearly" is accepted for annual.
func ParseCycle(s string) (Cycle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly":
		return Monthly, nil
	case "annual", "yearly":
		return Annual, nil
	case "biannual":
		return Biannual, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrInvalidCycle, s)
}

// Entry is one expected subscription.
type Entry struct {
	Name           string     `json:"name"`
	Patterns       []string   `json:"patterns"`
	ExpectedAmount core.Money `json:"expectedAmount"`
	Cycle          Cycle      `json:"cycle"`
	Tolerance      core.Money `json:"tolerance"`
	Category       string     `json:"category,omitempty"`
	Note           string     `json:"note,omitempty"`
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return core.ErrEmptyEntryName
	}
	if len(e.Patterns) == 0 {
		return fmt.Errorf("%s: %w", e.Name, core.ErrEmptyPattern)
	}
	for _, p := range e.Patterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%s: %w", e.Name, core.ErrEmptyPattern)
		}
	}
	if _, err := GetCycleChecker(e.Cycle); err != nil {
		return fmt.Errorf("%s: %w", e.Name, err)
	}
	if e.Tolerance.IsNegative() {
		return fmt.Errorf("%s: %w", e.Name, core.ErrNegativeTolerance)
	}
	if e.ExpectedAmount.IsNegative() {
		return fmt.Errorf("%s: %w: expected amount %s", e.Name, core.ErrInvalidAmount, e.ExpectedAmount)
	}
	return nil
}

// Matches reports whether description contains any pattern,
// case-insensitively.
func (e Entry) Matches(description string) bool {
	return core.MatchesAnyPattern(description, e.Patterns)
}

// ExpectedMonthly spreads the expected amount over months.
func (e Entry) ExpectedMonthly() core.Money {
	checker, err := GetCycleChecker(e.Cycle)
	if err != nil {
		return core.Money{}
	}
	return checker.MonthlyEquivalent(e.ExpectedAmount)
}

// Catalog is an ordered list of entries. Order matters: when a transaction
// matches several entries, the first one wins.
type Catalog []Entry

// Validate checks every entry and rejects duplicate names.
func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for _, e := range c {
		if err := e.Validate(); err != nil {
			return err
		}
		key := strings.ToLower(strings.TrimSpace(e.Name))
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", core.ErrDuplicateEntryName, e.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Source loads a catalog from wherever the user keeps it.
type Source interface {
	Load(ctx context.Context) (Catalog, error)
}

// Static serves a fixed catalog.
type Static Catalog

func (s Static) Load(context.Context) (Catalog, error) {
	return Catalog(s), nil
}
