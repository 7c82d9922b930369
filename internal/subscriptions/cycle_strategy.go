// This file implements the Strategy Pattern for billing cycles.
// Each cycle has its own checker that knows its renewal interval and how to
// spread an amount over months.

package subscriptions

import (
	"fmt"

	"cardspend/internal/core"
)

// CycleChecker is the strategy interface for a billing cycle.
type CycleChecker interface {
	// Interval is the longest expected gap, in days, between two charges.
	Interval() int
	// IsMissed returns true if more than Interval days passed between the
	// last charge and asOf without a renewal.
	IsMissed(lastCharge, asOf core.Date) bool
	// MonthlyEquivalent spreads one charge over the months it covers.
	MonthlyEquivalent(amount core.Money) core.Money
}

// MonthlyChecker implements CycleChecker for monthly subscriptions.
type MonthlyChecker struct{}

func (MonthlyChecker) Interval() int { return 31 }

func (c MonthlyChecker) IsMissed(lastCharge, asOf core.Date) bool {
	return asOf.DaysSince(lastCharge) > c.Interval()
}

func (MonthlyChecker) MonthlyEquivalent(amount core.Money) core.Money { return amount }

// AnnualChecker implements CycleChecker for yearly subscriptions.
type AnnualChecker struct{}

// Interval allows for leap years.
func (AnnualChecker) Interval() int { return 366 }

func (c AnnualChecker) IsMissed(lastCharge, asOf core.Date) bool {
	return asOf.DaysSince(lastCharge) > c.Interval()
}

func (AnnualChecker) MonthlyEquivalent(amount core.Money) core.Money { return amount.DivInt(12) }

// BiannualChecker implements CycleChecker for subscriptions billed twice a
// year.
type BiannualChecker struct{}

func (BiannualChecker) Interval() int { return 183 }

func (c BiannualChecker) IsMissed(lastCharge, asOf core.Date) bool {
	return asOf.DaysSince(lastCharge) > c.Interval()
}

func (BiannualChecker) MonthlyEquivalent(amount core.Money) core.Money { return amount.DivInt(6) }

// cycleStrategies maps billing cycles to their checkers.
var cycleStrategies = map[Cycle]CycleChecker{
	Monthly:  MonthlyChecker{},
	Annual:   AnnualChecker{},
	Biannual: BiannualChecker{},
}

// GetCycleChecker returns the checker for a cycle.
// Returns an error if the cycle is not supported.
func GetCycleChecker(cycle Cycle) (CycleChecker, error) {
	checker, ok := cycleStrategies[cycle]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidCycle, cycle)
	}
	return checker, nil
}
