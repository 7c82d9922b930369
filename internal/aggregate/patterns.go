package aggregate

import (
	"cardspend/internal/core"
)

// DefaultBusyDayThreshold is the transaction count that makes a
// (day, category) pair a busy day.
const DefaultBusyDayThreshold = 3

// DefaultSmallThreshold is the amount below which a purchase is small.
func DefaultSmallThreshold() core.Money {
	return core.MoneyFromCents(2000)
}

// Patterns flags habits hidden in many small purchases.
type Patterns struct {
	// BusyDays counts (day, category) pairs with at least the busy-day
	// threshold of transactions.
	BusyDays       int        `json:"busyDays"`
	SmallCount     int        `json:"smallPurchaseCount"`
	SmallTotal     core.Money `json:"smallPurchaseTotal"`
	SmallPercent   float64    `json:"smallPurchasePercent"`
	SmallThreshold core.Money `json:"smallPurchaseThreshold"`
}

// DetectPatterns counts busy days and sums purchases below smallThreshold.
// SmallPercent is relative to net spending and 0 when net is 0.
func DetectPatterns(txns []core.Transaction, smallThreshold core.Money, busyDayThreshold int) Patterns {
	type dayCategory struct {
		day      string
		category string
	}
	perDay := map[dayCategory]int{}
	p := Patterns{SmallThreshold: smallThreshold}
	var net core.Money
	for _, tx := range txns {
		perDay[dayCategory{tx.Date.String(), tx.Category}]++
		net = net.Add(tx.Amount)
		if tx.IsPurchase() && tx.Amount.Cmp(smallThreshold) < 0 {
			p.SmallCount++
			p.SmallTotal = p.SmallTotal.Add(tx.Amount)
		}
	}
	for _, n := range perDay {
		if n >= busyDayThreshold {
			p.BusyDays++
		}
	}
	p.SmallPercent = p.SmallTotal.Ratio(net) * 100
	return p
}
