// Package aggregate computes totals and grouped rollups over a transaction
// snapshot. Every function here is order-independent and never modifies
// the slice it is given.
package aggregate

import (
	"slices"

	"cardspend/internal/core"
)

// Projection multipliers applied to the daily average.
const (
	DaysPerWeek  = 7
	DaysPerMonth = 30.44
	DaysPerYear  = 365
)

// VelocityBasis labels velocity figures as extrapolations.
const VelocityBasis = "projectedFromDailyAverage"

// Velocity extrapolates gross spending from the daily average.
type Velocity struct {
	Daily             core.Money `json:"dailyAverage"`
	Weekly            core.Money `json:"weeklyAverage"`
	MonthlyProjection core.Money `json:"monthlyProjection"`
	AnnualProjection  core.Money `json:"annualProjection"`
	Basis             string     `json:"basis"`
}

// Totals are the headline figures of a population. Gross, Refunds and Net
// are always reported side by side.
type Totals struct {
	Gross            core.Money `json:"gross"`
	Refunds          core.Money `json:"refunds"`
	Net              core.Money `json:"net"`
	PurchaseCount    int        `json:"purchaseCount"`
	RefundCount      int        `json:"refundCount"`
	TransactionCount int        `json:"transactionCount"`
	AveragePurchase  core.Money `json:"averagePurchase"`
	MedianPurchase   core.Money `json:"medianPurchase"`
	From             core.Date  `json:"from"`
	To               core.Date  `json:"to"`
	// DaysCovered is the span between the first and last transaction.
	DaysCovered  int        `json:"daysCovered"`
	DailyAverage core.Money `json:"dailyAverage"`
	Velocity     Velocity   `json:"velocity"`
}

// ComputeTotals returns the headline figures for txns. An empty population
// yields core.ErrEmptyData rather than zero-filled totals.
func ComputeTotals(txns []core.Transaction) (Totals, error) {
	if len(txns) == 0 {
		return Totals{}, core.ErrEmptyData
	}

	var t Totals
	purchases := make([]core.Money, 0, len(txns))
	t.From, t.To = txns[0].Date, txns[0].Date
	for _, tx := range txns {
		switch {
		case tx.IsPurchase():
			t.Gross = t.Gross.Add(tx.Amount)
			t.PurchaseCount++
			purchases = append(purchases, tx.Amount)
		case tx.IsRefund():
			t.Refunds = t.Refunds.Add(tx.Amount)
			t.RefundCount++
		}
		t.Net = t.Net.Add(tx.Amount)
		if tx.Date.Before(t.From.Time) {
			t.From = tx.Date
		}
		if tx.Date.After(t.To.Time) {
			t.To = tx.Date
		}
	}
	t.TransactionCount = len(txns)

	if t.PurchaseCount > 0 {
		t.AveragePurchase = t.Gross.DivInt(t.PurchaseCount)
		t.MedianPurchase = median(purchases)
	}

	t.DaysCovered = t.To.DaysSince(t.From)
	t.DailyAverage = t.Gross.DivInt(max(t.DaysCovered, 1))
	t.Velocity = Velocity{
		Daily:             t.DailyAverage,
		Weekly:            t.DailyAverage.MulInt(DaysPerWeek),
		MonthlyProjection: t.DailyAverage.MulFloat(DaysPerMonth),
		AnnualProjection:  t.DailyAverage.MulInt(DaysPerYear),
		Basis:             VelocityBasis,
	}
	return t, nil
}

func median(xs []core.Money) core.Money {
	sorted := slices.Clone(xs)
	slices.SortFunc(sorted, func(a, b core.Money) int { return a.Cmp(b) })
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).DivInt(2)
}
