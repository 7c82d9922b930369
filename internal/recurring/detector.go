// Package recurring finds merchants with stable periodic charges using
// transaction history alone.
package recurring

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"cardspend/internal/core"
)

// Default classification thresholds.
const (
	DefaultMinMonths    = 3
	DefaultMaxVariation = 0.3
)

// AnnualizedBasis labels AnnualizedTotal as an estimate.
const AnnualizedBasis = "annualizedFromMonthlyMean"

// Classification is the detector's verdict for a merchant.
type Classification string

const (
	Recurring           Classification = "recurring"
	Irregular           Classification = "irregular"
	InsufficientHistory Classification = "insufficient-history"
)

// Params are the heuristic thresholds. A merchant is recurring when it was
// seen in at least MinMonths distinct months and the standard deviation of
// its monthly sums is at most MaxVariation times their mean.
type Params struct {
	MinMonths    int
	MaxVariation float64
}

func DefaultParams() Params {
	return Params{MinMonths: DefaultMinMonths, MaxVariation: DefaultMaxVariation}
}

func (p Params) Validate() error {
	if p.MinMonths < 1 {
		return fmt.Errorf("min months must be at least 1, got %d", p.MinMonths)
	}
	if p.MaxVariation < 0 || math.IsNaN(p.MaxVariation) {
		return fmt.Errorf("max variation cannot be negative, got %v", p.MaxVariation)
	}
	return nil
}

// MonthAmount is the summed charge of a merchant in one month.
type MonthAmount struct {
	Month  core.Month `json:"month"`
	Amount core.Money `json:"amount"`
}

// Candidate is the per-merchant statistics and verdict.
type Candidate struct {
	Merchant   string        `json:"merchant"`
	Category   string        `json:"category"`
	MonthsSeen int           `json:"monthsSeen"`
	Amounts    []MonthAmount `json:"amounts"`
	MeanAmount core.Money    `json:"meanAmount"`
	// StdDev is the sample standard deviation of the monthly sums, 0 for
	// a single month.
	StdDev          float64        `json:"stdDev"`
	AnnualizedTotal core.Money     `json:"annualizedTotal"`
	AnnualizedBasis string         `json:"annualizedBasis"`
	LastCharge      core.Date      `json:"lastCharge"`
	Classification  Classification `json:"classification"`
}

func (c Candidate) IsRecurring() bool { return c.Classification == Recurring }

// Detector classifies every merchant in a snapshot.
type Detector struct {
	params Params
}

func NewDetector(p Params) *Detector {
	return &Detector{params: p}
}

type merchantAcc struct {
	months     map[core.Month]core.Money
	categories map[string]int
	last       core.Date
}

// Detect returns a candidate per merchant, recurring ones first, then by
// mean amount descending and merchant name.
func (d *Detector) Detect(txns []core.Transaction) []Candidate {
	byMerchant := map[string]*merchantAcc{}
	for _, tx := range txns {
		key := tx.Merchant()
		acc, ok := byMerchant[key]
		if !ok {
			acc = &merchantAcc{months: map[core.Month]core.Money{}, categories: map[string]int{}}
			byMerchant[key] = acc
		}
		m := tx.Month()
		acc.months[m] = acc.months[m].Add(tx.Amount)
		acc.categories[tx.Category]++
		if tx.Date.After(acc.last.Time) {
			acc.last = tx.Date
		}
	}

	out := make([]Candidate, 0, len(byMerchant))
	for merchant, acc := range byMerchant {
		out = append(out, d.classify(merchant, acc))
	}
	slices.SortFunc(out, func(a, b Candidate) int {
		if a.IsRecurring() != b.IsRecurring() {
			if a.IsRecurring() {
				return -1
			}
			return 1
		}
		if c := b.MeanAmount.Cmp(a.MeanAmount); c != 0 {
			return c
		}
		return cmp.Compare(a.Merchant, b.Merchant)
	})
	return out
}

// Recurring returns only the merchants classified as recurring.
func (d *Detector) Recurring(txns []core.Transaction) []Candidate {
	var out []Candidate
	for _, c := range d.Detect(txns) {
		if c.IsRecurring() {
			out = append(out, c)
		}
	}
	return out
}

func (d *Detector) classify(merchant string, acc *merchantAcc) Candidate {
	amounts := make([]MonthAmount, 0, len(acc.months))
	var total core.Money
	for m, amt := range acc.months {
		amounts = append(amounts, MonthAmount{Month: m, Amount: amt})
		total = total.Add(amt)
	}
	slices.SortFunc(amounts, func(a, b MonthAmount) int { return a.Month.Compare(b.Month) })

	n := len(amounts)
	mean := total.DivInt(n)
	c := Candidate{
		Merchant:        merchant,
		Category:        dominantCategory(acc.categories),
		MonthsSeen:      n,
		Amounts:         amounts,
		MeanAmount:      mean,
		StdDev:          sampleStdDev(amounts, mean),
		LastCharge:      acc.last,
		AnnualizedBasis: AnnualizedBasis,
	}

	switch {
	case n < d.params.MinMonths:
		c.Classification = InsufficientHistory
	case mean.IsPositive() && c.StdDev <= d.params.MaxVariation*mean.Float64():
		c.Classification = Recurring
		c.AnnualizedTotal = mean.MulInt(12)
	default:
		c.Classification = Irregular
	}
	return c
}

// sampleStdDev uses the n-1 denominator; a single observation has no
// spread and yields 0.
func sampleStdDev(amounts []MonthAmount, mean core.Money) float64 {
	if len(amounts) < 2 {
		return 0
	}
	var sq float64
	for _, a := range amounts {
		diff := a.Amount.Sub(mean).Float64()
		sq += diff * diff
	}
	return math.Sqrt(sq / float64(len(amounts)-1))
}

func dominantCategory(counts map[string]int) string {
	best, bestN := "", 0
	for cat, n := range counts {
		if n > bestN || (n == bestN && cat < best) {
			best, bestN = cat, n
		}
	}
	return best
}
