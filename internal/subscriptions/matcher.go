package subscriptions

import (
	"cardspend/internal/core"
)

// State is the reconciliation outcome for one entry.
type State string

const (
	OnTrack      State = "on-track"
	PriceChanged State = "price-changed"
	Missed       State = "missed"
	Unmatched    State = "unmatched"
)

// Charge is a matched transaction as shown in drill-down.
type Charge struct {
	Date        core.Date  `json:"date"`
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	Card        string     `json:"card"`
}

// Status is the reconciliation result of one catalog entry.
type Status struct {
	Entry          Entry      `json:"entry"`
	State          State      `json:"state"`
	MatchCount     int        `json:"matchCount"`
	MatchedTotal   core.Money `json:"matchedTotal"`
	LastChargeDate *core.Date `json:"lastChargeDate"`
	// ActualAmount is the most recent matched charge; nil when unmatched.
	ActualAmount    *core.Money `json:"actualAmount"`
	ExpectedMonthly core.Money  `json:"expectedMonthly"`
	// AmbiguousMatches counts transactions that matched this entry's
	// patterns but were attributed to an earlier entry.
	AmbiguousMatches int `json:"ambiguousMatches"`
	// Matched holds the attributed charges, most recent first.
	Matched []Charge `json:"matched"`
}

// Summary totals a reconciliation run.
type Summary struct {
	Entries              int           `json:"entries"`
	Found                int           `json:"found"`
	ExpectedMonthlyTotal core.Money    `json:"expectedMonthlyTotal"`
	ByState              map[State]int `json:"byState"`
	AsOf                 core.Date     `json:"asOf"`
}

// Result is the output of Match.
type Result struct {
	Statuses []Status `json:"statuses"`
	Summary  Summary  `json:"summary"`
}

// MatchOptions tunes Match. A zero AsOf uses the latest transaction date
// so that results depend on the data only.
type MatchOptions struct {
	AsOf core.Date
}

// Match reconciles catalog against txns. Only purchases are considered.
// Each transaction is attributed to the first catalog entry whose patterns
// it contains; later matching entries only count it as ambiguous.
//
// State precedence: unmatched, then missed, then price-changed, then
// on-track.
func Match(txns []core.Transaction, catalog Catalog, opts MatchOptions) Result {
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = latestDate(txns)
	}

	attributed := make([][]core.Transaction, len(catalog))
	ambiguous := make([]int, len(catalog))
	for _, tx := range txns {
		if !tx.IsPurchase() {
			continue
		}
		owner := -1
		for i, e := range catalog {
			if !e.Matches(tx.Description) {
				continue
			}
			if owner == -1 {
				owner = i
				attributed[i] = append(attributed[i], tx)
			} else {
				ambiguous[i]++
			}
		}
	}

	res := Result{
		Statuses: make([]Status, 0, len(catalog)),
		Summary:  Summary{Entries: len(catalog), ByState: map[State]int{}, AsOf: asOf},
	}
	for i, e := range catalog {
		st := reconcile(e, attributed[i], asOf)
		st.AmbiguousMatches = ambiguous[i]
		res.Statuses = append(res.Statuses, st)

		res.Summary.ByState[st.State]++
		res.Summary.ExpectedMonthlyTotal = res.Summary.ExpectedMonthlyTotal.Add(st.ExpectedMonthly)
		if st.State != Unmatched {
			res.Summary.Found++
		}
	}
	return res
}

func reconcile(e Entry, matched []core.Transaction, asOf core.Date) Status {
	st := Status{
		Entry:           e,
		MatchCount:      len(matched),
		ExpectedMonthly: e.ExpectedMonthly(),
		Matched:         make([]Charge, 0, len(matched)),
	}
	if len(matched) == 0 {
		st.State = Unmatched
		return st
	}

	sorted := core.SortTransactions(matched)
	for i := len(sorted) - 1; i >= 0; i-- {
		tx := sorted[i]
		st.MatchedTotal = st.MatchedTotal.Add(tx.Amount)
		st.Matched = append(st.Matched, Charge{Date: tx.Date, Amount: tx.Amount, Description: tx.Description, Card: tx.Card})
	}
	latest := sorted[len(sorted)-1]
	last, actual := latest.Date, latest.Amount
	st.LastChargeDate = &last
	st.ActualAmount = &actual

	checker, err := GetCycleChecker(e.Cycle)
	switch {
	case err == nil && checker.IsMissed(last, asOf):
		st.State = Missed
	case actual.Sub(e.ExpectedAmount).Abs().Cmp(e.Tolerance) > 0:
		st.State = PriceChanged
	default:
		st.State = OnTrack
	}
	return st
}

func latestDate(txns []core.Transaction) core.Date {
	var latest core.Date
	for _, tx := range txns {
		if tx.Date.After(latest.Time) {
			latest = tx.Date
		}
	}
	return latest
}
