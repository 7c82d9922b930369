package aggregate

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"cardspend/internal/core"
)

// Basis selects the population a rollup is computed over.
type Basis string

const (
	// Purchases counts positive amounts only; the grand total is gross.
	Purchases Basis = "purchases"
	// Net counts every amount; the grand total is net.
	Net Basis = "net"
)

// ParseBasis accepts "purchases" or "net"; blank means purchases.
func ParseBasis(s string) (Basis, error) {
	switch Basis(s) {
	case "", Purchases:
		return Purchases, nil
	case Net:
		return Net, nil
	}
	return "", fmt.Errorf("invalid basis %q: must be purchases or net", s)
}

// Includes reports whether tx belongs to the population of b.
func (b Basis) Includes(tx core.Transaction) bool {
	if b == Net {
		return true
	}
	return tx.IsPurchase()
}

// KeyFunc extracts a grouping key from a transaction.
type KeyFunc func(core.Transaction) string

var (
	ByCategory KeyFunc = func(tx core.Transaction) string { return tx.Category }
	ByMerchant KeyFunc = func(tx core.Transaction) string { return tx.Merchant() }
	ByMonth    KeyFunc = func(tx core.Transaction) string { return tx.Month().String() }
	ByWeekday  KeyFunc = func(tx core.Transaction) string { return tx.Date.Weekday().String() }
	ByCard     KeyFunc = func(tx core.Transaction) string { return tx.Card }
)

// Group is one rollup row.
type Group struct {
	Key            string     `json:"key"`
	Total          core.Money `json:"total"`
	Count          int        `json:"count"`
	Mean           core.Money `json:"mean"`
	PercentOfTotal float64    `json:"percentOfTotal"`
}

// GrandTotal is the sum of the amounts basis includes.
func GrandTotal(txns []core.Transaction, basis Basis) core.Money {
	var total core.Money
	for _, tx := range txns {
		if basis.Includes(tx) {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// Rollup groups txns by key over basis. Groups are sorted by Total
// descending, then Key ascending. PercentOfTotal is 0 for every group when
// the grand total is zero.
func Rollup(txns []core.Transaction, key KeyFunc, basis Basis) []Group {
	index := map[string]int{}
	var groups []Group
	var grand core.Money
	for _, tx := range txns {
		if !basis.Includes(tx) {
			continue
		}
		k := key(tx)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Total = groups[i].Total.Add(tx.Amount)
		groups[i].Count++
		grand = grand.Add(tx.Amount)
	}

	for i := range groups {
		groups[i].Mean = groups[i].Total.DivInt(groups[i].Count)
		groups[i].PercentOfTotal = groups[i].Total.Ratio(grand) * 100
	}
	SortByTotal(groups)
	return groups
}

// SortByTotal orders groups by Total descending, then Key ascending.
func SortByTotal(groups []Group) {
	slices.SortFunc(groups, func(a, b Group) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}

// SortByKey orders groups by Key ascending; month keys sort chronologically.
func SortByKey(groups []Group) {
	slices.SortFunc(groups, func(a, b Group) int { return cmp.Compare(a.Key, b.Key) })
}

// MonthlyTotals returns the monthly rollup in chronological order.
func MonthlyTotals(txns []core.Transaction, basis Basis) []Group {
	groups := Rollup(txns, ByMonth, basis)
	SortByKey(groups)
	return groups
}

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// Weekdays returns one group per day of the week, Monday first, including
// days with no spending.
func Weekdays(txns []core.Transaction, basis Basis) []Group {
	byKey := map[string]Group{}
	for _, g := range Rollup(txns, ByWeekday, basis) {
		byKey[g.Key] = g
	}
	out := make([]Group, 0, len(weekdayOrder))
	for _, d := range weekdayOrder {
		g, ok := byKey[d.String()]
		if !ok {
			g = Group{Key: d.String()}
		}
		out = append(out, g)
	}
	return out
}

// MonthDelta is one point of a month-over-month series.
type MonthDelta struct {
	Month string     `json:"month"`
	Total core.Money `json:"total"`
	Count int        `json:"count"`
	// Change and ChangePct are nil for the first month.
	Change    *core.Money `json:"change"`
	ChangePct *float64    `json:"changePct"`
}

// MonthOverMonth computes deltas over chronologically ordered monthly
// groups. ChangePct is 0 when the previous month's total is 0.
func MonthOverMonth(months []Group) []MonthDelta {
	out := make([]MonthDelta, 0, len(months))
	for i, m := range months {
		d := MonthDelta{Month: m.Key, Total: m.Total, Count: m.Count}
		if i > 0 {
			prev := months[i-1].Total
			change := m.Total.Sub(prev)
			pct := change.Ratio(prev) * 100
			d.Change = &change
			d.ChangePct = &pct
		}
		out = append(out, d)
	}
	return out
}
