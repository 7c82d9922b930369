package dashboard

import (
	"fmt"
	"slices"

	"cardspend/internal/aggregate"
	"cardspend/internal/business"
	"cardspend/internal/core"
	"cardspend/internal/ingest"
	"cardspend/internal/recurring"
	"cardspend/internal/subscriptions"
)

// Options control what Build computes over.
type Options struct {
	// Filter is applied to the snapshot before anything is computed.
	Filter aggregate.Filter
	// Basis selects the population of category, month and weekday rollups.
	Basis aggregate.Basis
	// Sort orders the recurring and subscription lists.
	Sort      SortOrder
	Recurring recurring.Params
	// AsOf overrides the reference date for missed subscriptions. Zero
	// uses the latest transaction date.
	AsOf             core.Date
	SmallThreshold   core.Money
	BusyDayThreshold int
	// TopMerchants caps the cross-category merchant ranking.
	TopMerchants int
	// Business rules enable the side-project expense section.
	Business business.Rules
}

// DefaultTopMerchants is the length of the merchant ranking.
const DefaultTopMerchants = 10

func DefaultOptions() Options {
	return Options{
		Basis:            aggregate.Purchases,
		Sort:             SortAmount,
		Recurring:        recurring.DefaultParams(),
		SmallThreshold:   aggregate.DefaultSmallThreshold(),
		BusyDayThreshold: aggregate.DefaultBusyDayThreshold,
		TopMerchants:     DefaultTopMerchants,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Basis == "" {
		o.Basis = d.Basis
	}
	if o.Sort == "" {
		o.Sort = d.Sort
	}
	if o.Recurring == (recurring.Params{}) {
		o.Recurring = d.Recurring
	}
	if o.SmallThreshold.IsZero() {
		o.SmallThreshold = d.SmallThreshold
	}
	if o.BusyDayThreshold <= 0 {
		o.BusyDayThreshold = d.BusyDayThreshold
	}
	if o.TopMerchants <= 0 {
		o.TopMerchants = d.TopMerchants
	}
	return o
}

// Validate checks the options after defaults are applied.
func (o Options) Validate() error {
	o = o.withDefaults()
	if err := o.Filter.Validate(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if _, err := aggregate.ParseBasis(string(o.Basis)); err != nil {
		return err
	}
	if _, err := ParseSortOrder(string(o.Sort)); err != nil {
		return err
	}
	if err := o.Recurring.Validate(); err != nil {
		return fmt.Errorf("recurring: %w", err)
	}
	return nil
}

// Build computes the dashboard document for snap. An empty snapshot, or a
// filter that leaves nothing, yields core.ErrEmptyData.
func Build(snap ingest.Snapshot, catalog subscriptions.Catalog, opts Options) (Document, error) {
	if err := opts.Validate(); err != nil {
		return Document{}, err
	}
	opts = opts.withDefaults()
	opts.Sort, _ = ParseSortOrder(string(opts.Sort))

	txns := snap.Transactions
	if !opts.Filter.IsZero() {
		txns = opts.Filter.Apply(txns)
	}
	if len(txns) == 0 {
		return Document{}, fmt.Errorf("build dashboard: %w", core.ErrEmptyData)
	}
	// Canonical order keeps drill-down lists stable whatever the caller passed.
	txns = core.SortTransactions(txns)

	totals, err := aggregate.ComputeTotals(txns)
	if err != nil {
		return Document{}, err
	}

	months := aggregate.MonthlyTotals(txns, opts.Basis)
	doc := Document{
		Period:      buildPeriod(txns, totals),
		Basis:       opts.Basis,
		Sort:        opts.Sort,
		Totals:      totals,
		Categories:  buildCategories(txns, opts.Basis),
		Merchants:   topMerchants(txns, opts.Basis, opts.TopMerchants),
		Months:      aggregate.MonthOverMonth(months),
		ByMonth:     buildByMonth(txns, months, opts.Basis),
		Weekdays:    aggregate.Weekdays(txns, opts.Basis),
		Cards:       nonNil(aggregate.Rollup(txns, aggregate.ByCard, opts.Basis)),
		Patterns:    aggregate.DetectPatterns(txns, opts.SmallThreshold, opts.BusyDayThreshold),
		Recurring:   buildRecurring(txns, catalog, opts.Recurring),
		Diagnostics: snap.Report,
	}

	if len(opts.Business) > 0 {
		rep := business.Build(txns, opts.Business)
		doc.Business = &rep
	}

	matched := subscriptions.Match(txns, catalog, subscriptions.MatchOptions{AsOf: opts.AsOf})
	doc.Subscriptions = matched.Statuses
	doc.SubscriptionSummary = matched.Summary

	sortRecurring(doc.Recurring, opts.Sort)
	sortStatuses(doc.Subscriptions, opts.Sort)
	return doc, nil
}

func buildPeriod(txns []core.Transaction, totals aggregate.Totals) Period {
	p := Period{From: totals.From, To: totals.To, Years: []int{}, Months: []string{}}
	seenYear := map[int]bool{}
	seenMonth := map[string]bool{}
	for _, tx := range txns {
		if y := tx.Date.Year(); !seenYear[y] {
			seenYear[y] = true
			p.Years = append(p.Years, y)
		}
		if m := tx.Month().String(); !seenMonth[m] {
			seenMonth[m] = true
			p.Months = append(p.Months, m)
		}
	}
	slices.Sort(p.Years)
	slices.Sort(p.Months)
	return p
}

func buildCategories(txns []core.Transaction, basis aggregate.Basis) []Category {
	byCategory := map[string][]core.Transaction{}
	for _, tx := range txns {
		if basis.Includes(tx) {
			byCategory[tx.Category] = append(byCategory[tx.Category], tx)
		}
	}

	groups := aggregate.Rollup(txns, aggregate.ByCategory, basis)
	out := make([]Category, 0, len(groups))
	for _, g := range groups {
		catTxns := byCategory[g.Key]
		c := Category{
			Name:           g.Key,
			Total:          g.Total,
			Count:          g.Count,
			Mean:           g.Mean,
			PercentOfTotal: g.PercentOfTotal,
			Merchants:      buildMerchants(catTxns, basis),
		}
		for _, m := range aggregate.MonthlyTotals(catTxns, basis) {
			c.MonthlySeries = append(c.MonthlySeries, SeriesPoint{Month: m.Key, Total: m.Total, Count: m.Count})
		}
		out = append(out, c)
	}
	return out
}

func buildMerchants(catTxns []core.Transaction, basis aggregate.Basis) []Merchant {
	byMerchant := map[string][]core.Transaction{}
	for _, tx := range catTxns {
		byMerchant[tx.Merchant()] = append(byMerchant[tx.Merchant()], tx)
	}

	groups := aggregate.Rollup(catTxns, aggregate.ByMerchant, basis)
	out := make([]Merchant, 0, len(groups))
	for _, g := range groups {
		m := Merchant{
			Name:           g.Key,
			Total:          g.Total,
			Count:          g.Count,
			Mean:           g.Mean,
			PercentOfTotal: g.PercentOfTotal,
			Transactions:   transactionViews(byMerchant[g.Key]),
		}
		out = append(out, m)
	}
	return out
}

// transactionViews lists the largest amounts first; equal amounts keep
// canonical order.
func transactionViews(txns []core.Transaction) []TransactionView {
	sorted := slices.Clone(txns)
	slices.SortStableFunc(sorted, func(a, b core.Transaction) int { return b.Amount.Cmp(a.Amount) })

	out := make([]TransactionView, 0, len(sorted))
	for _, tx := range sorted {
		out = append(out, TransactionView{Date: tx.Date, Amount: tx.Amount, Description: tx.Description, Card: tx.Card})
	}
	return out
}

func buildByMonth(txns []core.Transaction, months []aggregate.Group, basis aggregate.Basis) []MonthBucket {
	byMonth := map[string][]core.Transaction{}
	for _, tx := range txns {
		k := tx.Month().String()
		byMonth[k] = append(byMonth[k], tx)
	}

	out := make([]MonthBucket, 0, len(months))
	for _, m := range months {
		monthTxns := byMonth[m.Key]
		byCategory := map[string][]core.Transaction{}
		for _, tx := range monthTxns {
			if basis.Includes(tx) {
				byCategory[tx.Category] = append(byCategory[tx.Category], tx)
			}
		}

		b := MonthBucket{Month: m.Key, Total: m.Total, Count: m.Count, Categories: []CategoryTotal{}}
		for _, g := range aggregate.Rollup(monthTxns, aggregate.ByCategory, basis) {
			b.Categories = append(b.Categories, CategoryTotal{
				Name:      g.Key,
				Total:     g.Total,
				Count:     g.Count,
				Merchants: buildMerchants(byCategory[g.Key], basis),
			})
		}
		out = append(out, b)
	}
	return out
}

// topMerchants ranks merchants over the whole snapshot, whatever category
// their rows carry. PercentOfTotal is relative to the grand total.
func topMerchants(txns []core.Transaction, basis aggregate.Basis, n int) []aggregate.Group {
	groups := nonNil(aggregate.Rollup(txns, aggregate.ByMerchant, basis))
	if len(groups) > n {
		groups = groups[:n]
	}
	return groups
}

func buildRecurring(txns []core.Transaction, catalog subscriptions.Catalog, params recurring.Params) []RecurringItem {
	candidates := recurring.NewDetector(params).Recurring(txns)
	out := make([]RecurringItem, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, RecurringItem{Candidate: c, CatalogCandidate: !coveredByCatalog(c.Merchant, catalog)})
	}
	return out
}

func coveredByCatalog(merchant string, catalog subscriptions.Catalog) bool {
	return slices.ContainsFunc(catalog, func(e subscriptions.Entry) bool { return e.Matches(merchant) })
}

func nonNil(groups []aggregate.Group) []aggregate.Group {
	if groups == nil {
		return []aggregate.Group{}
	}
	return groups
}
