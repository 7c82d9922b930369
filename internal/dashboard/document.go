// Package dashboard assembles the hierarchical document a drill-down
// dashboard renders: totals, category → merchant → transaction trees,
// monthly series, recurring charges and subscription reconciliation.
package dashboard

import (
	"cardspend/internal/aggregate"
	"cardspend/internal/business"
	"cardspend/internal/core"
	"cardspend/internal/ingest"
	"cardspend/internal/recurring"
	"cardspend/internal/subscriptions"
)

// Document is the full dashboard payload. Every figure in it comes from the
// same filtered snapshot.
type Document struct {
	Period              Period                 `json:"period"`
	Basis               aggregate.Basis        `json:"basis"`
	Sort                SortOrder              `json:"sort"`
	Totals              aggregate.Totals       `json:"totals"`
	Categories          []Category             `json:"categories"`
	// Merchants ranks merchants across every category.
	Merchants           []aggregate.Group      `json:"merchants"`
	Months              []aggregate.MonthDelta `json:"months"`
	ByMonth             []MonthBucket          `json:"byMonth"`
	Weekdays            []aggregate.Group      `json:"weekdays"`
	Cards               []aggregate.Group      `json:"cards"`
	Patterns            aggregate.Patterns     `json:"patterns"`
	Recurring           []RecurringItem        `json:"recurring"`
	Subscriptions       []subscriptions.Status `json:"subscriptions"`
	SubscriptionSummary subscriptions.Summary  `json:"subscriptionSummary"`
	Diagnostics         ingest.Report          `json:"diagnostics"`
	// Business is set when business rules are configured.
	Business *business.Report `json:"business,omitempty"`
}

// Period describes the span covered and the years and months available
// for filtering.
type Period struct {
	From   core.Date `json:"from"`
	To     core.Date `json:"to"`
	Years  []int     `json:"years"`
	Months []string  `json:"months"`
}

type Category struct {
	Name           string        `json:"name"`
	Total          core.Money    `json:"total"`
	Count          int           `json:"count"`
	Mean           core.Money    `json:"mean"`
	PercentOfTotal float64       `json:"percentOfTotal"`
	Merchants      []Merchant    `json:"merchants"`
	MonthlySeries  []SeriesPoint `json:"monthlySeries"`
}

// Merchant is a merchant within one category. PercentOfTotal is relative to
// the category.
type Merchant struct {
	Name           string            `json:"name"`
	Total          core.Money        `json:"total"`
	Count          int               `json:"count"`
	Mean           core.Money        `json:"mean"`
	PercentOfTotal float64           `json:"percentOfTotal"`
	Transactions   []TransactionView `json:"transactions"`
}

type TransactionView struct {
	Date        core.Date  `json:"date"`
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	Card        string     `json:"card"`
}

type SeriesPoint struct {
	Month string     `json:"month"`
	Total core.Money `json:"total"`
	Count int        `json:"count"`
}

// MonthBucket partitions a month by category, down to merchants and their
// transactions, so a presentation layer can filter by year or month without
// recomputing.
type MonthBucket struct {
	Month      string          `json:"month"`
	Total      core.Money      `json:"total"`
	Count      int             `json:"count"`
	Categories []CategoryTotal `json:"categories"`
}

type CategoryTotal struct {
	Name      string     `json:"name"`
	Total     core.Money `json:"total"`
	Count     int        `json:"count"`
	Merchants []Merchant `json:"merchants"`
}

// RecurringItem is a recurring merchant. CatalogCandidate is set when no
// catalog entry covers it.
type RecurringItem struct {
	recurring.Candidate
	CatalogCandidate bool `json:"catalogCandidate"`
}
