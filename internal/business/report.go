package business

import (
	"cmp"
	"slices"

	"cardspend/internal/aggregate"
	"cardspend/internal/core"
)

// Charge is one statement row attributed to a service.
type Charge struct {
	Date        core.Date  `json:"date"`
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	Service     string     `json:"service"`
	Category    string     `json:"category"`
}

// ServiceTotal sums one service. PercentOfTotal is its share of all
// business expenses.
type ServiceTotal struct {
	Service        string     `json:"service"`
	Category       string     `json:"category"`
	Expenses       core.Money `json:"expenses"`
	Refunds        core.Money `json:"refunds"`
	Net            core.Money `json:"net"`
	Count          int        `json:"count"`
	PercentOfTotal float64    `json:"percentOfTotal"`
}

// Report is the side-project expense view. Expenses are purchases and
// Refunds are credits (negative); Net is their sum.
type Report struct {
	Expenses     core.Money `json:"expenses"`
	Refunds      core.Money `json:"refunds"`
	Net          core.Money `json:"net"`
	ExpenseCount int        `json:"expenseCount"`
	RefundCount  int        `json:"refundCount"`
	// MonthsActive counts months with at least one expense.
	MonthsActive   int                    `json:"monthsActive"`
	MonthlyAverage core.Money             `json:"monthlyAverage"`
	Services       []ServiceTotal         `json:"services"`
	Categories     []aggregate.Group      `json:"categories"`
	Months         []aggregate.MonthDelta `json:"months"`
	// Charges and Credits list purchases and refunds, newest first.
	Charges []Charge `json:"charges"`
	Credits []Charge `json:"credits"`
}

// Build classifies txns with rules and totals the matches. Transactions no
// rule matches are ignored.
func Build(txns []core.Transaction, rules Rules) Report {
	rep := Report{
		Services:   []ServiceTotal{},
		Categories: []aggregate.Group{},
		Charges:    []Charge{},
		Credits:    []Charge{},
	}

	var matched []core.Transaction
	byService := map[string]*ServiceTotal{}
	var order []string
	for _, tx := range txns {
		if tx.Amount.IsZero() {
			continue
		}
		rule, ok := rules.Classify(tx.Description)
		if !ok {
			continue
		}
		// Retagged copy so category rollups use the rule's category.
		tagged := tx
		tagged.Category = rule.Category
		matched = append(matched, tagged)

		st, seen := byService[rule.Service]
		if !seen {
			st = &ServiceTotal{Service: rule.Service, Category: rule.Category}
			byService[rule.Service] = st
			order = append(order, rule.Service)
		}
		charge := Charge{Date: tx.Date, Amount: tx.Amount, Description: tx.Description, Service: rule.Service, Category: rule.Category}
		if tx.IsPurchase() {
			st.Expenses = st.Expenses.Add(tx.Amount)
			st.Count++
			rep.Expenses = rep.Expenses.Add(tx.Amount)
			rep.ExpenseCount++
			rep.Charges = append(rep.Charges, charge)
		} else {
			st.Refunds = st.Refunds.Add(tx.Amount)
			rep.Refunds = rep.Refunds.Add(tx.Amount)
			rep.RefundCount++
			rep.Credits = append(rep.Credits, charge)
		}
	}
	rep.Net = rep.Expenses.Add(rep.Refunds)

	for _, name := range order {
		st := byService[name]
		st.Net = st.Expenses.Add(st.Refunds)
		st.PercentOfTotal = st.Expenses.Ratio(rep.Expenses) * 100
		rep.Services = append(rep.Services, *st)
	}
	slices.SortFunc(rep.Services, func(a, b ServiceTotal) int {
		if c := b.Expenses.Cmp(a.Expenses); c != 0 {
			return c
		}
		return cmp.Compare(a.Service, b.Service)
	})

	if groups := aggregate.Rollup(matched, aggregate.ByCategory, aggregate.Purchases); groups != nil {
		rep.Categories = groups
	}
	months := aggregate.MonthlyTotals(matched, aggregate.Purchases)
	rep.Months = aggregate.MonthOverMonth(months)
	rep.MonthsActive = len(months)
	rep.MonthlyAverage = rep.Expenses.DivInt(rep.MonthsActive)

	newestFirst := func(a, b Charge) int { return b.Date.Compare(a.Date.Time) }
	slices.SortStableFunc(rep.Charges, newestFirst)
	slices.SortStableFunc(rep.Credits, newestFirst)
	return rep
}
