package dashboard

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"cardspend/internal/subscriptions"
)

// SortOrder orders the recurring and subscription lists.
type SortOrder string

const (
	SortAmount SortOrder = "amount"
	SortName   SortOrder = "name"
)

// ParseSortOrder accepts "amount" or "name"; blank means amount.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortAmount:
		return SortAmount, nil
	case SortName:
		return SortName, nil
	}
	return "", fmt.Errorf("invalid sort %q: must be amount or name", s)
}

// compareNames is case-insensitive, falling back to byte order so the
// result is total.
func compareNames(a, b string) int {
	return cmp.Or(cmp.Compare(strings.ToLower(a), strings.ToLower(b)), cmp.Compare(a, b))
}

// sortRecurring orders by mean amount descending, or by merchant name.
func sortRecurring(items []RecurringItem, order SortOrder) {
	slices.SortStableFunc(items, func(a, b RecurringItem) int {
		if order == SortName {
			return compareNames(a.Merchant, b.Merchant)
		}
		if c := b.MeanAmount.Cmp(a.MeanAmount); c != 0 {
			return c
		}
		return compareNames(a.Merchant, b.Merchant)
	})
}

// sortStatuses orders by expected monthly cost descending, or by entry
// name.
func sortStatuses(statuses []subscriptions.Status, order SortOrder) {
	slices.SortStableFunc(statuses, func(a, b subscriptions.Status) int {
		if order == SortName {
			return compareNames(a.Entry.Name, b.Entry.Name)
		}
		if c := b.ExpectedMonthly.Cmp(a.ExpectedMonthly); c != 0 {
			return c
		}
		return compareNames(a.Entry.Name, b.Entry.Name)
	})
}
