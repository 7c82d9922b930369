// Package ingest turns heterogeneous card-export tables into the canonical
// transaction snapshot.
package ingest

import (
	"strings"

	"cardspend/internal/core"
)

// Field is a canonical transaction column.
type Field string

const (
	FieldDate        Field = "Date"
	FieldAmount      Field = "Amount"
	FieldCard        Field = "Card"
	FieldCategory    Field = "Category"
	FieldDescription Field = "Description"
	// FieldCredit is the optional credit column of debit/credit layouts.
	FieldCredit Field = "Credit"
)

// RequiredFields must resolve for a source to be usable.
var RequiredFields = []Field{FieldDate, FieldAmount, FieldCard, FieldCategory, FieldDescription}

// AliasTable maps each canonical field to the header names that may carry
// it, in preference order.
type AliasTable map[Field][]string

// DefaultAliases covers the bank exports seen so far.
func DefaultAliases() AliasTable {
	return AliasTable{
		FieldDate:        {"Date", "Transaction Date", "Trans. Date", "Posted Date"},
		FieldAmount:      {"Amount", "Debit", "Transaction Amount"},
		FieldCard:        {"Card", "Card No.", "Card Number", "Account"},
		FieldCategory:    {"Category"},
		FieldDescription: {"Description", "Merchant", "Payee"},
		FieldCredit:      {"Credit"},
	}
}

// DefaultHeaderLayouts overrides the date layout for headers whose bank
// always writes ISO dates.
func DefaultHeaderLayouts() map[string]string {
	return map[string]string{
		"Transaction Date": "2006-01-02",
	}
}

// Columns is a resolved header: canonical field to column index, plus the
// header text that matched.
type Columns struct {
	index  map[Field]int
	header map[Field]string
}

// Index returns the column for f, or -1 when unresolved.
func (c Columns) Index(f Field) int {
	if i, ok := c.index[f]; ok {
		return i
	}
	return -1
}

// Header returns the source header that matched f.
func (c Columns) Header(f Field) string {
	return c.header[f]
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// Resolve maps a header row onto canonical fields. Aliases are tried in
// table order; the first header present wins. A missing required field
// yields a SchemaError naming the source.
func (t AliasTable) Resolve(source string, headers []string) (Columns, error) {
	positions := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normalizeHeader(h)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	cols := Columns{index: map[Field]int{}, header: map[Field]string{}}
	for field, aliases := range t {
		for _, alias := range aliases {
			if i, ok := positions[normalizeHeader(alias)]; ok {
				cols.index[field] = i
				cols.header[field] = alias
				break
			}
		}
	}

	for _, f := range RequiredFields {
		if _, ok := cols.index[f]; !ok {
			return Columns{}, &core.SchemaError{Source: source, Field: string(f), Headers: headers}
		}
	}
	return cols, nil
}
