package google

import "testing"

func TestToTable(t *testing.T) {
	values := [][]interface{}{
		{},
		{"Date", "Amount", "Card", "Category", "Description"},
		{"01/05/2024", "12.50", 1234, "Dining", " CAFE ROMA "},
		{"01/06/2024", 3.5, "1234", "", "BAKERY"},
	}
	table := toTable("sheets:test/Transactions!A:E", values)

	if len(table.Header) != 5 || table.Header[0] != "Date" {
		t.Fatalf("unexpected header %v", table.Header)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0].Line != 3 || table.Rows[0].Values[2] != "1234" || table.Rows[0].Values[4] != "CAFE ROMA" {
		t.Fatalf("unexpected first row %+v", table.Rows[0])
	}
	if table.Rows[1].Values[1] != "3.5" {
		t.Fatalf("numeric cells must be stringified, got %q", table.Rows[1].Values[1])
	}
}

func TestToTableEmpty(t *testing.T) {
	table := toTable("empty", [][]interface{}{{""}, {}})
	if table.Header != nil || table.Rows != nil {
		t.Fatalf("expected empty table, got %+v", table)
	}
}
