package google

import (
	"fmt"
	"strings"

	"cardspend/internal/ingest"
)

// toTable converts a values matrix (as returned by the Sheets API) into an
// ingest table. The first non-empty row is the header; line numbers match
// sheet row numbers relative to the start of the range.
func toTable(name string, values [][]interface{}) ingest.Table {
	t := ingest.Table{Name: name}
	start := -1
	for i, row := range values {
		if len(row) > 0 && !allEmpty(row) {
			start = i
			break
		}
	}
	if start == -1 {
		return t
	}
	t.Header = toStrings(values[start])
	for i := start + 1; i < len(values); i++ {
		t.Rows = append(t.Rows, ingest.Row{Line: i + 1, Values: toStrings(values[i])})
	}
	return t
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func allEmpty(row []interface{}) bool {
	for _, v := range row {
		if strings.TrimSpace(fmt.Sprint(v)) != "" {
			return false
		}
	}
	return true
}
