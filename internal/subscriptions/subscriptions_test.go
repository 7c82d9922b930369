package subscriptions

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cardspend/internal/core"
)

func purchase(y, m, d int, amount, desc string) core.Transaction {
	return core.Transaction{
		Date:        core.NewDate(y, m, d),
		Amount:      core.MustParseMoney(amount),
		Card:        "1234",
		Category:    "Streaming",
		Description: desc,
	}
}

func streaming() Entry {
	return Entry{
		Name:           "Streamer",
		Patterns:       []string{"streamer"},
		ExpectedAmount: core.MustParseMoney("9.99"),
		Cycle:          Monthly,
		Tolerance:      core.MustParseMoney("0.50"),
	}
}

func TestMatchStates(t *testing.T) {
	cases := []struct {
		name   string
		txns   []core.Transaction
		want   State
		actual string
	}{
		{"within tolerance", []core.Transaction{purchase(2024, 3, 1, "10.20", "STREAMER.COM")}, OnTrack, "10.20"},
		{"price changed", []core.Transaction{purchase(2024, 3, 1, "12.00", "STREAMER.COM")}, PriceChanged, "12.00"},
		{"no match", []core.Transaction{purchase(2024, 3, 1, "12.00", "OTHER")}, Unmatched, ""},
		{"refund only", []core.Transaction{purchase(2024, 3, 1, "-9.99", "STREAMER.COM")}, Unmatched, ""},
		{
			"missed renewal",
			[]core.Transaction{purchase(2024, 1, 1, "9.99", "STREAMER.COM"), purchase(2024, 3, 1, "40", "GROCER")},
			Missed, "9.99",
		},
		{
			"missed wins over price change",
			[]core.Transaction{purchase(2024, 1, 1, "14.99", "STREAMER.COM"), purchase(2024, 3, 1, "40", "GROCER")},
			Missed, "14.99",
		},
		{
			"gap of exactly one interval is on track",
			[]core.Transaction{purchase(2024, 1, 1, "9.99", "STREAMER.COM"), purchase(2024, 2, 1, "40", "GROCER")},
			OnTrack, "9.99",
		},
		{
			"most recent amount decides",
			[]core.Transaction{purchase(2024, 2, 1, "12.00", "STREAMER.COM"), purchase(2024, 3, 1, "9.99", "STREAMER.COM")},
			OnTrack, "9.99",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Match(tc.txns, Catalog{streaming()}, MatchOptions{})
			st := res.Statuses[0]
			if st.State != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, st.State)
			}
			if tc.actual == "" {
				if st.ActualAmount != nil || st.LastChargeDate != nil || st.MatchCount != 0 {
					t.Fatalf("unmatched entry must have no actual amount, got %+v", st)
				}
				return
			}
			if st.ActualAmount == nil || st.ActualAmount.String() != tc.actual {
				t.Fatalf("expected actual %s, got %v", tc.actual, st.ActualAmount)
			}
		})
	}
}

func TestMatchFirstListedEntryWins(t *testing.T) {
	catalog := Catalog{
		{Name: "Apple iCloud", Patterns: []string{"APPLE.COM/BILL"}, ExpectedAmount: core.MustParseMoney("2.99"), Cycle: Monthly, Tolerance: core.MustParseMoney("1")},
		{Name: "Apple Music", Patterns: []string{"APPLE"}, ExpectedAmount: core.MustParseMoney("10.99"), Cycle: Monthly, Tolerance: core.MustParseMoney("1")},
	}
	txns := []core.Transaction{
		purchase(2024, 3, 1, "2.99", "APPLE.COM/BILL 866-712-7753"),
		purchase(2024, 3, 2, "10.99", "APPLE MUSIC"),
	}
	res := Match(txns, catalog, MatchOptions{})

	icloud, music := res.Statuses[0], res.Statuses[1]
	if icloud.MatchCount != 1 || icloud.AmbiguousMatches != 0 {
		t.Fatalf("unexpected first entry %+v", icloud)
	}
	if music.MatchCount != 1 || music.AmbiguousMatches != 1 || music.ActualAmount.String() != "10.99" {
		t.Fatalf("unexpected second entry %+v", music)
	}
	if res.Summary.Found != 2 || res.Summary.Entries != 2 {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
}

func TestMatchSummary(t *testing.T) {
	catalog := Catalog{
		streaming(),
		{Name: "Annual VPN", Patterns: []string{"vpn"}, ExpectedAmount: core.MustParseMoney("60"), Cycle: Annual, Tolerance: core.MustParseMoney("5")},
		{Name: "Insurance", Patterns: []string{"insure"}, ExpectedAmount: core.MustParseMoney("120"), Cycle: Biannual, Tolerance: core.MustParseMoney("5")},
	}
	txns := []core.Transaction{
		purchase(2024, 1, 10, "9.99", "STREAMER"),
		purchase(2024, 2, 10, "9.99", "STREAMER"),
		purchase(2024, 2, 11, "60.00", "BEST VPN"),
	}
	res := Match(txns, catalog, MatchOptions{})

	if res.Summary.ExpectedMonthlyTotal.String() != "34.99" {
		t.Fatalf("expected monthly total 34.99, got %s", res.Summary.ExpectedMonthlyTotal)
	}
	if res.Summary.Found != 2 || res.Summary.ByState[OnTrack] != 2 || res.Summary.ByState[Unmatched] != 1 {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
	if !res.Summary.AsOf.Equal(core.NewDate(2024, 2, 11).Time) {
		t.Fatalf("asOf must be the latest transaction date, got %s", res.Summary.AsOf)
	}
	st := res.Statuses[0]
	if st.MatchedTotal.String() != "19.98" || len(st.Matched) != 2 || !st.Matched[0].Date.Equal(core.NewDate(2024, 2, 10).Time) {
		t.Fatalf("matched charges must be most recent first, got %+v", st.Matched)
	}
}

func TestMatchExplicitAsOf(t *testing.T) {
	txns := []core.Transaction{purchase(2024, 1, 10, "9.99", "STREAMER")}
	res := Match(txns, Catalog{streaming()}, MatchOptions{AsOf: core.NewDate(2024, 6, 1)})
	if res.Statuses[0].State != Missed {
		t.Fatalf("expected missed, got %s", res.Statuses[0].State)
	}
}

func TestCycleRegistryMatchesParseCycle(t *testing.T) {
	if len(cycleStrategies) != 3 {
		t.Fatalf("expected checkers for exactly 3 cycles, got %d", len(cycleStrategies))
	}
	for cycle := range cycleStrategies {
		got, err := ParseCycle(string(cycle))
		if err != nil || got != cycle {
			t.Errorf("ParseCycle(%q) = %q, %v", cycle, got, err)
		}
	}
	for _, name := range []string{"quarterly", "weekly"} {
		if _, err := ParseCycle(name); !errors.Is(err, core.ErrInvalidCycle) {
			t.Errorf("ParseCycle(%q) should fail, got %v", name, err)
		}
		if _, err := GetCycleChecker(Cycle(name)); !errors.Is(err, core.ErrInvalidCycle) {
			t.Errorf("GetCycleChecker(%q) should fail, got %v", name, err)
		}
	}
}

func TestCycleCheckers(t *testing.T) {
	last := core.NewDate(2024, 1, 1)
	cases := []struct {
		cycle   Cycle
		okAt    core.Date
		missAt  core.Date
		monthly string
	}{
		{Monthly, core.NewDate(2024, 2, 1), core.NewDate(2024, 2, 2), "12.00"},
		{Annual, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 3), "1.00"},
		{Biannual, core.NewDate(2024, 7, 2), core.NewDate(2024, 7, 3), "2.00"},
	}
	for _, tc := range cases {
		t.Run(string(tc.cycle), func(t *testing.T) {
			c, err := GetCycleChecker(tc.cycle)
			if err != nil {
				t.Fatal(err)
			}
			if c.IsMissed(last, tc.okAt) {
				t.Fatalf("not missed at %s", tc.okAt)
			}
			if !c.IsMissed(last, tc.missAt) {
				t.Fatalf("missed at %s", tc.missAt)
			}
			if got := c.MonthlyEquivalent(core.MustParseMoney("12")).String(); got != tc.monthly {
				t.Fatalf("expected monthly %s, got %s", tc.monthly, got)
			}
		})
	}
	if _, err := GetCycleChecker("weekly"); !errors.Is(err, core.ErrInvalidCycle) {
		t.Fatalf("expected ErrInvalidCycle, got %v", err)
	}
}

func TestCatalogValidate(t *testing.T) {
	good := streaming()
	cases := []struct {
		name string
		cat  Catalog
		want error
	}{
		{"ok", Catalog{good}, nil},
		{"empty name", Catalog{{Name: " ", Patterns: []string{"x"}, Cycle: Monthly}}, core.ErrEmptyEntryName},
		{"no patterns", Catalog{{Name: "x", Cycle: Monthly}}, core.ErrEmptyPattern},
		{"blank pattern", Catalog{{Name: "x", Patterns: []string{" "}, Cycle: Monthly}}, core.ErrEmptyPattern},
		{"bad cycle", Catalog{{Name: "x", Patterns: []string{"x"}, Cycle: "weekly"}}, core.ErrInvalidCycle},
		{"negative tolerance", Catalog{{Name: "x", Patterns: []string{"x"}, Cycle: Monthly, Tolerance: core.MustParseMoney("-1")}}, core.ErrNegativeTolerance},
		{"duplicate", Catalog{good, good}, core.ErrDuplicateEntryName},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cat.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFileCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subscriptions.json")
	content := `[
  {"name": "Netflix", "patterns": ["NETFLIX"], "expectedAmount": 15.49, "cycle": "Monthly", "tolerance": 2, "category": "Streaming"},
  {"name": "Domain", "patterns": ["NAMECHEAP"], "expectedAmount": "12.98", "cycle": "yearly", "tolerance": 1}
]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := NewFileCatalog(path).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cat) != 2 || cat[0].Cycle != Monthly || cat[1].Cycle != Annual {
		t.Fatalf("unexpected catalog %+v", cat)
	}
	if cat[0].ExpectedAmount.String() != "15.49" || cat[1].ExpectedAmount.String() != "12.98" || cat[0].Category != "Streaming" {
		t.Fatalf("unexpected amounts %+v", cat)
	}

	var buf bytes.Buffer
	if err := EncodeCatalog(&buf, cat); err != nil {
		t.Fatal(err)
	}
	again, err := DecodeCatalog(&buf)
	if err != nil || len(again) != 2 || again[1].Name != "Domain" {
		t.Fatalf("re-decode failed: %v %+v", err, again)
	}
}

func TestDecodeCatalogErrors(t *testing.T) {
	cases := map[string]string{
		"unknown field": `[{"name":"x","patterns":["x"],"expectedAmount":1,"cycle":"monthly","tolerance":0,"price":3}]`,
		"bad cycle":     `[{"name":"x","patterns":["x"],"expectedAmount":1,"cycle":"weekly","tolerance":0}]`,
		"not an array":  `{"name":"x"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeCatalog(strings.NewReader(body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := NewFileCatalog(filepath.Join(t.TempDir(), "missing.json")).Load(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExampleCatalog(t *testing.T) {
	f, err := os.Open(filepath.Join("..", "..", "configs", "subscriptions.example.json"))
	if err != nil {
		t.Fatalf("open example catalog: %v", err)
	}
	defer f.Close()

	cat, err := DecodeCatalog(f)
	if err != nil {
		t.Fatalf("example catalog should decode: %v", err)
	}
	if len(cat) == 0 || cat[0].Name != "Netflix" {
		t.Fatalf("catalog = %+v, want Netflix first", cat)
	}
	if got := cat[len(cat)-1].ExpectedMonthly().String(); got != "11.58" {
		t.Errorf("annual entry monthly = %s, want 11.58", got)
	}
}
