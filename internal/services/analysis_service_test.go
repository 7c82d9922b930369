package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"cardspend/internal/amqp"
	"cardspend/internal/business"
	"cardspend/internal/core"
	"cardspend/internal/dashboard"
	"cardspend/internal/ingest"
	"cardspend/internal/metrics"
	"cardspend/internal/subscriptions"
)

const statementCSV = `Date,Amount,Card,Category,Description
01/03/2024,15.49,1234,Streaming,NETFLIX.COM
01/09/2024,42.10,1234,Grocery,FRESH MARKET
02/03/2024,15.49,1234,Streaming,NETFLIX.COM
02/14/2024,80.00,1234,Dining,BISTRO
03/03/2024,15.49,1234,Streaming,NETFLIX.COM
03/20/2024,-10.00,1234,Grocery,FRESH MARKET
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticProvider(t *testing.T, calls *atomic.Int32, csv string) SourceProvider {
	t.Helper()
	table, err := ingest.ParseCSV("statement.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return func(ctx context.Context) ([]ingest.Source, error) {
		calls.Add(1)
		return []ingest.Source{ingest.StaticSource{Table: table}}, nil
	}
}

func netflixCatalog() subscriptions.Static {
	return subscriptions.Static{
		{Name: "Netflix", Patterns: []string{"NETFLIX"}, ExpectedAmount: core.MustParseMoney("15.49"), Cycle: subscriptions.Monthly, Tolerance: core.MustParseMoney("0.50")},
		{Name: "Gym", Patterns: []string{"GYM"}, ExpectedAmount: core.MustParseMoney("30"), Cycle: subscriptions.Monthly, Tolerance: core.MustParseMoney("1")},
	}
}

type fakePublisher struct {
	published []*amqp.ReportRequestMessage
	err       error
}

func (f *fakePublisher) PublishReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func TestAnalysisService_Dashboard(t *testing.T) {
	var calls atomic.Int32
	m := metrics.New()
	svc := NewAnalysisService(staticProvider(t, &calls, statementCSV), netflixCatalog(), nil, m, DefaultAnalysisConfig(), quietLogger())

	doc, err := svc.Dashboard(context.Background(), Request{Sort: "name"})
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if doc.Sort != dashboard.SortName {
		t.Errorf("Sort = %q, want name", doc.Sort)
	}
	if len(doc.Recurring) != 1 || doc.Recurring[0].Merchant != "NETFLIX.COM" {
		t.Fatalf("recurring = %+v, want NETFLIX.COM only", doc.Recurring)
	}
	if doc.Recurring[0].CatalogCandidate {
		t.Error("NETFLIX.COM is in the catalog and must not be flagged as a candidate")
	}
	if len(doc.Subscriptions) != 2 || doc.Subscriptions[0].Entry.Name != "Gym" {
		t.Fatalf("subscriptions = %+v, want Gym then Netflix by name", doc.Subscriptions)
	}
	if doc.Subscriptions[1].State != subscriptions.OnTrack {
		t.Errorf("Netflix state = %s, want on-track", doc.Subscriptions[1].State)
	}
	if doc.Totals.Net.String() != "158.57" {
		t.Errorf("net = %s, want 158.57", doc.Totals.Net)
	}

	if calls.Load() != 1 {
		t.Errorf("sources listed %d times, want 1", calls.Load())
	}
	assertAnalyses(t, m, `cardspend_analyses_total{status="success"} 1`)
}

func assertAnalyses(t *testing.T, m *metrics.Metrics, lines ...string) {
	t.Helper()
	expected := "# HELP cardspend_analyses_total Total dashboard analyses by outcome.\n" +
		"# TYPE cardspend_analyses_total counter\n" +
		strings.Join(lines, "\n") + "\n"
	if err := testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "cardspend_analyses_total"); err != nil {
		t.Error(err)
	}
}

func TestAnalysisService_LoadsPerRequest(t *testing.T) {
	var calls atomic.Int32
	svc := NewAnalysisService(staticProvider(t, &calls, statementCSV), nil, nil, nil, DefaultAnalysisConfig(), quietLogger())

	for i := 0; i < 2; i++ {
		doc, err := svc.Dashboard(context.Background(), Request{})
		if err != nil {
			t.Fatalf("Dashboard() error = %v", err)
		}
		if len(doc.Subscriptions) != 0 {
			t.Errorf("no catalog should give no subscriptions, got %d", len(doc.Subscriptions))
		}
	}
	if calls.Load() != 2 {
		t.Errorf("sources listed %d times, want 2 (results are not retained)", calls.Load())
	}
}

type failingRules struct{ err error }

func (f failingRules) Load(context.Context) (business.Rules, error) { return nil, f.err }

func TestAnalysisService_BusinessRules(t *testing.T) {
	var calls atomic.Int32
	rules := business.Static{{Service: "Bistro", Category: "Client Meals", Patterns: []string{"BISTRO"}}}
	svc := NewAnalysisService(staticProvider(t, &calls, statementCSV), nil, nil, nil, DefaultAnalysisConfig(), quietLogger(), WithBusinessRules(rules))

	doc, err := svc.Dashboard(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if doc.Business == nil {
		t.Fatal("expected a business section")
	}
	if doc.Business.Expenses.String() != "80.00" || len(doc.Business.Services) != 1 || doc.Business.Services[0].Category != "Client Meals" {
		t.Errorf("unexpected business section %+v", doc.Business)
	}

	plain := NewAnalysisService(staticProvider(t, &calls, statementCSV), nil, nil, nil, DefaultAnalysisConfig(), quietLogger(), WithBusinessRules(nil))
	doc, err = plain.Dashboard(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if doc.Business != nil {
		t.Errorf("nil rules should leave the section out, got %+v", doc.Business)
	}

	boom := errors.New("rules unreadable")
	broken := NewAnalysisService(staticProvider(t, &calls, statementCSV), nil, nil, nil, DefaultAnalysisConfig(), quietLogger(), WithBusinessRules(failingRules{err: boom}))
	if _, err := broken.Dashboard(context.Background(), Request{}); !errors.Is(err, boom) {
		t.Errorf("Dashboard() error = %v, want %v", err, boom)
	}
}

func TestAnalysisService_Errors(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		req     Request
		wantErr func(error) bool
		status  string
		loads   int32
	}{
		{
			name:    "filter leaves nothing",
			csv:     statementCSV,
			req:     Request{Year: 2020},
			wantErr: func(err error) bool { return errors.Is(err, core.ErrEmptyData) },
			status:  `cardspend_analyses_total{status="empty"} 1`,
			loads:   1,
		},
		{
			name: "missing column",
			csv:  "Date,Amount,Card,Description\n01/03/2024,15.49,1234,NETFLIX.COM\n",
			req:  Request{},
			wantErr: func(err error) bool {
				var se *core.SchemaError
				return errors.As(err, &se) && se.Field == "Category"
			},
			status: `cardspend_analyses_total{status="schema_error"} 1`,
			loads:  1,
		},
		{
			name:    "month without year",
			csv:     statementCSV,
			req:     Request{Month: 3},
			wantErr: func(err error) bool { return errors.Is(err, ErrInvalidRequest) },
		},
		{
			name:    "bad sort",
			csv:     statementCSV,
			req:     Request{Sort: "date"},
			wantErr: func(err error) bool { return errors.Is(err, ErrInvalidRequest) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			m := metrics.New()
			svc := NewAnalysisService(staticProvider(t, &calls, tt.csv), netflixCatalog(), nil, m, DefaultAnalysisConfig(), quietLogger())

			_, err := svc.Dashboard(context.Background(), tt.req)
			if err == nil || !tt.wantErr(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			if calls.Load() != tt.loads {
				t.Errorf("sources listed %d times, want %d", calls.Load(), tt.loads)
			}
			if tt.status != "" {
				assertAnalyses(t, m, tt.status)
			}
		})
	}
}

func TestAnalysisService_Filter(t *testing.T) {
	var calls atomic.Int32
	svc := NewAnalysisService(staticProvider(t, &calls, statementCSV), netflixCatalog(), nil, nil, DefaultAnalysisConfig(), quietLogger())

	doc, err := svc.Dashboard(context.Background(), Request{Year: 2024, Month: 2})
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if doc.Totals.Gross.String() != "95.49" {
		t.Errorf("gross = %s, want 95.49", doc.Totals.Gross)
	}
	if len(doc.Period.Months) != 1 || doc.Period.Months[0] != "2024-02" {
		t.Errorf("months = %v, want [2024-02]", doc.Period.Months)
	}
}

func TestAnalysisService_Diagnostics(t *testing.T) {
	csv := statementCSV + "04/01/2024,abc,1234,Dining,BISTRO\n"
	var calls atomic.Int32
	m := metrics.New()
	svc := NewAnalysisService(staticProvider(t, &calls, csv), nil, nil, m, DefaultAnalysisConfig(), quietLogger())

	rep, err := svc.Diagnostics(context.Background())
	if err != nil {
		t.Fatalf("Diagnostics() error = %v", err)
	}
	if rep.RowsIngested != 6 || rep.UnparsedAmounts != 1 {
		t.Errorf("report = %+v, want 6 ingested and 1 unparsed amount", rep)
	}
}

func TestAnalysisService_RequestReport(t *testing.T) {
	var calls atomic.Int32
	provider := staticProvider(t, &calls, statementCSV)

	t.Run("disabled", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil)).With("component", "analysis")
		svc := NewAnalysisService(provider, nil, nil, nil, DefaultAnalysisConfig(), logger)
		if _, err := svc.RequestReport(context.Background(), Request{}); !errors.Is(err, ErrReportsDisabled) {
			t.Errorf("expected ErrReportsDisabled, got %v", err)
		}
		if out := buf.String(); !strings.Contains(out, "rejecting report request") || !strings.Contains(out, "component=analysis") {
			t.Errorf("warning should go through the service logger, got %q", out)
		}
	})

	t.Run("published", func(t *testing.T) {
		pub := &fakePublisher{}
		svc := NewAnalysisService(provider, nil, pub, metrics.New(), DefaultAnalysisConfig(), quietLogger())
		msg, err := svc.RequestReport(context.Background(), Request{Year: 2024, Month: 1, Sort: "Name"})
		if err != nil {
			t.Fatalf("RequestReport() error = %v", err)
		}
		if len(pub.published) != 1 || pub.published[0].ID != msg.ID {
			t.Fatalf("published = %+v", pub.published)
		}
		if msg.Sort != "name" || msg.Year != 2024 || msg.Month != 1 {
			t.Errorf("message = %+v", msg)
		}
	})

	t.Run("publish failure", func(t *testing.T) {
		boom := errors.New("broker down")
		svc := NewAnalysisService(provider, nil, &fakePublisher{err: boom}, nil, DefaultAnalysisConfig(), quietLogger())
		if _, err := svc.RequestReport(context.Background(), Request{}); !errors.Is(err, boom) {
			t.Errorf("expected wrapped publish error, got %v", err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		pub := &fakePublisher{}
		svc := NewAnalysisService(provider, nil, pub, nil, DefaultAnalysisConfig(), quietLogger())
		if _, err := svc.RequestReport(context.Background(), Request{Month: 13, Year: 2024}); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
		if len(pub.published) != 0 {
			t.Error("invalid requests must not be published")
		}
	})
}

func TestAnalysisService_CanceledCaller(t *testing.T) {
	var calls atomic.Int32
	svc := NewAnalysisService(staticProvider(t, &calls, statementCSV), nil, nil, nil, DefaultAnalysisConfig(), quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Dashboard(ctx, Request{}); err == nil {
		t.Error("expected an error for a canceled caller")
	}
}
