package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cardspend/internal/ingest"
	"cardspend/internal/resilience"
)

const valuesBody = `{
  "range": "Transactions!A1:E3",
  "majorDimension": "ROWS",
  "values": [
    ["Date", "Amount", "Card", "Category", "Description"],
    ["01/05/2024", "15.49", "1234", "Entertainment", "NETFLIX.COM"],
    ["01/09/2024", "-4.00", "1234", "Dining", "REFUND CAFE"]
  ]
}`

func newTestSource(t *testing.T, handler http.HandlerFunc) *SheetSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	src := NewWithService(svc, "sheet-id", "Transactions!A:E")
	src.retry = resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
	return src
}

func TestNewMissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewMissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSheetSourceRead(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/spreadsheets/sheet-id/values/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(valuesBody))
	})

	table, err := src.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	txns, rep, err := ingest.Normalize(table, ingest.Options{})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(txns) != 2 || rep.RowsAccepted != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txns))
	}
	if txns[0].Source != src.Name() || txns[0].Amount.String() != "15.49" {
		t.Fatalf("unexpected transaction %+v", txns[0])
	}
}

func TestSheetSourceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":{"code":503,"message":"backend unavailable"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(valuesBody))
	})

	if _, err := src.Read(context.Background()); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestSheetSourceDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	})

	_, err := src.Read(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestSheetSourceNotInitialized(t *testing.T) {
	src := &SheetSource{}
	if _, err := src.Read(context.Background()); err == nil {
		t.Fatal("expected error for nil service")
	}
}

func TestRetryable(t *testing.T) {
	if retryable(errors.New("connection reset")) != true {
		t.Fatal("network errors should be retryable")
	}
}
