//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"cardspend/internal/ingest"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_ReadTransactions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	if os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON") == "" && os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	src, err := New(ctx, Config{
		SpreadsheetID:      spreadsheetID,
		Range:              os.Getenv("GOOGLE_SHEET_RANGE"),
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	snap, err := ingest.NewLoader(ingest.Options{}, nil).Load(ctx, src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Logf("loaded %d transactions from %s", len(snap.Transactions), src.Name())
}
