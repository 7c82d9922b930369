package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"cardspend/internal/ingest"
)

func TestMetricsRecord(t *testing.T) {
	m := New()
	m.IncrAnalysis(StatusSuccess)
	m.IncrAnalysis(StatusSuccess)
	m.IncrAnalysis(StatusEmpty)
	m.RecordIngest(ingest.Report{RowsIngested: 10, UnparsedAmounts: 2, SkippedCredits: 1, FailedSources: 1})
	m.SetRecurring(4)
	m.RecordDuration("build", 15*time.Millisecond)

	if got := testutil.ToFloat64(m.analysesTotal.WithLabelValues(StatusSuccess)); got != 2 {
		t.Errorf("success analyses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.rowsIngested); got != 10 {
		t.Errorf("rows ingested = %v, want 10", got)
	}
	if got := testutil.ToFloat64(m.rowsRejected.WithLabelValues("unparsed_amount")); got != 2 {
		t.Errorf("unparsed amounts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.recurringGauge); got != 4 {
		t.Errorf("recurring gauge = %v, want 4", got)
	}
}

func TestMetricsIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.IncrReport("published")
	if got := testutil.ToFloat64(b.reportsPublished.WithLabelValues("published")); got != 0 {
		t.Errorf("registries must not share state, got %v", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.IncrAnalysis(StatusSuccess)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `cardspend_analyses_total{status="success"} 1`) {
		t.Errorf("metrics output missing analyses counter:\n%s", body)
	}
}

func TestMetricsHTTP(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("/api/dashboard", http.MethodGet, http.StatusOK, 20*time.Millisecond)
	m.RecordHTTPRequest("/api/dashboard", http.MethodGet, http.StatusOK, 30*time.Millisecond)
	m.IncrSecurityEvent("rate_limited")

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/dashboard", "GET", "200")); got != 2 {
		t.Errorf("http requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.securityEvents.WithLabelValues("rate_limited")); got != 1 {
		t.Errorf("security events = %v, want 1", got)
	}
}
