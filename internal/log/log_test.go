package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Component: ComponentHTTP, Format: "json", Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo)

	logger.Info("one")
	logger.WithComponent(ComponentAnalysis).With("k", "v").Info("two")
	logger.Debug("hidden")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (debug filtered)", len(lines))
	}
	if lines[0][FieldComponent] != ComponentHTTP {
		t.Errorf("component = %v", lines[0][FieldComponent])
	}
	if lines[1][FieldComponent] != ComponentAnalysis || lines[1]["k"] != "v" {
		t.Errorf("second line = %v", lines[1])
	}
	if strings.Count(buf.String(), `"component"`) != 2 {
		t.Errorf("component key should appear once per line:\n%s", buf.String())
	}
}

func TestLogFieldsOrder(t *testing.T) {
	f := NewFields().
		WithOperation(OpAnalyze).
		WithPeriod(2024, 0).
		WithError(nil).
		WithError(errors.New("boom"))

	want := []any{FieldOperation, OpAnalyze, FieldYear, 2024, FieldError, "boom"}
	got := f.ToSlice()
	if len(got) != len(want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMiddlewareCarriesLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, slog.LevelInfo)

	h := Middleware(logger)(
		RequestIDMiddleware(func(r *http.Request) string { return r.Header.Get("X-Request-ID") })(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				FromContext(r.Context()).InfoContext(r.Context(), "inside")
			})))

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("X-Request-ID", "req_1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0][FieldRequestID] != "req_1" || lines[0][FieldComponent] != ComponentHTTP {
		t.Errorf("lines = %v", lines)
	}
}

func TestFromContextDefault(t *testing.T) {
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Errorf("Component() = %q, want unknown", got)
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{503, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(newBufferLogger(&buf, slog.LevelDebug))
		req := httptest.NewRequest(http.MethodGet, "/x?year=2024", nil)
		sl.LogHTTPEnd(context.Background(), req, tt.status, 12, "10.0.0.1")

		lines := decodeLines(t, &buf)
		if len(lines) != 1 {
			t.Fatalf("status %d: got %d lines", tt.status, len(lines))
		}
		if lines[0]["level"] != tt.level {
			t.Errorf("status %d: level = %v, want %s", tt.status, lines[0]["level"], tt.level)
		}
		if lines[0][FieldQuery] != "year=2024" || lines[0][FieldStatusCode] != float64(tt.status) {
			t.Errorf("status %d: fields = %v", tt.status, lines[0])
		}
	}
}
