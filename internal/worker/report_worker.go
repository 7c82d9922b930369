package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"cardspend/internal/amqp"
	"cardspend/internal/core"
	"cardspend/internal/dashboard"
	"cardspend/internal/metrics"
	"cardspend/internal/services"
)

// Renderer builds the dashboard document for a request.
type Renderer interface {
	Dashboard(ctx context.Context, req services.Request) (dashboard.Document, error)
}

// Report is the file written for each request.
type Report struct {
	ID          uuid.UUID           `json:"id"`
	RequestedAt time.Time           `json:"requestedAt"`
	GeneratedAt time.Time           `json:"generatedAt"`
	Year        int                 `json:"year,omitempty"`
	Month       int                 `json:"month,omitempty"`
	Sort        string              `json:"sort,omitempty"`
	Error       string              `json:"error,omitempty"`
	Dashboard   *dashboard.Document `json:"dashboard,omitempty"`
}

// ReportWorker renders queued report requests into REPORT_DIR.
type ReportWorker struct {
	renderer Renderer
	dir      string
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewReportWorker(renderer Renderer, dir string, m *metrics.Metrics) (*ReportWorker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	return &ReportWorker{
		renderer: renderer,
		dir:      dir,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// Path returns where the report for id is written.
func (w *ReportWorker) Path(id uuid.UUID) string {
	return filepath.Join(w.dir, "dashboard-"+id.String()+".json")
}

// HandleReportRequest renders one request. Requests that can never succeed
// (no data, schema problems, bad parameters) still produce a report
// carrying the error and are acknowledged; other failures are returned so
// the message is retried.
func (w *ReportWorker) HandleReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error {
	slog.InfoContext(ctx, "Rendering report",
		"id", msg.ID,
		"year", msg.Year,
		"month", msg.Month,
		"sort", msg.Sort)

	report := Report{
		ID:          msg.ID,
		RequestedAt: msg.RequestedAt,
		Year:        msg.Year,
		Month:       msg.Month,
		Sort:        msg.Sort,
	}

	doc, err := w.renderer.Dashboard(ctx, services.Request{Year: msg.Year, Month: msg.Month, Sort: msg.Sort})
	switch {
	case err == nil:
		report.Dashboard = &doc
	case isPermanent(err):
		slog.WarnContext(ctx, "Report cannot be rendered", "id", msg.ID, "error", err)
		report.Error = err.Error()
	default:
		w.count("failed")
		return fmt.Errorf("render report %s: %w", msg.ID, err)
	}
	report.GeneratedAt = w.now().UTC()

	path := w.Path(msg.ID)
	if err := writeJSONAtomic(path, report); err != nil {
		w.count("failed")
		return fmt.Errorf("write report %s: %w", msg.ID, err)
	}

	if report.Error != "" {
		w.count("rejected")
	} else {
		w.count("rendered")
	}
	slog.InfoContext(ctx, "Report written",
		"id", msg.ID,
		"path", path,
		"error", report.Error)

	return nil
}

func (w *ReportWorker) count(outcome string) {
	if w.metrics != nil {
		w.metrics.IncrReport(outcome)
	}
}

func isPermanent(err error) bool {
	var schemaErr *core.SchemaError
	return errors.Is(err, core.ErrEmptyData) ||
		errors.Is(err, services.ErrInvalidRequest) ||
		errors.As(err, &schemaErr)
}

// writeJSONAtomic writes v next to path and renames it into place so
// readers never see a partial report.
func writeJSONAtomic(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
