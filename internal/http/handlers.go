package http

import (
	"context"
	"errors"
	"net/http"

	"cardspend/internal/amqp"
	"cardspend/internal/core"
	"cardspend/internal/dashboard"
	"cardspend/internal/ingest"
	applog "cardspend/internal/log"
	"cardspend/internal/services"
	"cardspend/internal/subscriptions"
)

type recurringResponse struct {
	Period    dashboard.Period          `json:"period"`
	Sort      dashboard.SortOrder       `json:"sort"`
	Recurring []dashboard.RecurringItem `json:"recurring"`
}

type subscriptionsResponse struct {
	Period        dashboard.Period       `json:"period"`
	Sort          dashboard.SortOrder    `json:"sort"`
	Subscriptions []subscriptions.Status `json:"subscriptions"`
	Summary       subscriptions.Summary  `json:"summary"`
}

type diagnosticsResponse struct {
	Error       string        `json:"error,omitempty"`
	Diagnostics ingest.Report `json:"diagnostics"`
}

type catalogEntry struct {
	subscriptions.Entry
	ExpectedMonthly core.Money `json:"expectedMonthly"`
}

type reportAccepted struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// dashboard parses the request and runs the pipeline, writing the error
// response itself when it fails.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) (dashboard.Document, bool) {
	req, err := parseAnalysisRequest(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return dashboard.Document{}, false
	}

	doc, err := s.analyzer.Dashboard(r.Context(), req)
	if err != nil {
		s.writeAnalysisError(w, r, err)
		return dashboard.Document{}, false
	}

	requestLog(r).LogAnalysisServed(r.Context(), req.Year, req.Month, string(doc.Sort),
		doc.Totals.TransactionCount, len(doc.Recurring), len(doc.Subscriptions))
	return doc, true
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, recurringResponse{
		Period:    doc.Period,
		Sort:      doc.Sort,
		Recurring: doc.Recurring,
	})
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.dashboard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, subscriptionsResponse{
		Period:        doc.Period,
		Sort:          doc.Sort,
		Subscriptions: doc.Subscriptions,
		Summary:       doc.SubscriptionSummary,
	})
}

// handleDiagnostics returns the ingestion report even when the load
// failed, alongside the error.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	rep, err := s.analyzer.Diagnostics(r.Context())
	if err != nil {
		status, msg := errorStatus(err)
		if status >= http.StatusInternalServerError {
			requestLog(r).LogError(r.Context(), "Diagnostics failed", err, applog.OpLoad, applog.NewFields())
		}
		writeJSON(w, status, diagnosticsResponse{Error: msg, Diagnostics: rep})
		return
	}
	writeJSON(w, http.StatusOK, diagnosticsResponse{Diagnostics: rep})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := s.analyzer.Catalog(r.Context())
	if err != nil {
		requestLog(r).LogError(r.Context(), "Failed to load catalog", err, applog.OpLoad, applog.NewFields())
		writeError(w, http.StatusInternalServerError, "failed to load subscription catalog")
		return
	}

	entries := make([]catalogEntry, 0, len(cat))
	for _, e := range cat {
		entries = append(entries, catalogEntry{Entry: e, ExpectedMonthly: e.ExpectedMonthly()})
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleRequestReport queues a report built by the worker. Parameters come
// from the query string or a form body.
func (s *Server) handleRequestReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	req, err := parseAnalysisRequest(r.Form)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := s.analyzer.RequestReport(r.Context(), req)
	switch {
	case err == nil:
		applog.FromContext(r.Context()).InfoContext(r.Context(), "Report request queued",
			applog.FieldReportID, msg.ID.String(),
			applog.FieldYear, req.Year,
			applog.FieldMonth, req.Month)
		writeJSON(w, http.StatusAccepted, reportAccepted{ID: msg.ID.String(), Status: "queued"})
	case errors.Is(err, services.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrReportsDisabled):
		writeError(w, http.StatusServiceUnavailable, "report queue not configured")
	case errors.Is(err, amqp.ErrCircuitOpen):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "report queue unavailable")
	default:
		requestLog(r).LogError(r.Context(), "Failed to queue report", err, applog.OpPublish, applog.NewFields())
		writeError(w, http.StatusBadGateway, "failed to queue report")
	}
}

func (s *Server) writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		requestLog(r).LogError(r.Context(), "Analysis failed", err, applog.OpAnalyze, applog.NewFields())
	}
	writeError(w, status, msg)
}

// errorStatus maps pipeline errors to a status and a client-safe message.
func errorStatus(err error) (int, string) {
	var schemaErr *core.SchemaError
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrEmptyData):
		return http.StatusNotFound, core.ErrEmptyData.Error()
	case errors.As(err, &schemaErr):
		return http.StatusUnprocessableEntity, schemaErr.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "analysis timed out"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
