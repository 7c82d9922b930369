// Package http serves dashboards, diagnostics and report requests as JSON.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cardspend/internal/amqp"
	"cardspend/internal/dashboard"
	"cardspend/internal/ingest"
	applog "cardspend/internal/log"
	"cardspend/internal/metrics"
	"cardspend/internal/services"
	"cardspend/internal/subscriptions"
)

// Analyzer is the pipeline behind the API. *services.AnalysisService
// implements it.
type Analyzer interface {
	Dashboard(ctx context.Context, req services.Request) (dashboard.Document, error)
	Diagnostics(ctx context.Context) (ingest.Report, error)
	Catalog(ctx context.Context) (subscriptions.Catalog, error)
	RequestReport(ctx context.Context, req services.Request) (*amqp.ReportRequestMessage, error)
}

// Server wraps http.Server with the API routes.
type Server struct {
	*http.Server
	analyzer    Analyzer
	metrics     *metrics.Metrics
	logger      *applog.Logger
	rateLimiter *rateLimiter
	ready       func(context.Context) error
	rateLimit   int
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request metrics into m and serves it on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the request logger.
func WithLogger(l *applog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithReadiness sets the check behind /readyz.
func WithReadiness(check func(context.Context) error) Option {
	return func(s *Server) { s.ready = check }
}

// WithRateLimit sets the per-client requests per minute on /api routes.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.rateLimit = perMinute }
}

// NewServer builds the router and returns a server listening on addr.
func NewServer(addr string, analyzer Analyzer, opts ...Option) *Server {
	s := &Server{analyzer: analyzer}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(applog.ComponentHTTP)
	s.rateLimiter = newRateLimiter(s.rateLimit)

	s.Server = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limitRate)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/recurring", s.handleRecurring)
		r.Get("/subscriptions", s.handleSubscriptions)
		r.Get("/diagnostics", s.handleDiagnostics)
		r.Get("/catalog", s.handleCatalog)
		r.Post("/reports", s.handleRequestReport)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Shutdown stops the rate limiter and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.stop()
	return s.Server.Shutdown(ctx)
}

// requestLogger logs and measures each request once it completes. The
// route label is the matched pattern so path values do not explode the
// metric cardinality.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		if detectSuspiciousRequest(r) {
			s.metrics.IncrSecurityEvent("suspicious")
			applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(), "Suspicious request detected",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		elapsed := time.Since(start)
		s.metrics.RecordHTTPRequest(route, r.Method, status, elapsed)
		requestLog(r).LogHTTPEnd(r.Context(), r, status, elapsed.Milliseconds(), clientIP)
	})
}

func (s *Server) limitRate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		if !s.rateLimiter.allow(clientIP) {
			s.metrics.IncrSecurityEvent("rate_limited")
			applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLog(r *http.Request) *applog.StructuredLogger {
	return applog.NewStructuredLogger(applog.FromContext(r.Context()))
}
