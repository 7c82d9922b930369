package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"cardspend/internal/aggregate"
	"cardspend/internal/amqp"
	"cardspend/internal/business"
	"cardspend/internal/core"
	"cardspend/internal/dashboard"
	"cardspend/internal/ingest"
	"cardspend/internal/metrics"
	"cardspend/internal/recurring"
	"cardspend/internal/subscriptions"
)

// ErrReportsDisabled is returned by RequestReport when no publisher is
// configured.
var ErrReportsDisabled = errors.New("report queue not configured")

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// SourceProvider lists the sources to read for one analysis. It is called
// per request so files added to the data directory are picked up.
type SourceProvider func(ctx context.Context) ([]ingest.Source, error)

// ReportPublisher queues report requests.
type ReportPublisher interface {
	PublishReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error
}

// Request selects the period and ordering of one analysis. Zero values
// mean all data and amount order.
type Request struct {
	Year  int
	Month int
	Sort  string
}

// Validate rejects requests the builder would refuse anyway, so they never
// trigger a load.
func (r Request) Validate() error {
	if r.Year < 0 || r.Year > 9999 {
		return fmt.Errorf("invalid year: %d", r.Year)
	}
	if r.Month < 0 || r.Month > 12 {
		return fmt.Errorf("invalid month: %d", r.Month)
	}
	if r.Month != 0 && r.Year == 0 {
		return fmt.Errorf("month filter requires a year")
	}
	if _, err := dashboard.ParseSortOrder(r.Sort); err != nil {
		return err
	}
	return nil
}

func (r Request) key() string {
	sort, _ := dashboard.ParseSortOrder(r.Sort)
	return strconv.Itoa(r.Year) + "-" + strconv.Itoa(r.Month) + "-" + string(sort)
}

// AnalysisConfig holds the knobs of the pipeline.
type AnalysisConfig struct {
	Ingest    ingest.Options
	Recurring recurring.Params
	// LoadTimeout bounds a shared load; it outlives the caller that started it.
	LoadTimeout time.Duration
}

func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Ingest:      ingest.DefaultOptions(),
		Recurring:   recurring.DefaultParams(),
		LoadTimeout: time.Minute,
	}
}

// AnalysisService runs the load, aggregate and match pipeline for each
// request. Concurrent identical requests share one run; nothing is kept
// once it returns.
type AnalysisService struct {
	sources   SourceProvider
	catalog   subscriptions.Source
	business  business.Source
	publisher ReportPublisher
	metrics   *metrics.Metrics
	loader    *ingest.Loader
	config    AnalysisConfig
	logger    *slog.Logger

	group singleflight.Group
}

// Option configures optional parts of an AnalysisService.
type Option func(*AnalysisService)

// WithBusinessRules adds the business-expense section to every dashboard.
// A nil source leaves it out.
func WithBusinessRules(src business.Source) Option {
	return func(s *AnalysisService) {
		s.business = src
	}
}

// NewAnalysisService wires the pipeline. catalog, publisher and m may be
// nil: no catalog means every entry list is empty, no publisher disables
// RequestReport and no metrics skips recording.
func NewAnalysisService(sources SourceProvider, catalog subscriptions.Source, publisher ReportPublisher, m *metrics.Metrics, cfg AnalysisConfig, logger *slog.Logger, opts ...Option) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultAnalysisConfig().LoadTimeout
	}
	s := &AnalysisService{
		sources:   sources,
		catalog:   catalog,
		publisher: publisher,
		metrics:   m,
		loader:    ingest.NewLoader(cfg.Ingest, logger),
		config:    cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dashboard loads every source and builds the document for req.
func (s *AnalysisService) Dashboard(ctx context.Context, req Request) (dashboard.Document, error) {
	if err := req.Validate(); err != nil {
		return dashboard.Document{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := ctx.Err(); err != nil {
		return dashboard.Document{}, err
	}

	ch := s.group.DoChan("dashboard:"+req.key(), func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.LoadTimeout)
		defer cancel()
		return s.run(runCtx, req)
	})

	select {
	case <-ctx.Done():
		return dashboard.Document{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return dashboard.Document{}, res.Err
		}
		if res.Shared {
			s.logger.DebugContext(ctx, "Analysis shared with a concurrent request", "key", req.key())
		}
		return res.Val.(dashboard.Document), nil
	}
}

func (s *AnalysisService) run(ctx context.Context, req Request) (dashboard.Document, error) {
	start := time.Now()

	snap, err := s.load(ctx)
	if err != nil {
		s.recordOutcome(err)
		return dashboard.Document{}, err
	}

	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		s.recordOutcome(err)
		return dashboard.Document{}, err
	}

	rules, err := s.loadBusinessRules(ctx)
	if err != nil {
		s.recordOutcome(err)
		return dashboard.Document{}, err
	}

	sort, _ := dashboard.ParseSortOrder(req.Sort)
	opts := dashboard.DefaultOptions()
	opts.Filter = aggregate.Filter{Year: req.Year, Month: time.Month(req.Month)}
	opts.Sort = sort
	opts.Recurring = s.config.Recurring
	opts.Business = rules

	buildStart := time.Now()
	doc, err := dashboard.Build(snap, catalog, opts)
	if s.metrics != nil {
		s.metrics.RecordDuration("build", time.Since(buildStart))
	}
	s.recordOutcome(err)
	if err != nil {
		return dashboard.Document{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordDuration("total", time.Since(start))
		s.metrics.SetRecurring(len(doc.Recurring))
	}

	s.logger.InfoContext(ctx, "Analysis completed",
		"year", req.Year,
		"month", req.Month,
		"sort", sort,
		"transactions", doc.Totals.TransactionCount,
		"recurring", len(doc.Recurring),
		"subscriptions", len(doc.Subscriptions),
		"duration", time.Since(start))

	return doc, nil
}

// Diagnostics loads every source and returns only the ingestion report.
// Loads that fail still return the report gathered so far.
func (s *AnalysisService) Diagnostics(ctx context.Context) (ingest.Report, error) {
	ch := s.group.DoChan("diagnostics", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.LoadTimeout)
		defer cancel()
		snap, err := s.load(runCtx)
		return snap.Report, err
	})

	select {
	case <-ctx.Done():
		return ingest.Report{}, ctx.Err()
	case res := <-ch:
		rep, _ := res.Val.(ingest.Report)
		return rep, res.Err
	}
}

// Catalog returns the configured subscription catalog.
func (s *AnalysisService) Catalog(ctx context.Context) (subscriptions.Catalog, error) {
	return s.loadCatalog(ctx)
}

// RequestReport queues an asynchronous dashboard rendering.
func (s *AnalysisService) RequestReport(ctx context.Context, req Request) (*amqp.ReportRequestMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, rejecting report request")
		return nil, ErrReportsDisabled
	}

	msg := amqp.NewReportRequestMessage(req.Year, req.Month, req.Sort)
	if err := s.publisher.PublishReportRequest(ctx, msg); err != nil {
		if s.metrics != nil {
			s.metrics.IncrReport("publish_failed")
		}
		return nil, fmt.Errorf("publish report request: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncrReport("published")
	}
	return msg, nil
}

func (s *AnalysisService) load(ctx context.Context) (ingest.Snapshot, error) {
	start := time.Now()
	sources, err := s.sources(ctx)
	if err != nil {
		return ingest.Snapshot{}, fmt.Errorf("list sources: %w", err)
	}

	snap, err := s.loader.Load(ctx, sources...)
	if s.metrics != nil {
		s.metrics.RecordIngest(snap.Report)
		s.metrics.RecordDuration("load", time.Since(start))
	}
	return snap, err
}

func (s *AnalysisService) loadCatalog(ctx context.Context) (subscriptions.Catalog, error) {
	if s.catalog == nil {
		return subscriptions.Catalog{}, nil
	}
	cat, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subscription catalog: %w", err)
	}
	return cat, nil
}

func (s *AnalysisService) loadBusinessRules(ctx context.Context) (business.Rules, error) {
	if s.business == nil {
		return nil, nil
	}
	rules, err := s.business.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load business rules: %w", err)
	}
	return rules, nil
}

func (s *AnalysisService) recordOutcome(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncrAnalysis(outcome(err))
}

func outcome(err error) string {
	var schemaErr *core.SchemaError
	switch {
	case err == nil:
		return metrics.StatusSuccess
	case errors.Is(err, core.ErrEmptyData):
		return metrics.StatusEmpty
	case errors.As(err, &schemaErr):
		return metrics.StatusSchema
	default:
		return metrics.StatusError
	}
}
