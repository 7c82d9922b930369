package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldReferer       = "referer"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldYear          = "year"
	FieldMonth         = "month"
	FieldSort          = "sort"
	FieldTransactions  = "transactions"
	FieldRecurring     = "recurring_merchants"
	FieldSubscriptions = "subscriptions"
	FieldReportID      = "report_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentIngest    = "ingest"
	ComponentAnalysis  = "analysis"
	ComponentCatalog   = "catalog"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpAnalyze  = "analyze"
	OpLoad     = "load"
	OpMatch    = "match"
	OpRender   = "render"
	OpPublish  = "publish"
	OpImport   = "import"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields builds key/value pairs for slog in insertion order.
type LogFields []any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields, 0, 16)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	return append(f, FieldComponent, component)
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	return append(f, FieldRequestID, requestID)
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	return append(f, FieldClientIP, ip)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		return append(f, FieldError, err.Error())
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	return append(f, FieldOperation, op)
}

// WithPeriod adds the requested year and month; zero values are omitted.
func (f LogFields) WithPeriod(year, month int) LogFields {
	if year != 0 {
		f = append(f, FieldYear, year)
	}
	if month != 0 {
		f = append(f, FieldMonth, month)
	}
	return f
}

// WithAnalysis adds the headline counts of a dashboard run.
func (f LogFields) WithAnalysis(sort string, transactions, recurring, subscriptions int) LogFields {
	return append(f,
		FieldSort, sort,
		FieldTransactions, transactions,
		FieldRecurring, recurring,
		FieldSubscriptions, subscriptions)
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f = append(f, FieldMethod, method, FieldPath, path)
	if query != "" {
		f = append(f, FieldQuery, query)
	}
	if userAgent != "" {
		f = append(f, FieldUserAgent, userAgent)
	}
	if referer != "" {
		f = append(f, FieldReferer, referer)
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	return append(f, FieldStatusCode, statusCode, FieldDuration, durationMs, FieldSuccess, success)
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	return []any(f)
}
