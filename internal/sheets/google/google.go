package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cardspend/internal/ingest"
	"cardspend/internal/resilience"
)

// Ensure interface conformance
var _ ingest.Source = (*SheetSource)(nil)

// Config selects the sheet range holding a transaction export.
type Config struct {
	SpreadsheetID string
	// Range is an A1 range such as "Transactions!A:F"; the first row is
	// the header.
	Range              string
	ServiceAccountJSON string
	ServiceAccountFile string
	// OAuthTokenFile, written by cmd/sheets-auth, selects user credentials
	// instead of a service account. The OAuth client comes from
	// OAuthClientJSON or OAuthClientFile.
	OAuthTokenFile  string
	OAuthClientJSON string
	OAuthClientFile string
}

// SheetSource reads a transaction export from a Google Sheets range.
// Reads go through a circuit breaker and are retried with backoff.
type SheetSource struct {
	svc           *gsheet.Service
	spreadsheetID string
	rng           string
	breaker       *gobreaker.CircuitBreaker
	retry         resilience.Config
}

// New creates a SheetSource from Service Account or OAuth credentials.
func New(ctx context.Context, cfg Config) (*SheetSource, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.Range), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, rng string) *SheetSource {
	if strings.TrimSpace(rng) == "" {
		rng = "Transactions!A:Z"
	}
	return &SheetSource{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		rng:           rng,
		breaker:       resilience.NewCircuitBreaker("sheets:" + spreadsheetID),
		retry:         resilience.DefaultConfig(),
	}
}

// newSheetsService initializes a read-only Sheets Service. An OAuth user
// token is used when OAuthTokenFile is set; otherwise Service Account
// credentials, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	ts, err := tokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// WithHTTPClient bypasses the auth options, so the token source is
	// layered onto the pooled transport here.
	client := newHTTPClientWithPooling()
	client.Transport = &oauth2.Transport{Source: ts, Base: client.Transport}

	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func tokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	if tokenFile := strings.TrimSpace(cfg.OAuthTokenFile); tokenFile != "" {
		clientJSON, err := readClientCredentials(cfg.OAuthClientJSON, cfg.OAuthClientFile)
		if err != nil {
			return nil, err
		}
		oauthCfg, err := OAuthConfig(clientJSON)
		if err != nil {
			return nil, err
		}
		tok, err := LoadToken(tokenFile)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Creating Google Sheets service with OAuth token",
			"token_file", tokenFile,
			"scope", gsheet.SpreadsheetsReadonlyScope)
		return oauthCfg.TokenSource(ctx, tok), nil
	}

	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_OAUTH_TOKEN_FILE)")
	}

	jwtCfg, err := googleoauth.JWTConfigFromJSON(credentialsJSON, gsheet.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"client_email", jwtCfg.Email,
		"scope", gsheet.SpreadsheetsReadonlyScope)
	return jwtCfg.TokenSource(ctx), nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling
// and bounded timeouts for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

func (s *SheetSource) Name() string {
	return fmt.Sprintf("sheets:%s/%s", s.spreadsheetID, s.rng)
}

// Read fetches the configured range and converts it into a table.
func (s *SheetSource) Read(ctx context.Context) (ingest.Table, error) {
	if s.svc == nil {
		return ingest.Table{}, errors.New("sheets service not initialized")
	}

	var resp *gsheet.ValueRange
	err := resilience.RetryWithBackoff(ctx, s.retry, func() error {
		out, err := s.breaker.Execute(func() (interface{}, error) {
			return s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.rng).
				ValueRenderOption("FORMATTED_VALUE").
				Context(ctx).Do()
		})
		if err != nil {
			if !retryable(err) {
				return resilience.Permanent(err)
			}
			return err
		}
		resp = out.(*gsheet.ValueRange)
		return nil
	})
	if err != nil {
		return ingest.Table{}, fmt.Errorf("read %s: %w", s.rng, err)
	}

	return toTable(s.Name(), resp.Values), nil
}

// retryable reports whether a Sheets error may succeed on a later attempt.
// Client errors other than rate limiting are final.
func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	return true
}
