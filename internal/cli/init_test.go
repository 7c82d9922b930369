package cli

import (
	"testing"
	"time"

	"cardspend/internal/config"
)

func TestAnalysisConfig(t *testing.T) {
	cfg := &config.Config{
		DateLayout:            "2006-01-02",
		IngestConcurrency:     3,
		StrictSchema:          true,
		RecurringMinMonths:    4,
		RecurringMaxVariation: 0.2,
		AnalysisTimeout:       45 * time.Second,
	}

	got := AnalysisConfig(cfg)
	if got.Ingest.DateLayout != "2006-01-02" || got.Ingest.Concurrency != 3 || !got.Ingest.Strict {
		t.Errorf("ingest options = %+v", got.Ingest)
	}
	if got.Ingest.Aliases == nil {
		t.Error("default aliases should be kept")
	}
	if got.Recurring.MinMonths != 4 || got.Recurring.MaxVariation != 0.2 {
		t.Errorf("recurring params = %+v", got.Recurring)
	}
	if got.LoadTimeout != 45*time.Second {
		t.Errorf("LoadTimeout = %v, want 45s", got.LoadTimeout)
	}
}

func TestInitAMQPDisabled(t *testing.T) {
	cfg := &config.Config{LogLevel: "error"}
	if client := InitAMQP(SetupLogger(cfg, "test"), cfg); client != nil {
		t.Error("no client expected without AMQP_URL")
	}
}
