package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

func TestBootstrap(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"memory", map[string]string{"DATA_BACKEND": "memory"}},
		{"sqlite", map[string]string{"DATA_BACKEND": "sqlite", "SQLITE_DB_PATH": filepath.Join(t.TempDir(), "db", "fintrack.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AMQP_URL", "")
			t.Setenv("LOG_LEVEL", "error")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			app, err := Bootstrap(context.Background(), "test")
			if err != nil {
				t.Fatalf("Bootstrap() error = %v", err)
			}
			defer app.Close()

			if _, ok := app.Publisher.(ledger.NopPublisher); !ok {
				t.Errorf("Publisher = %T, want NopPublisher", app.Publisher)
			}
			acct, err := app.Ledger.Accounts.CreateAccount(context.Background(), "alice", core.AccountInput{
				Name: "Cash", Type: core.AccountCash, InitialBalance: decimal.NewFromInt(10), Currency: "EUR",
			})
			if err != nil {
				t.Fatalf("CreateAccount() error = %v", err)
			}
			if !acct.CurrentBalance.Equal(decimal.NewFromInt(10)) {
				t.Errorf("balance = %s, want 10", acct.CurrentBalance)
			}
		})
	}
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	t.Setenv("DATA_BACKEND", "sheets")
	if _, err := Bootstrap(context.Background(), "test"); err == nil {
		t.Error("Bootstrap() with an unknown backend should fail")
	}
}

func TestLedgerConfig(t *testing.T) {
	cfg := LedgerConfig(&config.Config{LedgerMaxRetries: 5, DefaultCurrency: "USD"})
	if cfg.MaxRetries != 5 || cfg.DefaultCurrency != "USD" || cfg.Clock == nil {
		t.Errorf("LedgerConfig() = %+v", cfg)
	}
}

func TestSetupLogger(t *testing.T) {
	if _, err := SetupLogger("verbose", "test"); err == nil {
		t.Error("SetupLogger() accepted an unknown level")
	}
	logger, err := SetupLogger("debug", "test")
	if err != nil || logger.Component() != "test" {
		t.Errorf("SetupLogger() = %v, %v", logger, err)
	}
}
