// Package cli provides common CLI initialization utilities.
// This package consolidates the bootstrap shared by cmd/fintrack,
// cmd/notify-worker and cmd/recurring-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

// App is everything a binary needs once bootstrapped.
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	Backend   ledger.Backend
	Publisher ledger.EventPublisher
	Ledger    *services.Ledger

	cleanup backend.CleanupFunc
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger initializes structured logging at the given level and makes it
// the process default.
func SetupLogger(level, component string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := log.New(log.Config{Level: lvl, Component: component})
	log.SetDefault(logger)
	return logger, nil
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Bootstrap loads .env and configuration, then opens the configured backend
// and event publisher and builds the ledger services on top.
func Bootstrap(ctx context.Context, component string) (*App, error) {
	LoadEnvFile()

	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger, err := SetupLogger(cfg.LogLevel, component)
	if err != nil {
		return nil, err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Backend:   res.Backend,
		Publisher: res.Publisher,
		Ledger:    services.NewLedger(res.Backend, res.Publisher, logger, LedgerConfig(cfg)),
		cleanup:   res.Cleanup,
	}, nil
}

// LedgerConfig maps application settings onto the ledger services.
func LedgerConfig(cfg *config.Config) services.LedgerConfig {
	def := services.DefaultLedgerConfig()
	def.MaxRetries = cfg.LedgerMaxRetries
	def.DefaultCurrency = cfg.DefaultCurrency
	return def
}

// Close releases the backend and the publisher.
func (a *App) Close() error {
	if a.cleanup == nil {
		return nil
	}
	return a.cleanup()
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
