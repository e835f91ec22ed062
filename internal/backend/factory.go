package backend

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/ledger"
	"fintrack/internal/ledger/memory"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store ledger.Backend
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = storage.Open(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite backend: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		store = memory.New()
		f.logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	publisher, closePublisher := f.createPublisher(ctx, config)

	return &BackendResult{
		Backend:   store,
		Publisher: publisher,
		Cleanup: func() error {
			return errors.Join(closePublisher(), store.Close())
		},
	}, nil
}

// createPublisher connects to the broker when one is configured. A broker
// that cannot be reached is not fatal: the ledger runs without events.
func (f *DefaultFactory) createPublisher(ctx context.Context, config Config) (ledger.EventPublisher, CleanupFunc) {
	noop := func() error { return nil }
	if config.AMQPURL == "" {
		f.logger.InfoContext(ctx, "AMQP disabled - ledger events will not be published")
		return ledger.NopPublisher{}, noop
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		return ledger.NopPublisher{}, noop
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client, client.Close
}
