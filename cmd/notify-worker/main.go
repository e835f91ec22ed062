package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/worker"
)

func main() {
	app, err := cli.Bootstrap(context.Background(), log.ComponentNotify)
	if err != nil {
		log.New(log.DefaultConfig()).Error("Failed to start notify-worker", log.FieldError, err)
		os.Exit(1)
	}
	logger := app.Logger
	cfg := app.Config

	if cfg.AMQPURL == "" {
		logger.Error("notify-worker requires AMQP_URL")
		app.Close()
		os.Exit(1)
	}

	// Consuming uses its own connection; the one in app only publishes.
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		app.Close()
		os.Exit(1)
	}

	seen := cache.NewSeenSet(cfg.NotifyCacheSize, cfg.NotifyCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(seen)
	caches.StartCleanup(time.Minute)

	w := worker.NewNotifyWorker(app.Backend.Notifications(), seen, logger)

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	logger.Info("Starting notify-worker",
		"queue", cfg.AMQPQueue,
		"dedupe_cache_size", cfg.NotifyCacheSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeEvents(gctx, w.HandleEvent)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumption failed", log.FieldError, err)
	}

	logger.Info("Shutting down notify-worker...")
	caches.Stop()
	if cerr := client.Close(); cerr != nil {
		logger.Warn("Failed to close AMQP client", log.FieldError, cerr)
	}
	if cerr := app.Close(); cerr != nil {
		logger.Warn("Failed to close backend", log.FieldError, cerr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
	logger.Info("Notify-worker shutdown complete")
}
