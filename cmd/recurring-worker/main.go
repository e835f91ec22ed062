package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	once := flag.Bool("once", false, "Run a single sweep and exit")
	flag.Parse()

	app, err := cli.Bootstrap(context.Background(), log.ComponentRecurrence)
	if err != nil {
		log.New(log.DefaultConfig()).Error("Failed to start recurring-worker", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.Logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()
	logger := app.Logger
	cfg := app.Config

	generator := services.NewRecurrenceGenerator(app.Backend, app.Ledger.Transactions, logger, cfg.RecurringItemTimeout)

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	if *once {
		if _, err := generator.Generate(ctx, time.Now()); err != nil {
			logger.Error("Recurring sweep failed", log.FieldError, err)
			app.Close()
			os.Exit(1)
		}
		return
	}

	scheduler := services.NewRecurrenceScheduler(generator, services.RecurrenceSchedulerConfig{
		Interval: cfg.RecurringInterval,
	}, logger)

	logger.Info("Starting recurring-worker",
		"interval", cfg.RecurringInterval,
		"backend", cfg.DataBackend)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		logger.Info("Shutting down recurring-worker...")
		return scheduler.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Recurring-worker stopped with error", log.FieldError, err)
		app.Close()
		os.Exit(1)
	}
	logger.Info("Recurring-worker shutdown complete")
}
