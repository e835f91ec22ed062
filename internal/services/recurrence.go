package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// recurrenceMonthLayout is appended to a source description to name its copy
// for a month, e.g. "Rent March 2025".
const recurrenceMonthLayout = "January 2006"

// RecurrenceResult summarizes one sweep.
type RecurrenceResult struct {
	Checked   int
	Processed int
	Created   int
	Skipped   int
	Failed    int
}

// RecurrenceGenerator copies recurring transactions into the current month.
// The copy's description doubles as the de-duplication key, so running a
// sweep twice in the same month creates nothing the second time.
type RecurrenceGenerator struct {
	uow         ledger.UnitOfWork
	ledger      *TransactionLedger
	logger      *log.Logger
	itemTimeout time.Duration
}

// NewRecurrenceGenerator creates a generator. itemTimeout bounds each copy; zero
// means no per-item deadline.
func NewRecurrenceGenerator(uow ledger.UnitOfWork, txLedger *TransactionLedger, logger *log.Logger, itemTimeout time.Duration) *RecurrenceGenerator {
	return &RecurrenceGenerator{
		uow:         uow,
		ledger:      txLedger,
		logger:      logger.WithComponent(log.ComponentRecurrence),
		itemTimeout: itemTimeout,
	}
}

// RecurrenceDescription returns the description a copy of src made at now carries.
func RecurrenceDescription(src core.Transaction, now time.Time) string {
	return strings.TrimSpace(src.Description + " " + now.Format(recurrenceMonthLayout))
}

// Generate runs one sweep at now. Failures on a single source are logged and
// counted; only failing to load the candidates fails the sweep.
func (g *RecurrenceGenerator) Generate(ctx context.Context, now time.Time) (RecurrenceResult, error) {
	var result RecurrenceResult
	monthStart := core.DateOf(now).MonthStart()

	var candidates []core.Transaction
	err := g.uow.Do(ctx, func(ctx context.Context, st ledger.Stores) error {
		var err error
		candidates, err = st.Transactions().FindRecurringBefore(ctx, monthStart)
		return err
	})
	if err != nil {
		return result, fmt.Errorf("find recurring transactions: %w", err)
	}

	g.logger.InfoContext(ctx, "Processing recurring transactions",
		"total_active", len(candidates),
		"processing_date", now.Format(time.DateOnly))

	for _, src := range candidates {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Checked++
		created, err := g.generateOne(ctx, src, now)
		switch {
		case err != nil:
			result.Failed++
			g.logger.ErrorContext(ctx, "Failed to create transaction from recurring source",
				log.FieldOwnerID, src.OwnerID,
				log.FieldTransactionID, src.ID,
				log.FieldDescription, src.Description,
				log.FieldError, err)
		case created:
			result.Processed++
			result.Created++
		default:
			result.Processed++
			result.Skipped++
		}
	}

	g.logger.InfoContext(ctx, "Recurring transaction processing complete",
		"checked", result.Checked,
		"created", result.Created,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return result, nil
}

func (g *RecurrenceGenerator) generateOne(ctx context.Context, src core.Transaction, now time.Time) (bool, error) {
	if g.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.itemTimeout)
		defer cancel()
	}

	in := core.TransactionInput{
		AccountID:           src.AccountID,
		Type:                src.Type,
		Amount:              src.Amount,
		CategoryID:          src.CategoryID,
		Description:         RecurrenceDescription(src, now),
		Date:                core.DateOf(now),
		TransferToAccountID: src.TransferToAccountID,
	}
	tx, created, err := g.ledger.CreateGenerated(ctx, src.OwnerID, in)
	if errors.Is(err, context.DeadlineExceeded) {
		return false, fmt.Errorf("timed out after %s: %w", g.itemTimeout, err)
	}
	if err != nil {
		return false, err
	}
	if created {
		g.logger.InfoContext(ctx, "Created transaction from recurring source",
			log.FieldOwnerID, src.OwnerID,
			log.FieldTransactionID, tx.ID,
			"source_id", src.ID,
			log.FieldDescription, tx.Description,
			log.FieldAmount, tx.Amount.String())
	} else {
		g.logger.DebugContext(ctx, "Recurring transaction already generated this month",
			log.FieldOwnerID, src.OwnerID,
			"source_id", src.ID,
			log.FieldDescription, in.Description)
	}
	return created, nil
}
