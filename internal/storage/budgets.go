package storage

import (
	"context"
	"database/sql"
	"errors"

	"fintrack/internal/core"
)

const budgetColumns = `id, owner_id, category_id, year, month, allocated_amount, spent_amount,
	alert_threshold, alert_80_sent, alert_100_sent, created_at, updated_at`

type budgetStore struct{ q DBTX }

func scanBudget(sc scanner) (core.Budget, error) {
	var (
		b                core.Budget
		created, updated string
	)
	if err := sc.Scan(&b.ID, &b.OwnerID, &b.CategoryID, &b.Year, &b.Month, &b.AllocatedAmount, &b.SpentAmount,
		&b.AlertThreshold, &b.AlertAt80Sent, &b.AlertAt100Sent, &created, &updated); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.CreatedAt, err = parseTime(created); err != nil {
		return core.Budget{}, err
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (s budgetStore) Get(ctx context.Context, ownerID, id string) (core.Budget, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND owner_id = ?`, id, ownerID)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.NotFound("budget", id)
	}
	if err != nil {
		return core.Budget{}, classify("get budget", err)
	}
	return b, nil
}

func (s budgetStore) FindByOwnerCategoryPeriod(ctx context.Context, ownerID, categoryID string, year, month int) (core.Budget, bool, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE owner_id = ? AND category_id = ? AND year = ? AND month = ?`,
		ownerID, categoryID, year, month)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, false, nil
	}
	if err != nil {
		return core.Budget{}, false, classify("find budget", err)
	}
	return b, true, nil
}

func (s budgetStore) ListByOwnerPeriod(ctx context.Context, ownerID string, year, month int) ([]core.Budget, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE owner_id = ? AND year = ? AND month = ?
		ORDER BY category_id`,
		ownerID, year, month)
	if err != nil {
		return nil, classify("list budgets", err)
	}
	out, err := collect(rows, scanBudget)
	if err != nil {
		return nil, classify("list budgets", err)
	}
	return out, nil
}

// Save upserts by id. A second bucket for the same owner, category and
// month violates the unique key and comes back as a conflict.
func (s budgetStore) Save(ctx context.Context, b core.Budget) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category_id = excluded.category_id,
			year = excluded.year,
			month = excluded.month,
			allocated_amount = excluded.allocated_amount,
			spent_amount = excluded.spent_amount,
			alert_threshold = excluded.alert_threshold,
			alert_80_sent = excluded.alert_80_sent,
			alert_100_sent = excluded.alert_100_sent,
			updated_at = excluded.updated_at
		WHERE budgets.owner_id = excluded.owner_id`,
		b.ID, b.OwnerID, b.CategoryID, b.Year, b.Month, b.AllocatedAmount, b.SpentAmount,
		b.AlertThreshold, b.AlertAt80Sent, b.AlertAt100Sent, formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	if err != nil {
		return classify("save budget", err)
	}
	return affected(res, "budget", b.ID)
}

func (s budgetStore) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return classify("delete budget", err)
	}
	return affected(res, "budget", id)
}
