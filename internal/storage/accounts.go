package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const accountColumns = `id, owner_id, name, type, initial_balance, current_balance, currency,
	description, archived, version, created_at, updated_at`

type accountStore struct{ q DBTX }

func scanAccount(sc scanner) (core.Account, error) {
	var (
		a                core.Account
		typ              string
		created, updated string
	)
	if err := sc.Scan(&a.ID, &a.OwnerID, &a.Name, &typ, &a.InitialBalance, &a.CurrentBalance, &a.Currency,
		&a.Description, &a.Archived, &a.Version, &created, &updated); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	var err error
	if a.CreatedAt, err = parseTime(created); err != nil {
		return core.Account{}, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

func (s accountStore) Get(ctx context.Context, ownerID, id string) (core.Account, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ? AND owner_id = ?`, id, ownerID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.NotFound("account", id)
	}
	if err != nil {
		return core.Account{}, classify("get account", err)
	}
	return a, nil
}

func (s accountStore) ListByOwner(ctx context.Context, ownerID string) ([]core.Account, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, classify("list accounts", err)
	}
	out, err := collect(rows, scanAccount)
	if err != nil {
		return nil, classify("list accounts", err)
	}
	return out, nil
}

// Save inserts the account or updates its metadata. The balance columns of an
// existing row are left alone.
func (s accountStore) Save(ctx context.Context, a core.Account) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			initial_balance = excluded.initial_balance,
			currency = excluded.currency,
			description = excluded.description,
			archived = excluded.archived,
			version = accounts.version + 1,
			updated_at = excluded.updated_at
		WHERE accounts.owner_id = excluded.owner_id`,
		a.ID, a.OwnerID, a.Name, string(a.Type), a.InitialBalance, a.CurrentBalance, a.Currency,
		a.Description, a.Archived, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return classify("save account", err)
	}
	return affected(res, "account", a.ID)
}

func (s accountStore) AdjustBalance(ctx context.Context, ownerID, id string, delta decimal.Decimal) (core.Account, error) {
	a, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return core.Account{}, err
	}
	balance := a.CurrentBalance.Add(delta)
	now := time.Now().UTC()

	res, err := s.q.ExecContext(ctx, `
		UPDATE accounts SET current_balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND owner_id = ? AND version = ?`,
		balance, formatTime(now), id, ownerID, a.Version)
	if err != nil {
		return core.Account{}, classify("adjust balance", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Account{}, core.Internal("rows affected", err)
	}
	if n == 0 {
		return core.Account{}, core.Conflict("account", id)
	}

	a.CurrentBalance = balance
	a.Version++
	a.UpdatedAt = now
	return a, nil
}

func (s accountStore) ExistsForOwner(ctx context.Context, id, ownerID string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = ? AND owner_id = ?)`, id, ownerID).Scan(&exists)
	if err != nil {
		return false, classify("account exists", err)
	}
	return exists, nil
}
