package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"fintrack/internal/core"
)

const transactionColumns = `id, owner_id, account_id, type, amount, category_id, description, date,
	recurring, recurrence_pattern, auto_generated, transfer_to_account_id, attachment_urls,
	created_at, updated_at`

type transactionStore struct{ q DBTX }

func scanTransaction(sc scanner) (core.Transaction, error) {
	var (
		tx                core.Transaction
		typ, pattern      string
		date, attachments string
		created, updated  string
	)
	if err := sc.Scan(&tx.ID, &tx.OwnerID, &tx.AccountID, &typ, &tx.Amount, &tx.CategoryID, &tx.Description, &date,
		&tx.Recurring, &pattern, &tx.AutoGenerated, &tx.TransferToAccountID, &attachments,
		&created, &updated); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(typ)
	tx.RecurrencePattern = core.RecurrencePattern(pattern)

	var err error
	if tx.Date, err = parseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s date: %w", tx.ID, err)
	}
	if attachments != "" && attachments != "[]" {
		if err := json.Unmarshal([]byte(attachments), &tx.AttachmentURLs); err != nil {
			return core.Transaction{}, fmt.Errorf("transaction %s attachments: %w", tx.ID, err)
		}
	}
	if tx.CreatedAt, err = parseTime(created); err != nil {
		return core.Transaction{}, err
	}
	if tx.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (s transactionStore) Get(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, classify("get transaction", err)
	}
	return tx, nil
}

func (s transactionStore) Save(ctx context.Context, tx core.Transaction) error {
	attachments := []byte("[]")
	if len(tx.AttachmentURLs) > 0 {
		var err error
		if attachments, err = json.Marshal(tx.AttachmentURLs); err != nil {
			return core.Internal("encode attachments", err)
		}
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			type = excluded.type,
			amount = excluded.amount,
			category_id = excluded.category_id,
			description = excluded.description,
			date = excluded.date,
			recurring = excluded.recurring,
			recurrence_pattern = excluded.recurrence_pattern,
			auto_generated = excluded.auto_generated,
			transfer_to_account_id = excluded.transfer_to_account_id,
			attachment_urls = excluded.attachment_urls,
			updated_at = excluded.updated_at
		WHERE transactions.owner_id = excluded.owner_id`,
		tx.ID, tx.OwnerID, tx.AccountID, string(tx.Type), tx.Amount, tx.CategoryID, tx.Description, formatDate(tx.Date),
		tx.Recurring, string(tx.RecurrencePattern), tx.AutoGenerated, tx.TransferToAccountID, string(attachments),
		formatTime(tx.CreatedAt), formatTime(tx.UpdatedAt))
	if err != nil {
		return classify("save transaction", err)
	}
	return affected(res, "transaction", tx.ID)
}

func (s transactionStore) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return classify("delete transaction", err)
	}
	return affected(res, "transaction", id)
}

func (s transactionStore) FindRecurringBefore(ctx context.Context, monthStart core.Date) ([]core.Transaction, error) {
	return s.list(ctx, "find recurring transactions",
		`recurring = 1 AND date < ?`, formatDate(monthStart))
}

func (s transactionStore) ExistsByOwnerAndDescription(ctx context.Context, ownerID, description string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM transactions WHERE owner_id = ? AND description = ?)`,
		ownerID, description).Scan(&exists)
	if err != nil {
		return false, classify("transaction exists", err)
	}
	return exists, nil
}

func (s transactionStore) ListByAccount(ctx context.Context, ownerID, accountID string) ([]core.Transaction, error) {
	return s.list(ctx, "list account transactions",
		`owner_id = ? AND (account_id = ? OR (type = 'transfer' AND transfer_to_account_id = ?))`,
		ownerID, accountID, accountID)
}

func (s transactionStore) ListByCategoryBetween(ctx context.Context, ownerID, categoryID string, from, to core.Date) ([]core.Transaction, error) {
	return s.list(ctx, "list category transactions",
		`owner_id = ? AND category_id = ? AND date >= ? AND date < ?`,
		ownerID, categoryID, formatDate(from), formatDate(to))
}

func (s transactionStore) list(ctx context.Context, op, where string, args ...any) ([]core.Transaction, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE `+where+` ORDER BY date, created_at, id`, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	out, err := collect(rows, scanTransaction)
	if err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}
