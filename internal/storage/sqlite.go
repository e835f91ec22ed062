// Package storage is the SQLite ledger backend.
//
// A unit of work is one database transaction. Balance writes are guarded by the
// account version column, and a busy database or a lost version race surfaces
// as core.ErrConflict so the ledger retries the whole unit.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DBTX is the query surface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type Store struct {
	db     *sql.DB
	logger *log.Logger
}

var _ ledger.Backend = (*Store)(nil)

// DSN enables foreign keys and waits up to five seconds on a locked database.
func DSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Open creates the database file if needed and migrates it.
func Open(dbPath string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite has a single writer; one connection serializes units of work
	// inside this process.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.WithComponent(log.ComponentStorage).Info("SQLite ledger ready", "path", dbPath)
	return &Store{db: db, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

// Do implements ledger.UnitOfWork. Units must not nest: the pool holds a
// single connection.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, st ledger.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}

	if err := fn(ctx, unit{q: tx}); err != nil {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Rollback failed", log.FieldError, rerr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

func (s *Store) Notifications() ledger.NotificationStore { return notificationStore{q: s.db} }

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// unit is the Stores view of one open transaction.
type unit struct {
	q DBTX
}

func (u unit) Accounts() ledger.AccountStore           { return accountStore{u.q} }
func (u unit) Transactions() ledger.TransactionStore   { return transactionStore{u.q} }
func (u unit) Budgets() ledger.BudgetStore             { return budgetStore{u.q} }
func (u unit) Goals() ledger.GoalStore                 { return goalStore{u.q} }
func (u unit) Contributions() ledger.ContributionStore { return contributionStore{u.q} }

// classify maps driver errors onto ledger error kinds. Lock contention and
// uniqueness violations are conflicts; anything else is internal.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		return err
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		switch code & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return &core.Error{Kind: core.KindConflict, Msg: op + ": database is busy", Err: err}
		case sqlite3.SQLITE_CONSTRAINT:
			if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
				strings.Contains(se.Error(), "UNIQUE") {
				return &core.Error{Kind: core.KindConflict, Msg: op + ": duplicate row", Err: err}
			}
		}
	}
	return core.Internal(op, err)
}

// affected returns core.NotFound when res touched no row.
func affected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return core.Internal("rows affected", err)
	}
	if n == 0 {
		return core.NotFound(entity, id)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

func formatDate(d core.Date) string {
	return d.String()
}

func parseDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return core.Date{}, err
	}
	return core.Date{Time: t}, nil
}

// collect drains rows through scan and always closes them.
func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
