package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

// BalanceMutator applies and reverses signed balance deltas. Each call is a
// single AdjustBalance on the store, so the read-modify-write of a balance is
// never split across calls.
type BalanceMutator struct {
	accounts ledger.AccountStore
}

func NewBalanceMutator(accounts ledger.AccountStore) *BalanceMutator {
	return &BalanceMutator{accounts: accounts}
}

// Apply adds amount to the balance when isCredit, subtracts it otherwise.
func (m *BalanceMutator) Apply(ctx context.Context, ownerID, accountID string, amount decimal.Decimal, isCredit bool) (core.Account, error) {
	delta := amount
	if !isCredit {
		delta = amount.Neg()
	}
	return m.accounts.AdjustBalance(ctx, ownerID, accountID, delta)
}

// ApplyTransfer debits from and then credits to.
func (m *BalanceMutator) ApplyTransfer(ctx context.Context, ownerID, fromID, toID string, amount decimal.Decimal) error {
	if _, err := m.Apply(ctx, ownerID, fromID, amount, false); err != nil {
		return err
	}
	_, err := m.Apply(ctx, ownerID, toID, amount, true)
	return err
}

// ReverseTransfer credits from and then debits to, the exact opposite of ApplyTransfer.
func (m *BalanceMutator) ReverseTransfer(ctx context.Context, ownerID, fromID, toID string, amount decimal.Decimal) error {
	if _, err := m.Apply(ctx, ownerID, fromID, amount, true); err != nil {
		return err
	}
	_, err := m.Apply(ctx, ownerID, toID, amount, false)
	return err
}

// ApplyEffect applies a transaction's balance effect: income credits the
// account, expense debits it, transfer moves the amount to the destination.
func (m *BalanceMutator) ApplyEffect(ctx context.Context, tx core.Transaction) error {
	switch tx.Type {
	case core.Income:
		_, err := m.Apply(ctx, tx.OwnerID, tx.AccountID, tx.Amount, true)
		return err
	case core.Expense:
		_, err := m.Apply(ctx, tx.OwnerID, tx.AccountID, tx.Amount, false)
		return err
	case core.Transfer:
		return m.ApplyTransfer(ctx, tx.OwnerID, tx.AccountID, tx.TransferToAccountID, tx.Amount)
	}
	return core.BadRequest("invalid transaction type %q", tx.Type)
}

// ReverseEffect undoes ApplyEffect for the same transaction. An account that
// vanished since the effect was applied is an invariant violation.
func (m *BalanceMutator) ReverseEffect(ctx context.Context, tx core.Transaction) error {
	var err error
	switch tx.Type {
	case core.Income:
		_, err = m.Apply(ctx, tx.OwnerID, tx.AccountID, tx.Amount, false)
	case core.Expense:
		_, err = m.Apply(ctx, tx.OwnerID, tx.AccountID, tx.Amount, true)
	case core.Transfer:
		err = m.ReverseTransfer(ctx, tx.OwnerID, tx.AccountID, tx.TransferToAccountID, tx.Amount)
	default:
		return core.Internal(fmt.Sprintf("transaction %s has invalid type %q", tx.ID, tx.Type), nil)
	}
	if errors.Is(err, core.ErrNotFound) {
		return core.Internal(fmt.Sprintf("reverse transaction %s", tx.ID), err)
	}
	return err
}
