// Package memory is an in-process ledger backend for tests and local runs.
//
// A unit of work runs against a private snapshot of the data and publishes only
// the rows it wrote. Commit fails with core.ErrConflict when another unit
// committed one of those rows first.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

type kind uint8

const (
	kindAccount kind = iota
	kindTransaction
	kindBudget
	kindGoal
	kindContribution
)

var kindNames = [...]string{"account", "transaction", "budget", "goal", "contribution"}

type rowKey struct {
	kind kind
	id   string
}

type state struct {
	accounts      map[string]core.Account
	transactions  map[string]core.Transaction
	budgets       map[string]core.Budget
	goals         map[string]core.Goal
	contributions map[string]core.GoalContribution
}

func newState() *state {
	return &state{
		accounts:      map[string]core.Account{},
		transactions:  map[string]core.Transaction{},
		budgets:       map[string]core.Budget{},
		goals:         map[string]core.Goal{},
		contributions: map[string]core.GoalContribution{},
	}
}

// clone is shallow: stored rows own their slices and are cloned on the way in and out.
func (st *state) clone() *state {
	return &state{
		accounts:      maps.Clone(st.accounts),
		transactions:  maps.Clone(st.transactions),
		budgets:       maps.Clone(st.budgets),
		goals:         maps.Clone(st.goals),
		contributions: maps.Clone(st.contributions),
	}
}

// copyRow moves one row from src to dst, deleting it from dst when src lacks it.
func copyRow(dst, src *state, k rowKey) {
	switch k.kind {
	case kindAccount:
		copyEntry(dst.accounts, src.accounts, k.id)
	case kindTransaction:
		copyEntry(dst.transactions, src.transactions, k.id)
	case kindBudget:
		copyEntry(dst.budgets, src.budgets, k.id)
	case kindGoal:
		copyEntry(dst.goals, src.goals, k.id)
	case kindContribution:
		copyEntry(dst.contributions, src.contributions, k.id)
	}
}

func copyEntry[V any](dst, src map[string]V, id string) {
	if v, ok := src[id]; ok {
		dst[id] = v
		return
	}
	delete(dst, id)
}

type Store struct {
	mu            sync.Mutex
	data          *state
	revs          map[rowKey]uint64
	notifications []core.Notification
}

var _ ledger.Backend = (*Store)(nil)

func New() *Store {
	return &Store{data: newState(), revs: map[rowKey]uint64{}}
}

// Do implements ledger.UnitOfWork.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, st ledger.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	u := &unit{
		data:  s.data.clone(),
		base:  maps.Clone(s.revs),
		dirty: map[rowKey]struct{}{},
	}
	s.mu.Unlock()

	if err := fn(ctx, u); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range u.dirty {
		if s.revs[k] != u.base[k] {
			return core.Conflict(kindNames[k.kind], k.id)
		}
	}
	for k := range u.dirty {
		copyRow(s.data, u.data, k)
		s.revs[k]++
	}
	return nil
}

func (s *Store) Notifications() ledger.NotificationStore { return notificationStore{s} }

func (s *Store) Close() error { return nil }

// unit is the Stores view of one in-flight unit of work.
type unit struct {
	data  *state
	base  map[rowKey]uint64
	dirty map[rowKey]struct{}
}

func (u *unit) touch(k kind, id string) { u.dirty[rowKey{k, id}] = struct{}{} }

func (u *unit) Accounts() ledger.AccountStore           { return accountStore{u} }
func (u *unit) Transactions() ledger.TransactionStore   { return transactionStore{u} }
func (u *unit) Budgets() ledger.BudgetStore             { return budgetStore{u} }
func (u *unit) Goals() ledger.GoalStore                 { return goalStore{u} }
func (u *unit) Contributions() ledger.ContributionStore { return contributionStore{u} }

type accountStore struct{ u *unit }

func (s accountStore) Get(_ context.Context, ownerID, id string) (core.Account, error) {
	a, ok := s.u.data.accounts[id]
	if !ok || a.OwnerID != ownerID {
		return core.Account{}, core.NotFound("account", id)
	}
	return a, nil
}

func (s accountStore) ListByOwner(_ context.Context, ownerID string) ([]core.Account, error) {
	var out []core.Account
	for _, a := range s.u.data.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b core.Account) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s accountStore) Save(_ context.Context, a core.Account) error {
	if prev, ok := s.u.data.accounts[a.ID]; ok {
		if prev.OwnerID != a.OwnerID {
			return core.NotFound("account", a.ID)
		}
		a.CurrentBalance = prev.CurrentBalance
		a.Version = prev.Version + 1
	} else {
		a.Version = 1
	}
	s.u.data.accounts[a.ID] = a
	s.u.touch(kindAccount, a.ID)
	return nil
}

func (s accountStore) AdjustBalance(ctx context.Context, ownerID, id string, delta decimal.Decimal) (core.Account, error) {
	a, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return core.Account{}, err
	}
	a.CurrentBalance = a.CurrentBalance.Add(delta)
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	s.u.data.accounts[id] = a
	s.u.touch(kindAccount, id)
	return a, nil
}

func (s accountStore) ExistsForOwner(_ context.Context, id, ownerID string) (bool, error) {
	a, ok := s.u.data.accounts[id]
	return ok && a.OwnerID == ownerID, nil
}

type transactionStore struct{ u *unit }

func (s transactionStore) Get(_ context.Context, ownerID, id string) (core.Transaction, error) {
	tx, ok := s.u.data.transactions[id]
	if !ok || tx.OwnerID != ownerID {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	return cloneTransaction(tx), nil
}

func (s transactionStore) Save(_ context.Context, tx core.Transaction) error {
	if prev, ok := s.u.data.transactions[tx.ID]; ok && prev.OwnerID != tx.OwnerID {
		return core.NotFound("transaction", tx.ID)
	}
	s.u.data.transactions[tx.ID] = cloneTransaction(tx)
	s.u.touch(kindTransaction, tx.ID)
	return nil
}

func (s transactionStore) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	delete(s.u.data.transactions, id)
	s.u.touch(kindTransaction, id)
	return nil
}

func (s transactionStore) FindRecurringBefore(_ context.Context, monthStart core.Date) ([]core.Transaction, error) {
	return s.filter(func(tx core.Transaction) bool {
		return tx.Recurring && tx.Date.Before(monthStart.Time)
	}), nil
}

func (s transactionStore) ExistsByOwnerAndDescription(_ context.Context, ownerID, description string) (bool, error) {
	for _, tx := range s.u.data.transactions {
		if tx.OwnerID == ownerID && tx.Description == description {
			return true, nil
		}
	}
	return false, nil
}

func (s transactionStore) ListByAccount(_ context.Context, ownerID, accountID string) ([]core.Transaction, error) {
	return s.filter(func(tx core.Transaction) bool {
		return tx.OwnerID == ownerID && tx.Touches(accountID)
	}), nil
}

func (s transactionStore) ListByCategoryBetween(_ context.Context, ownerID, categoryID string, from, to core.Date) ([]core.Transaction, error) {
	return s.filter(func(tx core.Transaction) bool {
		return tx.OwnerID == ownerID && tx.CategoryID == categoryID &&
			!tx.Date.Before(from.Time) && tx.Date.Before(to.Time)
	}), nil
}

func (s transactionStore) filter(keep func(core.Transaction) bool) []core.Transaction {
	var out []core.Transaction
	for _, tx := range s.u.data.transactions {
		if keep(tx) {
			out = append(out, cloneTransaction(tx))
		}
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		return cmp.Or(a.Date.Compare(b.Date.Time), a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func cloneTransaction(tx core.Transaction) core.Transaction {
	tx.AttachmentURLs = slices.Clone(tx.AttachmentURLs)
	return tx
}

type budgetStore struct{ u *unit }

func (s budgetStore) Get(_ context.Context, ownerID, id string) (core.Budget, error) {
	b, ok := s.u.data.budgets[id]
	if !ok || b.OwnerID != ownerID {
		return core.Budget{}, core.NotFound("budget", id)
	}
	return b, nil
}

func (s budgetStore) FindByOwnerCategoryPeriod(_ context.Context, ownerID, categoryID string, year, month int) (core.Budget, bool, error) {
	for _, b := range s.u.data.budgets {
		if b.OwnerID == ownerID && b.CategoryID == categoryID && b.Year == year && b.Month == month {
			return b, true, nil
		}
	}
	return core.Budget{}, false, nil
}

func (s budgetStore) ListByOwnerPeriod(_ context.Context, ownerID string, year, month int) ([]core.Budget, error) {
	var out []core.Budget
	for _, b := range s.u.data.budgets {
		if b.OwnerID == ownerID && b.Year == year && b.Month == month {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b core.Budget) int { return cmp.Compare(a.CategoryID, b.CategoryID) })
	return out, nil
}

func (s budgetStore) Save(_ context.Context, b core.Budget) error {
	if prev, ok := s.u.data.budgets[b.ID]; ok && prev.OwnerID != b.OwnerID {
		return core.NotFound("budget", b.ID)
	}
	// (owner, category, year, month) is unique
	for id, other := range s.u.data.budgets {
		if id != b.ID && other.OwnerID == b.OwnerID && other.CategoryID == b.CategoryID &&
			other.Year == b.Year && other.Month == b.Month {
			return core.Conflict("budget", other.ID)
		}
	}
	s.u.data.budgets[b.ID] = b
	s.u.touch(kindBudget, b.ID)
	return nil
}

func (s budgetStore) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	delete(s.u.data.budgets, id)
	s.u.touch(kindBudget, id)
	return nil
}

type goalStore struct{ u *unit }

func (s goalStore) Get(_ context.Context, ownerID, id string) (core.Goal, error) {
	g, ok := s.u.data.goals[id]
	if !ok || g.OwnerID != ownerID {
		return core.Goal{}, core.NotFound("goal", id)
	}
	return cloneGoal(g), nil
}

func (s goalStore) ListByOwner(_ context.Context, ownerID string) ([]core.Goal, error) {
	return s.filter(func(g core.Goal) bool { return g.OwnerID == ownerID }), nil
}

func (s goalStore) FindDependents(_ context.Context, ownerID, goalID string) ([]core.Goal, error) {
	return s.filter(func(g core.Goal) bool {
		return g.OwnerID == ownerID && g.HasDependency(goalID)
	}), nil
}

func (s goalStore) Save(_ context.Context, g core.Goal) error {
	if prev, ok := s.u.data.goals[g.ID]; ok && prev.OwnerID != g.OwnerID {
		return core.NotFound("goal", g.ID)
	}
	s.u.data.goals[g.ID] = cloneGoal(g)
	s.u.touch(kindGoal, g.ID)
	return nil
}

func (s goalStore) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	delete(s.u.data.goals, id)
	s.u.touch(kindGoal, id)
	return nil
}

func (s goalStore) filter(keep func(core.Goal) bool) []core.Goal {
	var out []core.Goal
	for _, g := range s.u.data.goals {
		if keep(g) {
			out = append(out, cloneGoal(g))
		}
	}
	slices.SortFunc(out, func(a, b core.Goal) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func cloneGoal(g core.Goal) core.Goal {
	g.DependencyGoalIDs = slices.Clone(g.DependencyGoalIDs)
	return g
}

type contributionStore struct{ u *unit }

func (s contributionStore) Get(_ context.Context, ownerID, id string) (core.GoalContribution, error) {
	c, ok := s.u.data.contributions[id]
	if !ok || c.OwnerID != ownerID {
		return core.GoalContribution{}, core.NotFound("contribution", id)
	}
	return c, nil
}

func (s contributionStore) Save(_ context.Context, c core.GoalContribution) error {
	if prev, ok := s.u.data.contributions[c.ID]; ok && prev.OwnerID != c.OwnerID {
		return core.NotFound("contribution", c.ID)
	}
	s.u.data.contributions[c.ID] = c
	s.u.touch(kindContribution, c.ID)
	return nil
}

func (s contributionStore) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	delete(s.u.data.contributions, id)
	s.u.touch(kindContribution, id)
	return nil
}

func (s contributionStore) FindByTransaction(_ context.Context, ownerID, transactionID string) (core.GoalContribution, bool, error) {
	for _, c := range s.u.data.contributions {
		if c.OwnerID == ownerID && c.TransactionID != "" && c.TransactionID == transactionID {
			return c, true, nil
		}
	}
	return core.GoalContribution{}, false, nil
}

func (s contributionStore) ListByGoal(_ context.Context, ownerID, goalID string) ([]core.GoalContribution, error) {
	var out []core.GoalContribution
	for _, c := range s.u.data.contributions {
		if c.OwnerID == ownerID && c.GoalID == goalID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b core.GoalContribution) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

type notificationStore struct{ s *Store }

// Save ignores a second notification for the same event.
func (n notificationStore) Save(_ context.Context, note core.Notification) error {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	for _, existing := range n.s.notifications {
		if note.EventID != "" && existing.EventID == note.EventID {
			return nil
		}
	}
	n.s.notifications = append(n.s.notifications, note)
	return nil
}

// ListByOwner returns newest first.
func (n notificationStore) ListByOwner(_ context.Context, ownerID string, unreadOnly bool) ([]core.Notification, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	var out []core.Notification
	for i := len(n.s.notifications) - 1; i >= 0; i-- {
		note := n.s.notifications[i]
		if note.OwnerID != ownerID || (unreadOnly && note.Read) {
			continue
		}
		out = append(out, note)
	}
	return out, nil
}

func (n notificationStore) MarkRead(_ context.Context, ownerID, id string) error {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	for i := range n.s.notifications {
		if n.s.notifications[i].ID == id && n.s.notifications[i].OwnerID == ownerID {
			n.s.notifications[i].Read = true
			return nil
		}
	}
	return core.NotFound("notification", id)
}
