package storage

import (
	"context"
	"database/sql"
	"errors"

	"fintrack/internal/core"
)

const goalColumns = `g.id, g.owner_id, g.name, g.description, g.target_amount, g.current_amount,
	g.deadline, g.priority, g.completed, g.savings_account_id, g.created_at, g.updated_at`

type goalStore struct{ q DBTX }

func scanGoal(sc scanner) (core.Goal, error) {
	var (
		g                core.Goal
		deadline, prio   string
		created, updated string
	)
	if err := sc.Scan(&g.ID, &g.OwnerID, &g.Name, &g.Description, &g.TargetAmount, &g.CurrentAmount,
		&deadline, &prio, &g.Completed, &g.SavingsAccountID, &created, &updated); err != nil {
		return core.Goal{}, err
	}
	g.Priority = core.GoalPriority(prio)
	var err error
	if g.Deadline, err = parseDate(deadline); err != nil {
		return core.Goal{}, err
	}
	if g.CreatedAt, err = parseTime(created); err != nil {
		return core.Goal{}, err
	}
	if g.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Goal{}, err
	}
	return g, nil
}

func (s goalStore) Get(ctx context.Context, ownerID, id string) (core.Goal, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals g WHERE g.id = ? AND g.owner_id = ?`, id, ownerID)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, core.NotFound("goal", id)
	}
	if err != nil {
		return core.Goal{}, classify("get goal", err)
	}
	if g.DependencyGoalIDs, err = s.dependencies(ctx, g.ID); err != nil {
		return core.Goal{}, err
	}
	return g, nil
}

func (s goalStore) ListByOwner(ctx context.Context, ownerID string) ([]core.Goal, error) {
	return s.list(ctx, "list goals",
		`SELECT `+goalColumns+` FROM goals g WHERE g.owner_id = ? ORDER BY g.created_at, g.id`, ownerID)
}

func (s goalStore) FindDependents(ctx context.Context, ownerID, goalID string) ([]core.Goal, error) {
	return s.list(ctx, "find dependent goals", `
		SELECT `+goalColumns+` FROM goals g
		JOIN goal_dependencies d ON d.goal_id = g.id
		WHERE g.owner_id = ? AND d.depends_on_id = ?
		ORDER BY g.created_at, g.id`, ownerID, goalID)
}

// Save upserts the goal row and replaces its dependency edges.
func (s goalStore) Save(ctx context.Context, g core.Goal) error {
	prio := g.Priority
	if prio == "" {
		prio = core.PriorityMedium
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO goals (id, owner_id, name, description, target_amount, current_amount,
			deadline, priority, completed, savings_account_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			target_amount = excluded.target_amount,
			current_amount = excluded.current_amount,
			deadline = excluded.deadline,
			priority = excluded.priority,
			completed = excluded.completed,
			savings_account_id = excluded.savings_account_id,
			updated_at = excluded.updated_at
		WHERE goals.owner_id = excluded.owner_id`,
		g.ID, g.OwnerID, g.Name, g.Description, g.TargetAmount, g.CurrentAmount,
		formatDate(g.Deadline), string(prio), g.Completed, g.SavingsAccountID,
		formatTime(g.CreatedAt), formatTime(g.UpdatedAt))
	if err != nil {
		return classify("save goal", err)
	}
	if err := affected(res, "goal", g.ID); err != nil {
		return err
	}

	if _, err := s.q.ExecContext(ctx, `DELETE FROM goal_dependencies WHERE goal_id = ?`, g.ID); err != nil {
		return classify("clear goal dependencies", err)
	}
	for i, dep := range g.DependencyGoalIDs {
		if _, err := s.q.ExecContext(ctx,
			`INSERT INTO goal_dependencies (goal_id, depends_on_id, position) VALUES (?, ?, ?)`,
			g.ID, dep, i); err != nil {
			return classify("save goal dependency", err)
		}
	}
	return nil
}

// Delete removes the goal; its outgoing edges go with it by cascade.
func (s goalStore) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return classify("delete goal", err)
	}
	return affected(res, "goal", id)
}

// list reads goal rows first and their edges afterwards, so no two result
// sets are open on the connection at once.
func (s goalStore) list(ctx context.Context, op, query string, args ...any) ([]core.Goal, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	goals, err := collect(rows, scanGoal)
	if err != nil {
		return nil, classify(op, err)
	}
	for i := range goals {
		if goals[i].DependencyGoalIDs, err = s.dependencies(ctx, goals[i].ID); err != nil {
			return nil, err
		}
	}
	return goals, nil
}

func (s goalStore) dependencies(ctx context.Context, goalID string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT depends_on_id FROM goal_dependencies WHERE goal_id = ? ORDER BY position`, goalID)
	if err != nil {
		return nil, classify("load goal dependencies", err)
	}
	deps, err := collect(rows, func(sc scanner) (string, error) {
		var id string
		return id, sc.Scan(&id)
	})
	if err != nil {
		return nil, classify("load goal dependencies", err)
	}
	return deps, nil
}

const contributionColumns = `id, goal_id, owner_id, amount, note, transaction_id, created_at`

type contributionStore struct{ q DBTX }

func scanContribution(sc scanner) (core.GoalContribution, error) {
	var (
		c       core.GoalContribution
		created string
	)
	if err := sc.Scan(&c.ID, &c.GoalID, &c.OwnerID, &c.Amount, &c.Note, &c.TransactionID, &created); err != nil {
		return core.GoalContribution{}, err
	}
	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return core.GoalContribution{}, err
	}
	return c, nil
}

func (s contributionStore) Get(ctx context.Context, ownerID, id string) (core.GoalContribution, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+contributionColumns+` FROM goal_contributions WHERE id = ? AND owner_id = ?`, id, ownerID)
	c, err := scanContribution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.GoalContribution{}, core.NotFound("contribution", id)
	}
	if err != nil {
		return core.GoalContribution{}, classify("get contribution", err)
	}
	return c, nil
}

func (s contributionStore) Save(ctx context.Context, c core.GoalContribution) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO goal_contributions (`+contributionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			goal_id = excluded.goal_id,
			amount = excluded.amount,
			note = excluded.note,
			transaction_id = excluded.transaction_id
		WHERE goal_contributions.owner_id = excluded.owner_id`,
		c.ID, c.GoalID, c.OwnerID, c.Amount, c.Note, c.TransactionID, formatTime(c.CreatedAt))
	if err != nil {
		return classify("save contribution", err)
	}
	return affected(res, "contribution", c.ID)
}

func (s contributionStore) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM goal_contributions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return classify("delete contribution", err)
	}
	return affected(res, "contribution", id)
}

func (s contributionStore) FindByTransaction(ctx context.Context, ownerID, transactionID string) (core.GoalContribution, bool, error) {
	if transactionID == "" {
		return core.GoalContribution{}, false, nil
	}
	row := s.q.QueryRowContext(ctx,
		`SELECT `+contributionColumns+` FROM goal_contributions WHERE owner_id = ? AND transaction_id = ?`,
		ownerID, transactionID)
	c, err := scanContribution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.GoalContribution{}, false, nil
	}
	if err != nil {
		return core.GoalContribution{}, false, classify("find contribution", err)
	}
	return c, true, nil
}

func (s contributionStore) ListByGoal(ctx context.Context, ownerID, goalID string) ([]core.GoalContribution, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+contributionColumns+` FROM goal_contributions
		WHERE owner_id = ? AND goal_id = ?
		ORDER BY created_at, id`, ownerID, goalID)
	if err != nil {
		return nil, classify("list contributions", err)
	}
	out, err := collect(rows, scanContribution)
	if err != nil {
		return nil, classify("list contributions", err)
	}
	return out, nil
}
