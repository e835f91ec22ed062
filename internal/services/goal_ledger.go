package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

// GoalLedger maintains goal progress, the completed flag and the dependency
// DAG. A goal is completed only while every prerequisite is completed; any
// change to that is propagated to dependents with a worklist, never recursion.
type GoalLedger struct {
	goals         ledger.GoalStore
	contributions ledger.ContributionStore
	emit          func(core.LedgerEvent)
}

func NewGoalLedger(goals ledger.GoalStore, contributions ledger.ContributionStore, emit func(core.LedgerEvent)) *GoalLedger {
	if emit == nil {
		emit = func(core.LedgerEvent) {}
	}
	return &GoalLedger{goals: goals, contributions: contributions, emit: emit}
}

// AddDependency makes depID a prerequisite of goalID. The edge is rejected
// when it already exists or when goalID is reachable from depID.
func (l *GoalLedger) AddDependency(ctx context.Context, ownerID, goalID, depID string) (core.Goal, error) {
	goal, err := l.goals.Get(ctx, ownerID, goalID)
	if err != nil {
		return core.Goal{}, err
	}
	if _, err := l.goals.Get(ctx, ownerID, depID); err != nil {
		return core.Goal{}, err
	}
	if goal.HasDependency(depID) {
		return core.Goal{}, core.ErrDuplicateDependency
	}
	all, err := l.goals.ListByOwner(ctx, ownerID)
	if err != nil {
		return core.Goal{}, fmt.Errorf("list goals: %w", err)
	}
	if NewDependencyGraph(all).WouldCycle(goalID, depID) {
		return core.Goal{}, core.ErrCircularDependency
	}
	goal.DependencyGoalIDs = append(goal.DependencyGoalIDs, depID)
	// A completed goal that gains an incomplete prerequisite is reopened.
	return l.settle(ctx, goal, goal.ReachedTarget())
}

// RemoveDependency drops the edge if present. Removing an edge cannot create a
// cycle, but it may let the goal complete.
func (l *GoalLedger) RemoveDependency(ctx context.Context, ownerID, goalID, depID string) (core.Goal, error) {
	goal, err := l.goals.Get(ctx, ownerID, goalID)
	if err != nil {
		return core.Goal{}, err
	}
	goal.DependencyGoalIDs = slices.DeleteFunc(goal.DependencyGoalIDs, func(id string) bool { return id == depID })
	return l.settle(ctx, goal, goal.ReachedTarget())
}

// ApplyContribution adds amount (negative for a reversal) to the goal's progress.
func (l *GoalLedger) ApplyContribution(ctx context.Context, ownerID, goalID string, amount decimal.Decimal) (core.Goal, error) {
	goal, err := l.goals.Get(ctx, ownerID, goalID)
	if err != nil {
		return core.Goal{}, err
	}
	wasReached := goal.ReachedTarget()
	goal.CurrentAmount = goal.CurrentAmount.Add(amount)
	return l.settle(ctx, goal, wasReached)
}

// RecordContribution stores c and applies it to its goal.
func (l *GoalLedger) RecordContribution(ctx context.Context, c core.GoalContribution) (core.Goal, error) {
	if err := l.contributions.Save(ctx, c); err != nil {
		return core.Goal{}, fmt.Errorf("save contribution: %w", err)
	}
	return l.ApplyContribution(ctx, c.OwnerID, c.GoalID, c.Amount)
}

// RevertContribution takes c back out of its goal and deletes the record.
func (l *GoalLedger) RevertContribution(ctx context.Context, c core.GoalContribution) (core.Goal, error) {
	goal, err := l.ApplyContribution(ctx, c.OwnerID, c.GoalID, c.Amount.Neg())
	if errors.Is(err, core.ErrNotFound) {
		return core.Goal{}, core.Internal(fmt.Sprintf("contribution %s points at a missing goal", c.ID), err)
	}
	if err != nil {
		return core.Goal{}, err
	}
	if err := l.contributions.Delete(ctx, c.OwnerID, c.ID); err != nil {
		return core.Goal{}, fmt.Errorf("delete contribution: %w", err)
	}
	return goal, nil
}

// ReplaceContribution swaps c's amount for newAmount in one step.
func (l *GoalLedger) ReplaceContribution(ctx context.Context, c core.GoalContribution, newAmount decimal.Decimal) (core.Goal, error) {
	goal, err := l.ApplyContribution(ctx, c.OwnerID, c.GoalID, newAmount.Sub(c.Amount))
	if errors.Is(err, core.ErrNotFound) {
		return core.Goal{}, core.Internal(fmt.Sprintf("contribution %s points at a missing goal", c.ID), err)
	}
	if err != nil {
		return core.Goal{}, err
	}
	c.Amount = newAmount
	if err := l.contributions.Save(ctx, c); err != nil {
		return core.Goal{}, fmt.Errorf("save contribution: %w", err)
	}
	return goal, nil
}

// MarkCompleted completes a goal by hand, regardless of its progress, as long
// as every prerequisite is completed.
func (l *GoalLedger) MarkCompleted(ctx context.Context, ownerID, goalID string) (core.Goal, error) {
	goal, err := l.goals.Get(ctx, ownerID, goalID)
	if err != nil {
		return core.Goal{}, err
	}
	unmet, found, err := l.firstIncompleteDependency(ctx, goal)
	if err != nil {
		return core.Goal{}, err
	}
	if found {
		return core.Goal{}, core.BadRequest("cannot complete goal: dependency %q is not completed", unmet.Name)
	}
	if goal.Completed {
		return goal, nil
	}
	goal.Completed = true
	if err := l.save(ctx, goal); err != nil {
		return core.Goal{}, err
	}
	if err := l.promoteDependents(ctx, goal); err != nil {
		return core.Goal{}, err
	}
	return goal, nil
}

// settle recomputes goal.Completed after its progress, target or prerequisites
// changed, saves it and cascades. wasReached is ReachedTarget before the change.
// The completion rule:
//   - an incomplete prerequisite always reopens the goal
//   - reaching the target with every prerequisite done completes it
//   - falling from at-or-above target to below it reopens it
//
// Otherwise the flag is kept, so a manual completion survives new contributions.
func (l *GoalLedger) settle(ctx context.Context, goal core.Goal, wasReached bool) (core.Goal, error) {
	_, blocked, err := l.firstIncompleteDependency(ctx, goal)
	if err != nil {
		return core.Goal{}, err
	}
	was := goal.Completed
	switch {
	case blocked:
		goal.Completed = false
	case goal.ReachedTarget():
		goal.Completed = true
	case wasReached:
		goal.Completed = false
	}
	if err := l.save(ctx, goal); err != nil {
		return core.Goal{}, err
	}
	if was == goal.Completed {
		return goal, nil
	}
	if goal.Completed {
		err = l.promoteDependents(ctx, goal)
	} else {
		err = l.reopenDependents(ctx, goal)
	}
	if err != nil {
		return core.Goal{}, err
	}
	return goal, nil
}

// reopenDependents forces every completed goal that transitively depends on
// root back to not-completed.
func (l *GoalLedger) reopenDependents(ctx context.Context, root core.Goal) error {
	queue := []string{root.ID}
	visited := map[string]bool{root.ID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		dependents, err := l.goals.FindDependents(ctx, root.OwnerID, id)
		if err != nil {
			return fmt.Errorf("find dependents of goal %s: %w", id, err)
		}
		for _, d := range dependents {
			if visited[d.ID] {
				continue
			}
			visited[d.ID] = true
			if !d.Completed {
				continue
			}
			d.Completed = false
			if err := l.save(ctx, d); err != nil {
				return err
			}
			queue = append(queue, d.ID)
		}
	}
	return nil
}

// promoteDependents completes dependents of root that were only waiting on
// their prerequisites, and keeps going upward from each one it completes.
func (l *GoalLedger) promoteDependents(ctx context.Context, root core.Goal) error {
	queue := []string{root.ID}
	promoted := map[string]bool{root.ID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		dependents, err := l.goals.FindDependents(ctx, root.OwnerID, id)
		if err != nil {
			return fmt.Errorf("find dependents of goal %s: %w", id, err)
		}
		for _, d := range dependents {
			if promoted[d.ID] || d.Completed || !d.ReachedTarget() {
				continue
			}
			_, blocked, err := l.firstIncompleteDependency(ctx, d)
			if err != nil {
				return err
			}
			if blocked {
				continue
			}
			promoted[d.ID] = true
			d.Completed = true
			if err := l.save(ctx, d); err != nil {
				return err
			}
			queue = append(queue, d.ID)
		}
	}
	return nil
}

// firstIncompleteDependency returns the first prerequisite of goal that is
// not completed. A prerequisite that does not exist breaks the DAG invariant.
func (l *GoalLedger) firstIncompleteDependency(ctx context.Context, goal core.Goal) (core.Goal, bool, error) {
	for _, depID := range goal.DependencyGoalIDs {
		dep, err := l.goals.Get(ctx, goal.OwnerID, depID)
		if errors.Is(err, core.ErrNotFound) {
			return core.Goal{}, false, core.Internal(fmt.Sprintf("goal %s depends on missing goal %s", goal.ID, depID), err)
		}
		if err != nil {
			return core.Goal{}, false, err
		}
		if !dep.Completed {
			return dep, true, nil
		}
	}
	return core.Goal{}, false, nil
}

// save persists goal and reports a completion change when it is one.
func (l *GoalLedger) save(ctx context.Context, goal core.Goal) error {
	prev, getErr := l.goals.Get(ctx, goal.OwnerID, goal.ID)
	if getErr != nil && !errors.Is(getErr, core.ErrNotFound) {
		return getErr
	}
	if err := l.goals.Save(ctx, goal); err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	if getErr == nil && prev.Completed != goal.Completed {
		l.emit(goalEvent(goal))
	}
	return nil
}

func goalEvent(g core.Goal) core.LedgerEvent {
	if g.Completed {
		return core.NewEvent(core.EventGoalCompleted, g.OwnerID, g.ID,
			fmt.Sprintf("Goal %q completed (%s of %s)", g.Name, g.CurrentAmount.StringFixed(2), g.TargetAmount.StringFixed(2)))
	}
	return core.NewEvent(core.EventGoalReopened, g.OwnerID, g.ID,
		fmt.Sprintf("Goal %q is no longer completed (%s of %s)", g.Name, g.CurrentAmount.StringFixed(2), g.TargetAmount.StringFixed(2)))
}
