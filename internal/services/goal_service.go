package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// contributionDateLayout renders dates like "Mar 05, 2025" in contribution descriptions.
const contributionDateLayout = "Jan 02, 2006"

// GoalService manages goals, their savings accounts and contributions.
type GoalService struct {
	units  *runner
	logger *log.Logger
}

func NewGoalService(uow ledger.UnitOfWork, publisher ledger.EventPublisher, logger *log.Logger, cfg LedgerConfig) *GoalService {
	logger = logger.WithComponent(log.ComponentGoals)
	return &GoalService{
		units:  newRunner(uow, publisher, logger, cfg),
		logger: logger,
	}
}

// CreateGoal creates the goal together with a dedicated savings account.
// Initial dependencies go through the same DAG checks as AddDependency.
func (g *GoalService) CreateGoal(ctx context.Context, ownerID string, in core.GoalInput) (core.Goal, error) {
	if err := in.Validate(); err != nil {
		return core.Goal{}, err
	}
	var goal core.Goal
	err := g.units.run(ctx, func(ctx context.Context, s *session) error {
		savings := core.Account{
			ID:          core.NewID(),
			OwnerID:     ownerID,
			Name:        in.Name,
			Type:        core.AccountSavings,
			Currency:    g.units.currency,
			Description: "Savings account for goal: " + in.Name,
			CreatedAt:   s.now,
			UpdatedAt:   s.now,
		}
		if err := s.stores.Accounts().Save(ctx, savings); err != nil {
			return fmt.Errorf("save savings account: %w", err)
		}
		goal = core.Goal{
			ID:               core.NewID(),
			OwnerID:          ownerID,
			Name:             in.Name,
			Description:      in.Description,
			TargetAmount:     in.TargetAmount,
			Deadline:         in.Deadline,
			Priority:         in.Priority,
			SavingsAccountID: savings.ID,
			CreatedAt:        s.now,
			UpdatedAt:        s.now,
		}
		if err := s.stores.Goals().Save(ctx, goal); err != nil {
			return fmt.Errorf("save goal: %w", err)
		}
		for _, depID := range in.DependencyGoalIDs {
			var err error
			if goal, err = s.goals.AddDependency(ctx, ownerID, goal.ID, depID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.Goal{}, err
	}
	g.logger.InfoContext(ctx, "Goal created",
		log.FieldOwnerID, ownerID,
		log.FieldGoalID, goal.ID,
		log.FieldAmount, goal.TargetAmount.String())
	return goal, nil
}

// UpdateGoal edits name, description, target, deadline and priority. Use
// AddDependency and RemoveDependency for prerequisites.
func (g *GoalService) UpdateGoal(ctx context.Context, ownerID, id string, in core.GoalInput) (core.Goal, error) {
	if err := in.Validate(); err != nil {
		return core.Goal{}, err
	}
	var goal core.Goal
	err := g.units.run(ctx, func(ctx context.Context, s *session) error {
		var err error
		goal, err = s.stores.Goals().Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if goal.SavingsAccountID != "" && goal.Name != in.Name {
			if err := s.renameSavingsAccount(ctx, ownerID, goal.SavingsAccountID, in.Name); err != nil {
				return err
			}
		}
		wasReached := goal.ReachedTarget()
		goal.Name = in.Name
		goal.Description = in.Description
		goal.TargetAmount = in.TargetAmount
		goal.Deadline = in.Deadline
		goal.Priority = in.Priority
		goal.UpdatedAt = s.now
		goal, err = s.goals.settle(ctx, goal, wasReached)
		return err
	})
	return goal, err
}

func (s *session) renameSavingsAccount(ctx context.Context, ownerID, accountID, name string) error {
	acct, err := s.stores.Accounts().Get(ctx, ownerID, accountID)
	if err != nil {
		return core.Internal(fmt.Sprintf("savings account %s is missing", accountID), err)
	}
	acct.Name = name
	acct.UpdatedAt = s.now
	if err := s.stores.Accounts().Save(ctx, acct); err != nil {
		return fmt.Errorf("save savings account: %w", err)
	}
	return nil
}

// DeleteGoal is refused while other goals depend on it. The savings account is
// archived, which reverts every contribution made by transfer.
func (g *GoalService) DeleteGoal(ctx context.Context, ownerID, id string) error {
	err := g.units.run(ctx, func(ctx context.Context, s *session) error {
		goal, err := s.stores.Goals().Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		dependents, err := s.stores.Goals().FindDependents(ctx, ownerID, id)
		if err != nil {
			return fmt.Errorf("find dependents: %w", err)
		}
		if len(dependents) > 0 {
			return core.BadRequest("cannot delete goal %q: %d goal(s) depend on it", goal.Name, len(dependents))
		}
		if goal.SavingsAccountID != "" {
			if _, _, err := s.archiveAccount(ctx, ownerID, goal.SavingsAccountID); err != nil {
				return err
			}
		}
		remaining, err := s.stores.Contributions().ListByGoal(ctx, ownerID, id)
		if err != nil {
			return fmt.Errorf("list contributions: %w", err)
		}
		for _, c := range remaining {
			if err := s.stores.Contributions().Delete(ctx, ownerID, c.ID); err != nil {
				return fmt.Errorf("delete contribution: %w", err)
			}
		}
		return s.stores.Goals().Delete(ctx, ownerID, id)
	})
	if err != nil {
		return err
	}
	g.logger.InfoContext(ctx, "Goal deleted",
		log.FieldOwnerID, ownerID,
		log.FieldGoalID, id)
	return nil
}

// AddContribution records money put towards a goal. With a source account the
// money moves by a transfer into the goal's savings account and the
// contribution is tied to that transaction, so editing or deleting the
// transaction keeps the goal in step.
func (g *GoalService) AddContribution(ctx context.Context, ownerID, goalID string, in core.ContributionInput) (core.GoalContribution, core.Goal, error) {
	if err := in.Validate(); err != nil {
		return core.GoalContribution{}, core.Goal{}, err
	}
	var (
		contribution core.GoalContribution
		goal         core.Goal
	)
	err := g.units.run(ctx, func(ctx context.Context, s *session) error {
		var err error
		goal, err = s.stores.Goals().Get(ctx, ownerID, goalID)
		if err != nil {
			return err
		}
		contribution = core.GoalContribution{
			ID:        core.NewID(),
			GoalID:    goalID,
			OwnerID:   ownerID,
			Amount:    in.Amount,
			Note:      in.Note,
			CreatedAt: s.now,
		}
		if in.SourceAccountID != "" {
			if goal.SavingsAccountID == "" {
				return core.BadRequest("goal %q has no savings account", goal.Name)
			}
			date := in.Date
			if date.IsZero() {
				date = core.DateOf(s.now)
			}
			tx, err := s.createTransaction(ctx, ownerID, core.TransactionInput{
				AccountID:           in.SourceAccountID,
				Type:                core.Transfer,
				Amount:              in.Amount,
				Description:         fmt.Sprintf("%s %s Contribution", date.Format(contributionDateLayout), goal.Name),
				Date:                date,
				TransferToAccountID: goal.SavingsAccountID,
			}, false)
			if err != nil {
				return err
			}
			contribution.TransactionID = tx.ID
		}
		goal, err = s.goals.RecordContribution(ctx, contribution)
		return err
	})
	if err != nil {
		return core.GoalContribution{}, core.Goal{}, err
	}
	g.logger.InfoContext(ctx, "Goal contribution added",
		log.FieldOwnerID, ownerID,
		log.FieldGoalID, goalID,
		log.FieldTransactionID, contribution.TransactionID,
		log.FieldAmount, in.Amount.String())
	return contribution, goal, nil
}

// RemoveContribution undoes a contribution. One made by transfer is removed by
// deleting its transaction, which reverts the goal as part of the delete.
func (g *GoalService) RemoveContribution(ctx context.Context, ownerID, contributionID string) (core.Goal, error) {
	var goal core.Goal
	err := g.units.run(ctx, func(ctx context.Context, s *session) error {
		c, err := s.stores.Contributions().Get(ctx, ownerID, contributionID)
		if err != nil {
			return err
		}
		if c.TransactionID != "" {
			if _, err := s.deleteTransaction(ctx, ownerID, c.TransactionID); err != nil {
				return err
			}
			goal, err = s.stores.Goals().Get(ctx, ownerID, c.GoalID)
			return err
		}
		goal, err = s.goals.RevertContribution(ctx, c)
		return err
	})
	return goal, err
}

func (g *GoalService) AddDependency(ctx context.Context, ownerID, goalID, depID string) (core.Goal, error) {
	return g.mutate(ctx, func(ctx context.Context, s *session) (core.Goal, error) {
		return s.goals.AddDependency(ctx, ownerID, goalID, depID)
	})
}

func (g *GoalService) RemoveDependency(ctx context.Context, ownerID, goalID, depID string) (core.Goal, error) {
	return g.mutate(ctx, func(ctx context.Context, s *session) (core.Goal, error) {
		return s.goals.RemoveDependency(ctx, ownerID, goalID, depID)
	})
}

func (g *GoalService) MarkCompleted(ctx context.Context, ownerID, goalID string) (core.Goal, error) {
	return g.mutate(ctx, func(ctx context.Context, s *session) (core.Goal, error) {
		return s.goals.MarkCompleted(ctx, ownerID, goalID)
	})
}

// ApplyContribution adjusts progress without a contribution record. Negative
// amounts are reversals.
func (g *GoalService) ApplyContribution(ctx context.Context, ownerID, goalID string, amount decimal.Decimal) (core.Goal, error) {
	return g.mutate(ctx, func(ctx context.Context, s *session) (core.Goal, error) {
		return s.goals.ApplyContribution(ctx, ownerID, goalID, amount)
	})
}

func (g *GoalService) GetGoal(ctx context.Context, ownerID, id string) (core.Goal, error) {
	return g.mutate(ctx, func(ctx context.Context, s *session) (core.Goal, error) {
		return s.stores.Goals().Get(ctx, ownerID, id)
	})
}

func (g *GoalService) ListGoals(ctx context.Context, ownerID string) ([]core.Goal, error) {
	var out []core.Goal
	err := g.units.run(ctx, func(ctx context.Context, s *session) error {
		var err error
		out, err = s.stores.Goals().ListByOwner(ctx, ownerID)
		return err
	})
	return out, err
}

func (g *GoalService) ListContributions(ctx context.Context, ownerID, goalID string) ([]core.GoalContribution, error) {
	var out []core.GoalContribution
	err := g.units.run(ctx, func(ctx context.Context, s *session) error {
		if _, err := s.stores.Goals().Get(ctx, ownerID, goalID); err != nil {
			return err
		}
		var err error
		out, err = s.stores.Contributions().ListByGoal(ctx, ownerID, goalID)
		return err
	})
	return out, err
}

func (g *GoalService) mutate(ctx context.Context, fn func(ctx context.Context, s *session) (core.Goal, error)) (core.Goal, error) {
	var goal core.Goal
	err := g.units.run(ctx, func(ctx context.Context, s *session) error {
		var err error
		goal, err = fn(ctx, s)
		return err
	})
	return goal, err
}
