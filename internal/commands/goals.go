package commands

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"fintrack/internal/core"
)

type goalAddCmd struct {
	ownerFlag
	name, desc, target, deadline, priority, deps string
}

func (*goalAddCmd) Name() string     { return "goal-add" }
func (*goalAddCmd) Synopsis() string { return "create a savings goal with its own savings account" }
func (*goalAddCmd) Usage() string {
	return `fintrack goal-add -owner <id> -name <name> -target <n> -deadline YYYY-MM-DD [-priority medium] [-deps id,id]
`
}

func (c *goalAddCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.StringVar(&c.name, "name", "", "Goal name.")
	f.StringVar(&c.desc, "desc", "", "Description.")
	f.StringVar(&c.target, "target", "", "Target amount.")
	f.StringVar(&c.deadline, "deadline", "", "Deadline as YYYY-MM-DD.")
	f.StringVar(&c.priority, "priority", string(core.PriorityMedium), "low, medium or high.")
	f.StringVar(&c.deps, "deps", "", "Comma separated ids of goals that must complete first.")
}

func (c *goalAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		target, err := core.ParseAmount(c.target)
		if err != nil {
			return nil, err
		}
		deadline, err := core.ParseDate(c.deadline)
		if err != nil {
			return nil, err
		}
		return env.Ledger.Goals.CreateGoal(ctx, c.owner, core.GoalInput{
			Name:              c.name,
			Description:       c.desc,
			TargetAmount:      target,
			Deadline:          deadline,
			Priority:          core.GoalPriority(c.priority),
			DependencyGoalIDs: splitList(c.deps),
		})
	})
}

type goalListCmd struct {
	ownerFlag
	contributions string
}

func (*goalListCmd) Name() string     { return "goal-list" }
func (*goalListCmd) Synopsis() string { return "list goals, or the contributions of one goal" }
func (*goalListCmd) Usage() string {
	return `fintrack goal-list -owner <id> [-contributions <goal>]
`
}

func (c *goalListCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.StringVar(&c.contributions, "contributions", "", "List this goal's contributions instead.")
}

func (c *goalListCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		if c.contributions != "" {
			out, err := env.Ledger.Goals.ListContributions(ctx, c.owner, c.contributions)
			if out == nil {
				out = []core.GoalContribution{}
			}
			return out, err
		}
		out, err := env.Ledger.Goals.ListGoals(ctx, c.owner)
		if out == nil {
			out = []core.Goal{}
		}
		return out, err
	})
}

type goalContributeCmd struct {
	ownerFlag
	goal, amount, note, from, date string
}

func (*goalContributeCmd) Name() string     { return "goal-contribute" }
func (*goalContributeCmd) Synopsis() string { return "put money towards a goal" }
func (*goalContributeCmd) Usage() string {
	return `fintrack goal-contribute -owner <id> -goal <id> -amount <n> [-from <account>] [-note <text>] [-date YYYY-MM-DD]

  With -from the money is transferred into the goal's savings account.
`
}

func (c *goalContributeCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.StringVar(&c.goal, "goal", "", "Goal id.")
	f.StringVar(&c.amount, "amount", "", "Positive amount.")
	f.StringVar(&c.note, "note", "", "Note.")
	f.StringVar(&c.from, "from", "", "Source account id for a transfer.")
	f.StringVar(&c.date, "date", "", "Transfer date. Defaults to today.")
}

func (c *goalContributeCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		amount, err := core.ParseAmount(c.amount)
		if err != nil {
			return nil, err
		}
		date, err := parseOptionalDate(c.date)
		if err != nil {
			return nil, err
		}
		contribution, goal, err := env.Ledger.Goals.AddContribution(ctx, c.owner, c.goal, core.ContributionInput{
			Amount:          amount,
			Note:            c.note,
			SourceAccountID: c.from,
			Date:            date,
		})
		if err != nil {
			return nil, err
		}
		return struct {
			Contribution core.GoalContribution
			Goal         core.Goal
		}{contribution, goal}, nil
	})
}

type goalUncontributeCmd struct {
	ownerFlag
	id string
}

func (*goalUncontributeCmd) Name() string     { return "goal-uncontribute" }
func (*goalUncontributeCmd) Synopsis() string { return "undo a goal contribution" }
func (*goalUncontributeCmd) Usage() string {
	return `fintrack goal-uncontribute -owner <id> -id <contribution>
`
}

func (c *goalUncontributeCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.StringVar(&c.id, "id", "", "Contribution id.")
}

func (c *goalUncontributeCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		return env.Ledger.Goals.RemoveContribution(ctx, c.owner, c.id)
	})
}

// goalEdgeCmd adds or removes one dependency edge.
type goalEdgeCmd struct {
	ownerFlag
	goal, on string
}

func (c *goalEdgeCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.StringVar(&c.goal, "goal", "", "Dependent goal id.")
	f.StringVar(&c.on, "on", "", "Prerequisite goal id.")
}

type goalDependCmd struct{ goalEdgeCmd }

func (*goalDependCmd) Name() string     { return "goal-depend" }
func (*goalDependCmd) Synopsis() string { return "make a goal wait for another" }
func (*goalDependCmd) Usage() string {
	return `fintrack goal-depend -owner <id> -goal <id> -on <id>

  Rejected when the edge would close a cycle.
`
}

func (c *goalDependCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		return env.Ledger.Goals.AddDependency(ctx, c.owner, c.goal, c.on)
	})
}

type goalUndependCmd struct{ goalEdgeCmd }

func (*goalUndependCmd) Name() string     { return "goal-undepend" }
func (*goalUndependCmd) Synopsis() string { return "drop a goal dependency" }
func (*goalUndependCmd) Usage() string {
	return `fintrack goal-undepend -owner <id> -goal <id> -on <id>
`
}

func (c *goalUndependCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		return env.Ledger.Goals.RemoveDependency(ctx, c.owner, c.goal, c.on)
	})
}

type goalCompleteCmd struct {
	ownerFlag
	id string
}

func (*goalCompleteCmd) Name() string     { return "goal-complete" }
func (*goalCompleteCmd) Synopsis() string { return "mark a goal completed" }
func (*goalCompleteCmd) Usage() string {
	return `fintrack goal-complete -owner <id> -id <goal>

  Fails while a prerequisite is still incomplete.
`
}

func (c *goalCompleteCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.StringVar(&c.id, "id", "", "Goal id.")
}

func (c *goalCompleteCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		return env.Ledger.Goals.MarkCompleted(ctx, c.owner, c.id)
	})
}

type goalRemoveCmd struct {
	ownerFlag
	id string
}

func (*goalRemoveCmd) Name() string     { return "goal-rm" }
func (*goalRemoveCmd) Synopsis() string { return "delete a goal that nothing depends on" }
func (*goalRemoveCmd) Usage() string {
	return `fintrack goal-rm -owner <id> -id <goal>
`
}

func (c *goalRemoveCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.StringVar(&c.id, "id", "", "Goal id.")
}

func (c *goalRemoveCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		return nil, env.Ledger.Goals.DeleteGoal(ctx, c.owner, c.id)
	})
}
