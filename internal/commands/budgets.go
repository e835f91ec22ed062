package commands

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"fintrack/internal/core"
)

// periodFlags select a budget month; zero values mean the current month.
type periodFlags struct {
	year, month int
}

func (p *periodFlags) set(f *flag.FlagSet) {
	f.IntVar(&p.year, "year", 0, "Budget year. Defaults to the current year.")
	f.IntVar(&p.month, "month", 0, "Budget month, 1-12. Defaults to the current month.")
}

func (p *periodFlags) resolve(env *Env) (int, int) {
	today := core.DateOf(env.Now())
	year, month := p.year, p.month
	if year == 0 {
		year = today.Year()
	}
	if month == 0 {
		month = today.Month()
	}
	return year, month
}

type budgetSetCmd struct {
	ownerFlag
	periodFlags
	category, amount string
	threshold        int
}

func (*budgetSetCmd) Name() string     { return "budget-set" }
func (*budgetSetCmd) Synopsis() string { return "create a monthly budget for a category" }
func (*budgetSetCmd) Usage() string {
	return `fintrack budget-set -owner <id> -category <id> -amount <n> [-year YYYY] [-month M] [-threshold 80]

  Spending already recorded in the month is counted immediately.
`
}

func (c *budgetSetCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	c.periodFlags.set(f)
	f.StringVar(&c.category, "category", "", "Category id.")
	f.StringVar(&c.amount, "amount", "", "Allocated amount.")
	f.IntVar(&c.threshold, "threshold", core.DefaultAlertThreshold, "Warning threshold in percent.")
}

func (c *budgetSetCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		amount, err := core.ParseAmount(c.amount)
		if err != nil {
			return nil, err
		}
		year, month := c.resolve(env)
		return env.Ledger.Budgets.SetBudget(ctx, c.owner, core.BudgetInput{
			CategoryID:      c.category,
			Year:            year,
			Month:           month,
			AllocatedAmount: amount,
			AlertThreshold:  c.threshold,
		})
	})
}

type budgetListCmd struct {
	ownerFlag
	periodFlags
}

func (*budgetListCmd) Name() string     { return "budget-list" }
func (*budgetListCmd) Synopsis() string { return "list the budgets of a month" }
func (*budgetListCmd) Usage() string {
	return `fintrack budget-list -owner <id> [-year YYYY] [-month M]
`
}

func (c *budgetListCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	c.periodFlags.set(f)
}

func (c *budgetListCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		year, month := c.resolve(env)
		budgets, err := env.Ledger.Budgets.ListBudgets(ctx, c.owner, year, month)
		if budgets == nil {
			budgets = []core.Budget{}
		}
		return budgets, err
	})
}

type budgetRemoveCmd struct {
	ownerFlag
	id string
}

func (*budgetRemoveCmd) Name() string     { return "budget-rm" }
func (*budgetRemoveCmd) Synopsis() string { return "delete a budget" }
func (*budgetRemoveCmd) Usage() string {
	return `fintrack budget-rm -owner <id> -id <budget>
`
}

func (c *budgetRemoveCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.StringVar(&c.id, "id", "", "Budget id.")
}

func (c *budgetRemoveCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		return nil, env.Ledger.Budgets.DeleteBudget(ctx, c.owner, c.id)
	})
}
