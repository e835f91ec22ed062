package commands

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"fintrack/internal/core"
)

// txFlags are the editable transaction fields shared by tx-add and tx-edit.
type txFlags struct {
	account, typ, amount, category, desc, date, to, pattern, attachments string
	recurring                                                            bool
}

func (t *txFlags) set(f *flag.FlagSet, defaultType string) {
	f.StringVar(&t.account, "account", "", "Source account id.")
	f.StringVar(&t.typ, "type", defaultType, "income, expense or transfer.")
	f.StringVar(&t.amount, "amount", "", "Positive amount, e.g. 12.50.")
	f.StringVar(&t.category, "category", "", "Category id; expenses with a category count against its budget.")
	f.StringVar(&t.desc, "desc", "", "Description.")
	f.StringVar(&t.date, "date", "", "Date as YYYY-MM-DD. Defaults to today.")
	f.StringVar(&t.to, "to", "", "Destination account id, transfers only.")
	f.BoolVar(&t.recurring, "recurring", false, "Copy this transaction into every following month.")
	f.StringVar(&t.pattern, "pattern", string(core.Monthly), "Recurrence pattern: daily, weekly, monthly or yearly.")
	f.StringVar(&t.attachments, "attachments", "", "Comma separated attachment URLs.")
}

// apply overrides the fields of in whose flags are in set.
func (t *txFlags) apply(in *core.TransactionInput, set map[string]bool) error {
	if set["account"] {
		in.AccountID = t.account
	}
	if set["type"] {
		in.Type = core.TransactionType(t.typ)
	}
	if set["amount"] {
		amount, err := core.ParseAmount(t.amount)
		if err != nil {
			return err
		}
		in.Amount = amount
	}
	if set["category"] {
		in.CategoryID = t.category
	}
	if set["desc"] {
		in.Description = t.desc
	}
	if set["date"] {
		date, err := core.ParseDate(t.date)
		if err != nil {
			return err
		}
		in.Date = date
	}
	if set["to"] {
		in.TransferToAccountID = t.to
	}
	if set["recurring"] {
		in.Recurring = t.recurring
	}
	if set["pattern"] || (in.Recurring && in.RecurrencePattern == "") {
		in.RecurrencePattern = core.RecurrencePattern(t.pattern)
	}
	if set["attachments"] {
		in.AttachmentURLs = splitList(t.attachments)
	}
	return nil
}

type txAddCmd struct {
	ownerFlag
	txFlags
}

func (*txAddCmd) Name() string     { return "tx-add" }
func (*txAddCmd) Synopsis() string { return "record a transaction" }
func (*txAddCmd) Usage() string {
	return `fintrack tx-add -owner <id> -account <id> -amount <n> [-type expense] [-category <id>] [-to <id>] [-date YYYY-MM-DD] [-recurring]
`
}

func (c *txAddCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	c.txFlags.set(f, string(core.Expense))
}

func (c *txAddCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	set := flagsSet(f)
	set["type"] = true
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		in := core.TransactionInput{Date: core.DateOf(env.Now())}
		if err := c.txFlags.apply(&in, set); err != nil {
			return nil, err
		}
		if !set["amount"] {
			return nil, core.BadRequest("-amount is required")
		}
		return env.Ledger.Transactions.Create(ctx, c.owner, in)
	})
}

type txEditCmd struct {
	ownerFlag
	txFlags
	id string
}

func (*txEditCmd) Name() string     { return "tx-edit" }
func (*txEditCmd) Synopsis() string { return "change a transaction, moving its effects" }
func (*txEditCmd) Usage() string {
	return `fintrack tx-edit -owner <id> -id <tx> [field flags]

  Only the flags given are changed. The old effect on balances and budgets is
  reverted and the new one applied in the same unit of work.
`
}

func (c *txEditCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.StringVar(&c.id, "id", "", "Transaction id.")
	c.txFlags.set(f, "")
}

func (c *txEditCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	set := flagsSet(f)
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		existing, err := env.Ledger.Transactions.Get(ctx, c.owner, c.id)
		if err != nil {
			return nil, err
		}
		in := core.InputOf(existing)
		if err := c.txFlags.apply(&in, set); err != nil {
			return nil, err
		}
		return env.Ledger.Transactions.Update(ctx, c.owner, c.id, in)
	})
}

type txRemoveCmd struct {
	ownerFlag
	id string
}

func (*txRemoveCmd) Name() string     { return "tx-rm" }
func (*txRemoveCmd) Synopsis() string { return "delete a transaction, reverting its effects" }
func (*txRemoveCmd) Usage() string {
	return `fintrack tx-rm -owner <id> -id <tx>
`
}

func (c *txRemoveCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.StringVar(&c.id, "id", "", "Transaction id.")
}

func (c *txRemoveCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		return nil, env.Ledger.Transactions.Delete(ctx, c.owner, c.id)
	})
}

type txListCmd struct {
	ownerFlag
	account string
}

func (*txListCmd) Name() string     { return "tx-list" }
func (*txListCmd) Synopsis() string { return "list the transactions of an account" }
func (*txListCmd) Usage() string {
	return `fintrack tx-list -owner <id> -account <id>
`
}

func (c *txListCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.StringVar(&c.account, "account", "", "Account id; incoming transfers are included.")
}

func (c *txListCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		txs, err := env.Ledger.Transactions.ListByAccount(ctx, c.owner, c.account)
		if txs == nil {
			txs = []core.Transaction{}
		}
		return txs, err
	})
}
