package commands

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"fintrack/internal/core"
)

type accountAddCmd struct {
	ownerFlag
	name, typ, balance, currency, desc string
}

func (*accountAddCmd) Name() string     { return "account-add" }
func (*accountAddCmd) Synopsis() string { return "open an account" }
func (*accountAddCmd) Usage() string {
	return `fintrack account-add -owner <id> -name <name> [-type bank] [-balance 0] [-currency <code>] [-desc <text>]
`
}

func (c *accountAddCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.StringVar(&c.name, "name", "", "Account name.")
	f.StringVar(&c.typ, "type", string(core.AccountBank), "bank, credit, cash, investment or savings.")
	f.StringVar(&c.balance, "balance", "0", "Opening balance; may be negative.")
	f.StringVar(&c.currency, "currency", "", "ISO 4217 currency code. Defaults to the configured currency.")
	f.StringVar(&c.desc, "desc", "", "Free text description.")
}

func (c *accountAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		balance, err := core.ParseSignedAmount(c.balance)
		if err != nil {
			return nil, err
		}
		currency := c.currency
		if currency == "" {
			currency = env.Currency
		}
		return env.Ledger.Accounts.CreateAccount(ctx, c.owner, core.AccountInput{
			Name:           c.name,
			Type:           core.AccountType(c.typ),
			InitialBalance: balance,
			Currency:       currency,
			Description:    c.desc,
		})
	})
}

type accountListCmd struct {
	ownerFlag
	archived bool
}

func (*accountListCmd) Name() string     { return "account-list" }
func (*accountListCmd) Synopsis() string { return "list accounts with their balances" }
func (*accountListCmd) Usage() string {
	return `fintrack account-list -owner <id> [-archived]
`
}

func (c *accountListCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.BoolVar(&c.archived, "archived", false, "Include archived accounts.")
}

func (c *accountListCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		return env.Ledger.Accounts.ListAccounts(ctx, c.owner, c.archived)
	})
}

type accountEditCmd struct {
	ownerFlag
	id, name, typ, desc string
}

func (*accountEditCmd) Name() string     { return "account-edit" }
func (*accountEditCmd) Synopsis() string { return "rename or retype an account" }
func (*accountEditCmd) Usage() string {
	return `fintrack account-edit -owner <id> -id <account> [-name <name>] [-type <type>] [-desc <text>]

  Balances and currency cannot be edited; they follow from transactions.
`
}

func (c *accountEditCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.StringVar(&c.id, "id", "", "Account id.")
	f.StringVar(&c.name, "name", "", "New name.")
	f.StringVar(&c.typ, "type", "", "New account type.")
	f.StringVar(&c.desc, "desc", "", "New description.")
}

func (c *accountEditCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	set := flagsSet(f)
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		acct, err := env.Ledger.Accounts.GetAccount(ctx, c.owner, c.id)
		if err != nil {
			return nil, err
		}
		in := core.AccountInput{Name: acct.Name, Type: acct.Type, Description: acct.Description}
		if set["name"] {
			in.Name = c.name
		}
		if set["type"] {
			in.Type = core.AccountType(c.typ)
		}
		if set["desc"] {
			in.Description = c.desc
		}
		return env.Ledger.Accounts.UpdateAccount(ctx, c.owner, c.id, in)
	})
}

type accountArchiveCmd struct {
	ownerFlag
	id string
}

func (*accountArchiveCmd) Name() string     { return "account-archive" }
func (*accountArchiveCmd) Synopsis() string { return "archive an account, reverting its transactions" }
func (*accountArchiveCmd) Usage() string {
	return `fintrack account-archive -owner <id> -id <account>

  Every transaction touching the account is deleted through the ledger first,
  so the other side of each transfer, budgets and goals are restored.
`
}

func (c *accountArchiveCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.StringVar(&c.id, "id", "", "Account id.")
}

func (c *accountArchiveCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		return env.Ledger.Accounts.ArchiveAccount(ctx, c.owner, c.id)
	})
}
