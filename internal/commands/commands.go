// Package commands holds the fintrack subcommands. Each command reads its
// flags, calls the ledger and prints the result as JSON.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/subcommands"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/services"
)

// OwnerEnv supplies the default for every -owner flag.
const OwnerEnv = "FINTRACK_OWNER"

// Env is what commands run against. It is passed as the first Execute argument.
type Env struct {
	Ledger        *services.Ledger
	Recurrence    *services.RecurrenceGenerator
	Notifications ledger.NotificationStore
	Currency      string // used when -currency is not given
	Out           io.Writer
	Err           io.Writer
	Now           func() time.Time
}

// Commands lists every subcommand, grouped for the help output.
var Commands = map[string][]subcommands.Command{
	"accounts": {
		&accountAddCmd{}, &accountListCmd{}, &accountEditCmd{}, &accountArchiveCmd{},
	},
	"transactions": {
		&txAddCmd{}, &txEditCmd{}, &txRemoveCmd{}, &txListCmd{},
	},
	"budgets": {
		&budgetSetCmd{}, &budgetListCmd{}, &budgetRemoveCmd{},
	},
	"goals": {
		&goalAddCmd{}, &goalListCmd{}, &goalContributeCmd{}, &goalUncontributeCmd{},
		&goalDependCmd{}, &goalUndependCmd{}, &goalCompleteCmd{}, &goalRemoveCmd{},
	},
	"recurrence": {
		&recurRunCmd{},
	},
	"notifications": {
		&notificationsCmd{},
	},
}

// Register adds every command to commander.
func Register(commander *subcommands.Commander) {
	for _, group := range groupNames() {
		for _, c := range Commands[group] {
			commander.Register(c, group)
		}
	}
}

// groupNames returns the command groups in a stable order.
func groupNames() []string {
	return slices.Sorted(maps.Keys(Commands))
}

func envFrom(args []interface{}) *Env {
	for _, a := range args {
		if env, ok := a.(*Env); ok {
			if env.Out == nil {
				env.Out = os.Stdout
			}
			if env.Err == nil {
				env.Err = os.Stderr
			}
			if env.Now == nil {
				env.Now = time.Now
			}
			if env.Currency == "" {
				env.Currency = "EUR"
			}
			return env
		}
	}
	return nil
}

// ownerFlag is embedded by every command that acts for a user.
type ownerFlag struct {
	owner string
}

func (o *ownerFlag) setOwner(f *flag.FlagSet) {
	f.StringVar(&o.owner, "owner", os.Getenv(OwnerEnv), "Owner the command acts for. Defaults to $"+OwnerEnv+".")
}

// run is the shared Execute body: resolve the env, check the owner, run fn
// and print what it returns.
func run(ctx context.Context, owner string, args []interface{}, fn func(ctx context.Context, env *Env) (any, error)) subcommands.ExitStatus {
	if strings.TrimSpace(owner) == "" {
		return runAll(ctx, args, func(context.Context, *Env) (any, error) {
			return nil, core.BadRequest("-owner is required")
		})
	}
	return runAll(ctx, args, fn)
}

// runAll is run for commands that span every owner.
func runAll(ctx context.Context, args []interface{}, fn func(ctx context.Context, env *Env) (any, error)) subcommands.ExitStatus {
	env := envFrom(args)
	if env == nil {
		fmt.Fprintln(os.Stderr, "Error: command started without a ledger")
		return subcommands.ExitFailure
	}
	out, err := fn(ctx, env)
	if err != nil {
		fmt.Fprintf(env.Err, "Error: %v\n", err)
		if errors.Is(err, core.ErrBadRequest) {
			return subcommands.ExitUsageError
		}
		return subcommands.ExitFailure
	}
	if out == nil {
		return subcommands.ExitSuccess
	}
	if err := printJSON(env.Out, out); err != nil {
		fmt.Fprintf(env.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseOptionalDate returns the zero date for an empty flag.
func parseOptionalDate(s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

// splitList splits a comma separated flag, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// flagsSet reports which flags were given on the command line.
func flagsSet(f *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return set
}
