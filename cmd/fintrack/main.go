package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"

	"fintrack/internal/cli"
	"fintrack/internal/commands"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	commands.Register(commander)
	flag.Parse()

	// Help needs no backend.
	if name := flag.Arg(0); name == "" || name == "help" || name == "flags" || name == "commands" {
		os.Exit(int(commander.Execute(context.Background())))
	}

	ctx, cancel := context.WithCancel(context.Background())
	app, err := cli.Bootstrap(ctx, log.ComponentCLI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
	ctx, stop := cli.SignalContext(ctx, app.Logger)

	env := &commands.Env{
		Ledger:        app.Ledger,
		Recurrence:    services.NewRecurrenceGenerator(app.Backend, app.Ledger.Transactions, app.Logger, app.Config.RecurringItemTimeout),
		Notifications: app.Backend.Notifications(),
		Currency:      app.Config.DefaultCurrency,
	}
	status := commander.Execute(ctx, env)

	stop()
	cancel()
	if err := app.Close(); err != nil {
		app.Logger.Error("Failed to close backend", log.FieldError, err)
	}
	os.Exit(int(status))
}
