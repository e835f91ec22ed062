package commands

import (
	"context"
	"flag"
	"time"

	"github.com/google/subcommands"

	"fintrack/internal/core"
)

type recurRunCmd struct {
	at string
}

func (*recurRunCmd) Name() string     { return "recur-run" }
func (*recurRunCmd) Synopsis() string { return "copy recurring transactions into the current month" }
func (*recurRunCmd) Usage() string {
	return `fintrack recur-run [-at YYYY-MM-DD]

  Runs one sweep over every owner. Copies already made this month are skipped,
  so running it twice is harmless.
`
}

func (c *recurRunCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.at, "at", "", "Sweep as of this date. Defaults to now.")
}

func (c *recurRunCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return runAll(ctx, args, func(ctx context.Context, env *Env) (any, error) {
		if env.Recurrence == nil {
			return nil, core.Internal("recurrence generator not configured", nil)
		}
		now := env.Now()
		if c.at != "" {
			at, err := core.ParseDate(c.at)
			if err != nil {
				return nil, err
			}
			now = at.Time.Add(12 * time.Hour)
		}
		return env.Recurrence.Generate(ctx, now)
	})
}

type notificationsCmd struct {
	ownerFlag
	unread bool
	read   string
}

func (*notificationsCmd) Name() string     { return "notifications" }
func (*notificationsCmd) Synopsis() string { return "show the notification inbox" }
func (*notificationsCmd) Usage() string {
	return `fintrack notifications -owner <id> [-unread] [-read <id>]
`
}

func (c *notificationsCmd) SetFlags(f *flag.FlagSet) {
	c.setOwner(f)
	f.BoolVar(&c.unread, "unread", false, "Only unread notifications.")
	f.StringVar(&c.read, "read", "", "Mark this notification read before listing.")
}

func (c *notificationsCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.owner, args, func(ctx context.Context, env *Env) (any, error) {
		if env.Notifications == nil {
			return nil, core.Internal("notification store not configured", nil)
		}
		if c.read != "" {
			if err := env.Notifications.MarkRead(ctx, c.owner, c.read); err != nil {
				return nil, err
			}
		}
		out, err := env.Notifications.ListByOwner(ctx, c.owner, c.unread)
		if out == nil {
			out = []core.Notification{}
		}
		return out, err
	})
}
