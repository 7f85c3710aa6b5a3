package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/robfig/cron/v3"
)

// watchCmd holds the flags for the 'watch' subcommand.
type watchCmd struct {
	every time.Duration
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "refresh rates periodically until interrupted" }
func (*watchCmd) Usage() string {
	return `vth watch [-every <duration>]

  Refreshes all tracked rates on a fixed schedule, persisting each update.
  Runs until interrupted.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.every, "every", 5*time.Minute, "Interval between refreshes.")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.every < time.Second {
		fmt.Fprintln(os.Stderr, "Error: -every must be at least one second.")
		return subcommands.ExitUsageError
	}

	ledger, _, err := openLedger()
	if err != nil {
		return fail(err)
	}

	refresh := func() {
		report, err := ledger.UpdateRates(ctx)
		if err != nil {
			logger.Error().Str("action", "UPDATE").Err(err).Msg("scheduled refresh failed")
			return
		}
		logger.Info().Str("action", "UPDATE").
			Int("resolved", report.Resolved()).
			Int("unresolved", len(report.Unresolved())).
			Msg("scheduled refresh completed")
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", c.every), refresh); err != nil {
		return fail(err)
	}

	logger.Info().Dur("every", c.every).Msg("watching rates")
	refresh()
	scheduler.Start()
	<-ctx.Done()
	<-scheduler.Stop().Done()
	return subcommands.ExitSuccess
}
