package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
)

// updateCmd holds the flags for the 'update' subcommand.
type updateCmd struct{}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "refresh all tracked exchange rates" }
func (*updateCmd) Usage() string {
	return `vth update

  Fetches fresh rates for every tracked pair from the configured providers
  and persists the updated view.
`
}

func (*updateCmd) SetFlags(*flag.FlagSet) {}

func (c *updateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ledger, _, err := openLedger()
	if err != nil {
		return fail(err)
	}

	report, err := ledger.UpdateRates(ctx)
	if err != nil {
		logger.Error().Str("action", "UPDATE").Err(err).Msg("refresh failed")
		return fail(err)
	}

	logger.Info().Str("action", "UPDATE").
		Int("resolved", report.Resolved()).
		Int("unresolved", len(report.Unresolved())).
		Msg("refresh completed")

	var b strings.Builder
	fmt.Fprintf(&b, "# Rate update\n\n")
	fmt.Fprintf(&b, "| Pair | Status | Detail |\n")
	fmt.Fprintf(&b, "|---|---|---|\n")
	for _, pr := range report.Results {
		if pr.Resolved {
			fmt.Fprintf(&b, "| %s | updated | %s |\n", pr.Pair, pr.Source)
		} else {
			fmt.Fprintf(&b, "| %s | failed | %v |\n", pr.Pair, pr.Err)
		}
	}
	fmt.Fprintf(&b, "\n%d of %d pairs updated.\n", report.Resolved(), len(report.Results))
	printMarkdown(b.String())

	if report.Resolved() == 0 && len(report.Results) > 0 {
		return exitExternalService
	}
	return subcommands.ExitSuccess
}
