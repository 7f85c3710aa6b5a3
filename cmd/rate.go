package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
)

// rateCmd holds the flags for the 'rate' subcommand.
type rateCmd struct{}

func (*rateCmd) Name() string     { return "rate" }
func (*rateCmd) Synopsis() string { return "show the current rate between two currencies" }
func (*rateCmd) Usage() string {
	return `vth rate <from> <to>

  Shows the current exchange rate, refreshing it from the providers when
  the cached value is missing or too old.
`
}

func (*rateCmd) SetFlags(*flag.FlagSet) {}

func (c *rateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "Error: expected <from> <to> arguments, got %d\n", f.NArg())
		return subcommands.ExitUsageError
	}
	from, to := f.Arg(0), f.Arg(1)

	ledger, _, err := openLedger()
	if err != nil {
		return fail(err)
	}

	entry, stale, err := ledger.Rate(ctx, from, to)
	if err != nil {
		logger.Error().Str("action", "RATE").Str("pair", from+"_"+to).Err(err).Msg("rate unavailable")
		return fail(err)
	}

	logger.Info().Str("action", "RATE").Str("pair", entry.Pair.String()).
		Str("value", entry.Rate.String()).Str("source", entry.Source).
		Bool("stale", stale).Msg("rate resolved")

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", entry.Pair)
	fmt.Fprintf(&b, "- Rate: %s\n", entry.Rate)
	fmt.Fprintf(&b, "- Observed: %s\n", entry.ObservedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- Source: %s\n", entry.Source)
	if stale {
		fmt.Fprintf(&b, "\n> Warning: this rate is older than the freshness window.\n")
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
