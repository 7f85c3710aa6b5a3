package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
)

// ratesCmd holds the flags for the 'rates' subcommand.
type ratesCmd struct {
	top int
}

func (*ratesCmd) Name() string     { return "rates" }
func (*ratesCmd) Synopsis() string { return "list the cached exchange rates" }
func (*ratesCmd) Usage() string {
	return `vth rates [-top <n>]

  Lists the cached rates, most recently observed first.
`
}

func (c *ratesCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.top, "top", 0, "Show only the N most recently observed rates.")
}

func (c *ratesCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ledger, _, err := openLedger()
	if err != nil {
		return fail(err)
	}

	entries := ledger.Cache().Entries()
	if c.top > 0 && len(entries) > c.top {
		entries = entries[:c.top]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Cached rates\n\n")
	if len(entries) == 0 {
		fmt.Fprintf(&b, "No rates cached yet. Run `vth update` first.\n")
		printMarkdown(b.String())
		return subcommands.ExitSuccess
	}
	fmt.Fprintf(&b, "| Pair | Rate | Observed | Source |\n")
	fmt.Fprintf(&b, "|---|---|---|---|\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			e.Pair, e.Rate, e.ObservedAt.Local().Format("2006-01-02 15:04:05"), e.Source)
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
