package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
)

// portfolioCmd holds the flags for the 'portfolio' subcommand.
type portfolioCmd struct {
	user int64
	base string
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "display a user's wallets valued in one currency" }
func (*portfolioCmd) Usage() string {
	return `vth portfolio -user <id> [-base <currency>]

  Displays every wallet of the user with its value in the base currency,
  using the cached rates.
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.user, "user", 0, "User whose portfolio is displayed.")
	f.StringVar(&c.base, "base", "", "Currency to value the wallets in. Defaults to the configured one.")
}

func (c *portfolioCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ledger, settings, err := openLedger()
	if err != nil {
		return fail(err)
	}
	if c.base == "" {
		c.base = settings.DefaultBaseCurrency
	}

	report, err := ledger.Report(c.user, c.base)
	if err != nil {
		logger.Error().Str("action", "PORTFOLIO").Int64("user_id", c.user).Err(err).Msg("report failed")
		return fail(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Portfolio of user %d\n\n", report.UserID)
	fmt.Fprintf(&b, "| Currency | Balance | Value (%s) |\n", report.Base)
	fmt.Fprintf(&b, "|---|---|---|\n")
	for _, w := range report.Wallets {
		value := w.Value.String()
		switch {
		case !w.HasRate:
			value = "no rate"
		case w.Stale:
			value += " (stale)"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", w.Currency, w.Balance.Amount(), value)
	}
	fmt.Fprintf(&b, "\n**Total: %s**\n", report.Total)
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
