package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"valutatrade"
)

// buyCmd holds the flags for the 'buy' subcommand.
type buyCmd struct {
	user int64
	base string
}

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "buy an amount of a currency at the current rate" }
func (*buyCmd) Usage() string {
	return `vth buy -user <id> [-base <currency>] <currency> <amount>

  Buys the given amount of a currency, debiting the base-currency wallet
  at the freshest available rate.
`
}

func (c *buyCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.user, "user", 0, "User whose portfolio is traded.")
	f.StringVar(&c.base, "base", "", "Base currency to pay with. Defaults to the configured one.")
}

func (c *buyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return executeTrade(ctx, valutatrade.KindBuy, c.user, c.base, f)
}

// executeTrade runs one buy or sell from the command line arguments, then
// logs and renders the resulting transaction. Shared by buyCmd and sellCmd.
func executeTrade(ctx context.Context, kind valutatrade.TradeKind, user int64, base string, f *flag.FlagSet) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "Error: expected <currency> <amount> arguments, got %d\n", f.NArg())
		return subcommands.ExitUsageError
	}
	code := f.Arg(0)
	amount, err := decimal.NewFromString(f.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid amount %q: %v\n", f.Arg(1), err)
		return subcommands.ExitUsageError
	}

	ledger, settings, err := openLedger()
	if err != nil {
		return fail(err)
	}
	if base == "" {
		base = settings.DefaultBaseCurrency
	}

	var tx valutatrade.Transaction
	if kind == valutatrade.KindBuy {
		tx, err = ledger.Buy(ctx, user, code, valutatrade.Q(amount), base)
	} else {
		tx, err = ledger.Sell(ctx, user, code, valutatrade.Q(amount), base)
	}
	if err != nil {
		logger.Error().Str("action", string(kind)).Int64("user_id", user).
			Str("currency", code).Str("amount", amount.String()).Err(err).Msg("trade rejected")
		return fail(err)
	}

	logger.Info().Str("action", string(kind)).Int64("user_id", user).
		Str("currency", tx.Currency).Str("amount", tx.Amount.String()).
		Str("rate", tx.UnitRate.String()).Str("total", tx.TotalCost.String()).
		Bool("stale_rate", tx.StaleRate).Msg("trade completed")

	printMarkdown(renderTrade(tx))
	return subcommands.ExitSuccess
}

func renderTrade(tx valutatrade.Transaction) string {
	verb := "Bought"
	costLabel := "Cost"
	if tx.Kind == valutatrade.KindSell {
		verb = "Sold"
		costLabel = "Proceeds"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s %s\n\n", verb, tx.Amount, tx.Currency)
	fmt.Fprintf(&b, "- Rate: 1 %s = %s %s\n", tx.Currency, tx.UnitRate, tx.TotalCost.Currency())
	fmt.Fprintf(&b, "- %s: %s\n", costLabel, tx.TotalCost)
	fmt.Fprintf(&b, "- New %s balance: %s\n", tx.Currency, tx.ResultingBalance)
	if tx.StaleRate {
		fmt.Fprintf(&b, "\n> Warning: the rate used was older than the freshness window.\n")
	}
	return b.String()
}
