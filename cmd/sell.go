package cmd

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"valutatrade"
)

// sellCmd holds the flags for the 'sell' subcommand.
type sellCmd struct {
	user int64
	base string
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "sell an amount of a currency at the current rate" }
func (*sellCmd) Usage() string {
	return `vth sell -user <id> [-base <currency>] <currency> <amount>

  Sells the given amount of a currency, crediting the base-currency wallet
  at the freshest available rate.
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.user, "user", 0, "User whose portfolio is traded.")
	f.StringVar(&c.base, "base", "", "Base currency to receive. Defaults to the configured one.")
}

func (c *sellCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return executeTrade(ctx, valutatrade.KindSell, c.user, c.base, f)
}
