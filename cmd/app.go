// Package cmd implements the CLI application around the trading core.
//
// Commands map one to one onto core operations and do the boundary work
// the core deliberately leaves out: action logging, error rendering, and
// exit codes.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"valutatrade"
	"valutatrade/coingecko"
	"valutatrade/exchangerate"
)

// Register the subcommands.
// A main package calls Register() and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&buyCmd{}, "trading")
	c.Register(&sellCmd{}, "trading")
	c.Register(&portfolioCmd{}, "trading")

	c.Register(&rateCmd{}, "rates")
	c.Register(&updateCmd{}, "rates")
	c.Register(&ratesCmd{}, "rates")
	c.Register(&watchCmd{}, "rates")
}

// as a CLI application with a short lived lifecycle, package level state
// shared by all commands is fine here.

var configFile = flag.String("config", "valutatrade.yaml", "Path to the optional YAML configuration file.")

// logger writes structured action logs to stderr; the core itself only
// returns errors.
var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// Exit codes per error family, beyond the generic subcommands statuses.
const (
	exitValidation      = subcommands.ExitStatus(2)
	exitExternalService = subcommands.ExitStatus(3)
	exitUser            = subcommands.ExitStatus(4)
)

// openLedger wires the whole core from configuration: store, cache seeded
// from the persisted view, providers, updater and ledger.
func openLedger() (*valutatrade.Ledger, valutatrade.Settings, error) {
	settings, err := valutatrade.LoadSettings(*configFile)
	if err != nil {
		return nil, valutatrade.Settings{}, fmt.Errorf("could not load settings: %w", err)
	}

	store, err := valutatrade.NewStore(settings.DataDir)
	if err != nil {
		return nil, settings, err
	}

	cache := valutatrade.NewRateCache(settings.RatesTTL())
	entries, _, err := store.LoadRates()
	if err != nil {
		return nil, settings, err
	}
	for _, e := range entries {
		cache.Put(e)
	}

	sources := []valutatrade.RateSource{coingecko.New()}
	if settings.ExchangeRateAPIKey != "" {
		fx, err := exchangerate.New(settings.ExchangeRateAPIKey)
		if err != nil {
			return nil, settings, err
		}
		sources = append(sources, fx)
	} else {
		logger.Warn().Msg("EXCHANGERATE_API_KEY is not set, falling back to indicative static fiat rates")
		sources = append(sources, valutatrade.NewStaticSource())
	}

	updater := valutatrade.NewUpdater(sources, cache, store, settings.RequestTimeout())
	return valutatrade.NewLedger(store, cache, updater), settings, nil
}

// fail renders one stable message per error kind and maps the kind onto
// its exit-code family.
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitStatus(err)
}

func exitStatus(err error) subcommands.ExitStatus {
	var insufficient *valutatrade.InsufficientFundsError
	var unknownCurrency *valutatrade.CurrencyNotFoundError
	var api *valutatrade.ApiRequestError
	var noUser *valutatrade.UserNotFoundError
	switch {
	case errors.As(err, &insufficient), errors.As(err, &unknownCurrency), errors.Is(err, valutatrade.ErrInvalidAmount):
		return exitValidation
	case errors.As(err, &api):
		return exitExternalService
	case errors.As(err, &noUser):
		return exitUser
	default:
		return subcommands.ExitFailure
	}
}

// printMarkdown renders a markdown report for the terminal.
func printMarkdown(md string) {
	out, err := glamour.Render(md, "auto")
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}
