package valutatrade

import (
	"context"

	"github.com/shopspring/decimal"
)

// RateSource is one external rate provider. Implementations live in their
// own packages (coingecko, exchangerate); the core only depends on this
// contract.
type RateSource interface {
	// Name identifies the provider in rate entries and refresh reports.
	Name() string
	// Kind is the currency domain the provider is primary for; the
	// updater consults it before other providers for pairs of that kind.
	Kind() CurrencyKind
	// Fetch returns the latest rates it can supply for the requested
	// pairs. Pairs the provider does not cover are simply absent from the
	// result; a transport or payload failure is an error for the whole
	// call.
	Fetch(ctx context.Context, pairs []Pair) (map[Pair]decimal.Decimal, error)
}

// StaticSource serves a fixed rate table. It backs the default setup when
// no provider API key is configured, and tests.
type StaticSource struct {
	SourceName string
	Domain     CurrencyKind
	Rates      map[Pair]decimal.Decimal
}

func (s *StaticSource) Name() string       { return s.SourceName }
func (s *StaticSource) Kind() CurrencyKind { return s.Domain }

func (s *StaticSource) Fetch(_ context.Context, pairs []Pair) (map[Pair]decimal.Decimal, error) {
	out := make(map[Pair]decimal.Decimal)
	for _, p := range pairs {
		if rate, ok := s.Rates[p]; ok {
			out[p] = rate
		}
	}
	return out, nil
}

// NewStaticSource builds a demonstration source with indicative rates for
// the built-in currency set, all quoted against USD.
func NewStaticSource() *StaticSource {
	rates := map[string]float64{
		"EUR_USD": 1.0786, "GBP_USD": 1.2543, "RUB_USD": 0.01016,
		"JPY_USD": 0.0067, "CHF_USD": 1.1121,
		"BTC_USD": 59337.21, "ETH_USD": 3720.00, "SOL_USD": 145.12,
		"ADA_USD": 0.4512, "DOGE_USD": 0.1230,
	}
	table := make(map[Pair]decimal.Decimal, len(rates))
	for key, v := range rates {
		p, err := ParsePair(key)
		if err != nil {
			continue
		}
		table[p] = decimal.NewFromFloat(v)
	}
	return &StaticSource{SourceName: "static", Domain: Fiat, Rates: table}
}
