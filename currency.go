package valutatrade

import (
	"fmt"
	"strings"
)

// CurrencyKind separates physical currencies from crypto assets.
// The kind decides the rounding precision of amounts and which rate
// provider is consulted first.
type CurrencyKind string

const (
	Fiat   CurrencyKind = "FIAT"
	Crypto CurrencyKind = "CRYPTO"
)

// Currency is the definition of a single currency known to the system.
// There is exactly one definition per code; any code that does not resolve
// against the registry is rejected before a rate lookup or a trade.
type Currency struct {
	Name      string       // human readable name, e.g. "Bitcoin"
	Code      string       // upper-case code, e.g. "BTC"
	Kind      CurrencyKind // fiat or crypto
	Precision int32        // decimal places amounts are rounded to
}

func (c Currency) String() string {
	return fmt.Sprintf("[%s] %s - %s", c.Kind, c.Code, c.Name)
}

// registry indexes currency definitions by code.
type registry struct {
	byCode map[string]Currency
}

func newRegistry(currencies ...Currency) *registry {
	r := &registry{byCode: make(map[string]Currency, len(currencies))}
	for _, c := range currencies {
		r.byCode[c.Code] = c
	}
	return r
}

// defaultCurrencies is the built-in currency set.
// Fiat amounts round to 2 places, crypto to 8.
var defaultCurrencies = []Currency{
	{Name: "US Dollar", Code: "USD", Kind: Fiat, Precision: 2},
	{Name: "Euro", Code: "EUR", Kind: Fiat, Precision: 2},
	{Name: "British Pound", Code: "GBP", Kind: Fiat, Precision: 2},
	{Name: "Russian Ruble", Code: "RUB", Kind: Fiat, Precision: 2},
	{Name: "Japanese Yen", Code: "JPY", Kind: Fiat, Precision: 2},
	{Name: "Swiss Franc", Code: "CHF", Kind: Fiat, Precision: 2},
	{Name: "Bitcoin", Code: "BTC", Kind: Crypto, Precision: 8},
	{Name: "Ethereum", Code: "ETH", Kind: Crypto, Precision: 8},
	{Name: "Solana", Code: "SOL", Kind: Crypto, Precision: 8},
	{Name: "Cardano", Code: "ADA", Kind: Crypto, Precision: 8},
	{Name: "Dogecoin", Code: "DOGE", Kind: Crypto, Precision: 8},
}

var currencies = newRegistry(defaultCurrencies...)

// GetCurrency resolves a code against the registry.
// The code is normalized (trimmed, upper-cased) before the lookup.
func GetCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	c, ok := currencies.byCode[code]
	if !ok {
		return Currency{}, &CurrencyNotFoundError{Code: code}
	}
	return c, nil
}

// AllCurrencies returns every registered currency definition.
func AllCurrencies() []Currency {
	out := make([]Currency, 0, len(currencies.byCode))
	for _, c := range currencies.byCode {
		out = append(out, c)
	}
	return out
}
