package valutatrade

import (
	"fmt"
	"strings"
)

// Pair is an ordered (base, quote) currency combination used as a rate
// lookup key. rate(base, quote) is the number of quote units one base unit
// is worth.
type Pair struct {
	Base  string
	Quote string
}

// NewPair builds a pair from two currency codes, resolving both against the
// registry. Unknown codes are rejected here, before any network call.
func NewPair(base, quote string) (Pair, error) {
	b, err := GetCurrency(base)
	if err != nil {
		return Pair{}, err
	}
	q, err := GetCurrency(quote)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Base: b.Code, Quote: q.Code}, nil
}

// Reversed returns the pair with base and quote swapped.
func (p Pair) Reversed() Pair { return Pair{Base: p.Quote, Quote: p.Base} }

// String returns the persisted key form, e.g. "BTC_USD".
func (p Pair) String() string { return p.Base + "_" + p.Quote }

// ParsePair parses the "BASE_QUOTE" key form.
func ParsePair(s string) (Pair, error) {
	base, quote, ok := strings.Cut(s, "_")
	if !ok {
		return Pair{}, fmt.Errorf("invalid pair key %q, want BASE_QUOTE", s)
	}
	return NewPair(base, quote)
}
