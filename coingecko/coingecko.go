// Package coingecko implements the crypto rate source on top of the
// CoinGecko simple price API.
package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"valutatrade"
)

const baseURL = "https://api.coingecko.com/api/v3/simple/price"

// coinIDs maps currency codes to CoinGecko asset identifiers.
var coinIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"BNB":  "binancecoin",
	"XRP":  "ripple",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
}

// Client fetches crypto rates quoted in USD. It satisfies
// valutatrade.RateSource.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// New creates a client against the public CoinGecko API.
func New() *Client {
	return &Client{
		baseURL: baseURL,
		// the free tier tolerates roughly 30 calls/min
		rateLimiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
		httpClient:  &http.Client{},
	}
}

// NewWithBaseURL creates a client against a custom endpoint. Used in tests.
func NewWithBaseURL(base string) *Client {
	c := New()
	c.baseURL = base
	return c
}

func (c *Client) Name() string                   { return "CoinGecko" }
func (c *Client) Kind() valutatrade.CurrencyKind { return valutatrade.Crypto }

// Fetch returns USD rates for the crypto pairs CoinGecko knows about.
// Pairs not quoted in USD or without a CoinGecko id are skipped.
func (c *Client) Fetch(ctx context.Context, pairs []valutatrade.Pair) (map[valutatrade.Pair]decimal.Decimal, error) {
	ids := make(map[string]valutatrade.Pair)
	for _, p := range pairs {
		if p.Quote != "USD" {
			continue
		}
		if id, ok := coinIDs[p.Base]; ok {
			ids[id] = p
		}
	}
	if len(ids) == 0 {
		return map[valutatrade.Pair]decimal.Decimal{}, nil
	}

	keys := make([]string, 0, len(ids))
	for id := range ids {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	q := url.Values{}
	q.Set("ids", strings.Join(keys, ","))
	q.Set("vs_currencies", "usd")

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	var jobj any
	if err := valutatrade.GetJSON(ctx, c.httpClient, c.baseURL+"?"+q.Encode(), &jobj); err != nil {
		return nil, &valutatrade.ApiRequestError{Provider: c.Name(), Reason: err.Error(), Err: err}
	}

	// the response object is keyed by asset id, so the shape is dynamic
	out := make(map[valutatrade.Pair]decimal.Decimal, len(ids))
	for id, pair := range ids {
		jval, err := jsonpath.Get(fmt.Sprintf("$.%s.usd", id), jobj)
		if err != nil {
			continue // asset absent from the answer, not a payload failure
		}
		val, ok := jval.(float64)
		if !ok || val <= 0 {
			return nil, &valutatrade.ApiRequestError{Provider: c.Name(), Reason: fmt.Sprintf("malformed price for %s: %v", id, jval)}
		}
		out[pair] = decimal.NewFromFloat(val)
	}
	return out, nil
}
