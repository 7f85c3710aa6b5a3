// Package exchangerate implements the fiat rate source on top of
// ExchangeRate-API v6.
package exchangerate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"valutatrade"
)

const baseURL = "https://v6.exchangerate-api.com/v6"

// ErrMissingAPIKey is returned by New when no key is supplied.
var ErrMissingAPIKey = errors.New("EXCHANGERATE_API_KEY is not set")

// response is the v6 latest-rates payload.
type response struct {
	Result          string                     `json:"result"`
	ErrorType       string                     `json:"error-type"`
	BaseCode        string                     `json:"base_code"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

// Client fetches fiat rates quoted in USD. It satisfies
// valutatrade.RateSource.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// New creates a client with the given API key.
func New(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 10),
		httpClient:  &http.Client{},
	}, nil
}

// NewWithBaseURL creates a client against a custom endpoint. Used in tests.
func NewWithBaseURL(apiKey, base string) (*Client, error) {
	c, err := New(apiKey)
	if err != nil {
		return nil, err
	}
	c.baseURL = base
	return c, nil
}

func (c *Client) Name() string                   { return "ExchangeRate-API" }
func (c *Client) Kind() valutatrade.CurrencyKind { return valutatrade.Fiat }

// Fetch returns USD rates for the requested fiat pairs. The provider
// quotes USD→X; entries are inverted to the X_USD form the cache stores.
func (c *Client) Fetch(ctx context.Context, pairs []valutatrade.Pair) (map[valutatrade.Pair]decimal.Decimal, error) {
	wanted := make(map[string]valutatrade.Pair)
	for _, p := range pairs {
		if p.Quote == "USD" {
			wanted[p.Base] = p
		}
	}
	if len(wanted) == 0 {
		return map[valutatrade.Pair]decimal.Decimal{}, nil
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	addr := fmt.Sprintf("%s/%s/latest/USD", c.baseURL, c.apiKey)
	var payload response
	if err := valutatrade.GetJSON(ctx, c.httpClient, addr, &payload); err != nil {
		return nil, &valutatrade.ApiRequestError{Provider: c.Name(), Reason: err.Error(), Err: err}
	}
	if payload.Result != "success" {
		reason := payload.ErrorType
		if reason == "" {
			reason = "unknown error"
		}
		return nil, &valutatrade.ApiRequestError{Provider: c.Name(), Reason: reason}
	}

	one := decimal.NewFromInt(1)
	out := make(map[valutatrade.Pair]decimal.Decimal, len(wanted))
	for code, pair := range wanted {
		usdToX, ok := payload.ConversionRates[code]
		if !ok || !usdToX.IsPositive() {
			continue
		}
		out[pair] = one.Div(usdToX)
	}
	return out, nil
}
