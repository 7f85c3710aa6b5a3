package exchangerate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"valutatrade"
)

func pair(t *testing.T, base, quote string) valutatrade.Pair {
	t.Helper()
	p, err := valutatrade.NewPair(base, quote)
	if err != nil {
		t.Fatalf("NewPair(%q, %q) failed: %v", base, quote, err)
	}
	return p
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("New(\"\") error = %v, want ErrMissingAPIKey", err)
	}
	if _, err := New("some-key"); err != nil {
		t.Errorf("New() with a key failed: %v", err)
	}
}

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/test-key/latest/USD") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"result": "success",
			"base_code": "USD",
			"conversion_rates": {"USD": 1, "EUR": 0.8, "GBP": 0.5, "JPY": 150}
		}`))
	}))
	defer server.Close()

	c, err := NewWithBaseURL("test-key", server.URL)
	if err != nil {
		t.Fatalf("NewWithBaseURL() failed: %v", err)
	}
	got, err := c.Fetch(context.Background(), []valutatrade.Pair{
		pair(t, "EUR", "USD"),
		pair(t, "GBP", "USD"),
	})
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	// the provider quotes USD→X, the result must be inverted to X_USD
	if want := decimal.NewFromFloat(1.25); !got[pair(t, "EUR", "USD")].Equal(want) {
		t.Errorf("EUR_USD = %s, want %s", got[pair(t, "EUR", "USD")], want)
	}
	if want := decimal.NewFromInt(2); !got[pair(t, "GBP", "USD")].Equal(want) {
		t.Errorf("GBP_USD = %s, want %s", got[pair(t, "GBP", "USD")], want)
	}
}

func TestClient_Fetch_SkipsNonUSDQuotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected when no pair is covered")
	}))
	defer server.Close()

	c, err := NewWithBaseURL("test-key", server.URL)
	if err != nil {
		t.Fatalf("NewWithBaseURL() failed: %v", err)
	}
	got, err := c.Fetch(context.Background(), []valutatrade.Pair{pair(t, "EUR", "GBP")})
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Fetch() returned %d rates, want 0", len(got))
	}
}

func TestClient_Fetch_ProviderError(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "forbidden", http.StatusForbidden)
			},
		},
		{
			name: "api-level failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result": "error", "error-type": "invalid-key"}`))
			},
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{not json`))
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			c, err := NewWithBaseURL("test-key", server.URL)
			if err != nil {
				t.Fatalf("NewWithBaseURL() failed: %v", err)
			}
			_, err = c.Fetch(context.Background(), []valutatrade.Pair{pair(t, "EUR", "USD")})
			var apiErr *valutatrade.ApiRequestError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Fetch() error = %v, want ApiRequestError", err)
			}
			if apiErr.Provider != "ExchangeRate-API" {
				t.Errorf("Provider = %q, want ExchangeRate-API", apiErr.Provider)
			}
		})
	}
}
