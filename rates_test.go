package valutatrade

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func mustPair(t *testing.T, base, quote string) Pair {
	t.Helper()
	p, err := NewPair(base, quote)
	if err != nil {
		t.Fatalf("NewPair(%q, %q) failed: %v", base, quote, err)
	}
	return p
}

func entry(t *testing.T, base, quote string, rate float64, observed time.Time) RateEntry {
	t.Helper()
	return RateEntry{
		Pair:       mustPair(t, base, quote),
		Rate:       decimal.NewFromFloat(rate),
		ObservedAt: observed,
		Source:     "test",
	}
}

func TestRateCache_Get_Freshness(t *testing.T) {
	ttl := 300 * time.Second
	testCases := []struct {
		name    string
		age     time.Duration
		wantErr error
	}{
		{name: "just observed", age: 0, wantErr: nil},
		{name: "one second before the boundary", age: ttl - time.Second, wantErr: nil},
		{name: "exactly at the boundary", age: ttl, wantErr: nil},
		{name: "one second past the boundary", age: ttl + time.Second, wantErr: ErrStaleRate},
		{name: "long expired", age: 24 * time.Hour, wantErr: ErrStaleRate},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cache := NewRateCache(ttl)
			cache.Put(entry(t, "BTC", "USD", 50000, t0.Add(-tc.age)))

			got, err := cache.Get(mustPair(t, "BTC", "USD"), t0)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Get() error = %v, want %v", err, tc.wantErr)
			}
			// the stale entry is still handed back for fallback use
			if !got.Rate.Equal(decimal.NewFromInt(50000)) {
				t.Errorf("Get() rate = %s, want 50000", got.Rate)
			}
		})
	}
}

func TestRateCache_Get_Missing(t *testing.T) {
	cache := NewRateCache(0)
	if _, err := cache.Get(mustPair(t, "ETH", "USD"), t0); !errors.Is(err, ErrRateNotFound) {
		t.Errorf("Get() on empty cache error = %v, want ErrRateNotFound", err)
	}
}

func TestRateCache_Put_Replaces(t *testing.T) {
	cache := NewRateCache(0)
	cache.Put(entry(t, "EUR", "USD", 1.05, t0.Add(-time.Minute)))
	cache.Put(entry(t, "EUR", "USD", 1.0786, t0))

	got, err := cache.Get(mustPair(t, "EUR", "USD"), t0)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !got.Rate.Equal(decimal.NewFromFloat(1.0786)) {
		t.Errorf("Get() rate = %s, want 1.0786", got.Rate)
	}
	if !got.ObservedAt.Equal(t0) {
		t.Errorf("Get() observedAt = %s, want %s", got.ObservedAt, t0)
	}
}

func TestRateCache_Lookup_ReversedPair(t *testing.T) {
	cache := NewRateCache(0)
	cache.Put(entry(t, "EUR", "USD", 1.25, t0))

	got, err := cache.Lookup("USD", "EUR", t0)
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if want := decimal.NewFromFloat(0.8); !got.Rate.Equal(want) {
		t.Errorf("Lookup() rate = %s, want %s", got.Rate, want)
	}
	if got.Source != "derived:test" {
		t.Errorf("Lookup() source = %q, want %q", got.Source, "derived:test")
	}
	if got.Pair != mustPair(t, "USD", "EUR") {
		t.Errorf("Lookup() pair = %s, want USD_EUR", got.Pair)
	}
}

func TestRateCache_Lookup_CrossUSD(t *testing.T) {
	cache := NewRateCache(0)
	older := t0.Add(-2 * time.Minute)
	cache.Put(entry(t, "BTC", "USD", 50000, t0))
	cache.Put(entry(t, "EUR", "USD", 1.25, older))

	got, err := cache.Lookup("BTC", "EUR", t0)
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if want := decimal.NewFromInt(40000); !got.Rate.Equal(want) {
		t.Errorf("Lookup() rate = %s, want %s", got.Rate, want)
	}
	if got.Source != "derived:cross-usd" {
		t.Errorf("Lookup() source = %q, want %q", got.Source, "derived:cross-usd")
	}
	// a derived value is only as fresh as its oldest leg
	if !got.ObservedAt.Equal(older) {
		t.Errorf("Lookup() observedAt = %s, want the older leg %s", got.ObservedAt, older)
	}
}

func TestRateCache_Lookup_PrefersDirectOverDerived(t *testing.T) {
	cache := NewRateCache(0)
	cache.Put(entry(t, "BTC", "EUR", 41000, t0))
	cache.Put(entry(t, "BTC", "USD", 50000, t0))
	cache.Put(entry(t, "EUR", "USD", 1.25, t0))

	got, err := cache.Lookup("BTC", "EUR", t0)
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if want := decimal.NewFromInt(41000); !got.Rate.Equal(want) {
		t.Errorf("Lookup() rate = %s, want the direct observation %s", got.Rate, want)
	}
}

func TestRateCache_Lookup_StaleFallback(t *testing.T) {
	stale := t0.Add(-time.Hour)

	testCases := []struct {
		name    string
		seed    []RateEntry
		from    string
		to      string
		want    float64
		wantErr error
	}{
		{
			name:    "stale direct entry",
			seed:    []RateEntry{entry(t, "BTC", "USD", 48000, stale)},
			from:    "BTC",
			to:      "USD",
			want:    48000,
			wantErr: ErrStaleRate,
		},
		{
			name:    "stale reversed entry",
			seed:    []RateEntry{entry(t, "EUR", "USD", 1.25, stale)},
			from:    "USD",
			to:      "EUR",
			want:    0.8,
			wantErr: ErrStaleRate,
		},
		{
			name: "stale cross legs",
			seed: []RateEntry{
				entry(t, "BTC", "USD", 50000, stale),
				entry(t, "EUR", "USD", 1.25, stale),
			},
			from:    "BTC",
			to:      "EUR",
			want:    40000,
			wantErr: ErrStaleRate,
		},
		{
			name:    "nothing recorded",
			seed:    nil,
			from:    "BTC",
			to:      "EUR",
			wantErr: ErrRateNotFound,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cache := NewRateCache(300 * time.Second)
			for _, e := range tc.seed {
				cache.Put(e)
			}
			got, err := cache.Lookup(tc.from, tc.to, t0)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Lookup() error = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr == ErrRateNotFound {
				return
			}
			if want := decimal.NewFromFloat(tc.want); !got.Rate.Equal(want) {
				t.Errorf("Lookup() rate = %s, want %s", got.Rate, want)
			}
		})
	}
}

func TestRateCache_Lookup_UnknownCurrency(t *testing.T) {
	cache := NewRateCache(0)
	_, err := cache.Lookup("BTC", "XXX", t0)
	var notFound *CurrencyNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Lookup() error = %v, want CurrencyNotFoundError", err)
	}
	if notFound.Code != "XXX" {
		t.Errorf("CurrencyNotFoundError.Code = %q, want %q", notFound.Code, "XXX")
	}
}

func TestRateCache_Entries_NewestFirst(t *testing.T) {
	cache := NewRateCache(0)
	cache.Put(entry(t, "EUR", "USD", 1.0786, t0.Add(-time.Minute)))
	cache.Put(entry(t, "BTC", "USD", 50000, t0))
	cache.Put(entry(t, "ETH", "USD", 3720, t0.Add(-2*time.Minute)))

	got := cache.Entries()
	want := []string{"BTC_USD", "EUR_USD", "ETH_USD"}
	if len(got) != len(want) {
		t.Fatalf("Entries() returned %d entries, want %d", len(got), len(want))
	}
	for i, key := range want {
		if got[i].Pair.String() != key {
			t.Errorf("Entries()[%d] = %s, want %s", i, got[i].Pair, key)
		}
	}
}
