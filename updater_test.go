package valutatrade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// scriptedSource fails a configurable number of calls before serving its
// table, and counts how often it was asked.
type scriptedSource struct {
	name     string
	kind     CurrencyKind
	rates    map[Pair]decimal.Decimal
	failures int
	calls    int
}

func (s *scriptedSource) Name() string       { return s.name }
func (s *scriptedSource) Kind() CurrencyKind { return s.kind }

func (s *scriptedSource) Fetch(_ context.Context, pairs []Pair) (map[Pair]decimal.Decimal, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("connection refused")
	}
	out := make(map[Pair]decimal.Decimal)
	for _, p := range pairs {
		if rate, ok := s.rates[p]; ok {
			out[p] = rate
		}
	}
	return out, nil
}

// memoryHistorian records appended observations in order.
type memoryHistorian struct {
	entries []RateEntry
}

func (h *memoryHistorian) AppendRateHistory(e RateEntry) error {
	h.entries = append(h.entries, e)
	return nil
}

func ratesTable(t *testing.T, rates map[string]float64) map[Pair]decimal.Decimal {
	t.Helper()
	out := make(map[Pair]decimal.Decimal, len(rates))
	for key, v := range rates {
		p, err := ParsePair(key)
		if err != nil {
			t.Fatalf("ParsePair(%q) failed: %v", key, err)
		}
		out[p] = decimal.NewFromFloat(v)
	}
	return out
}

func resultFor(t *testing.T, report RefreshReport, pair string) PairResult {
	t.Helper()
	for _, pr := range report.Results {
		if pr.Pair.String() == pair {
			return pr
		}
	}
	t.Fatalf("no result for pair %s in %+v", pair, report.Results)
	return PairResult{}
}

func TestUpdater_Refresh_DomainRouting(t *testing.T) {
	crypto := &scriptedSource{name: "crypto-src", kind: Crypto,
		rates: ratesTable(t, map[string]float64{"BTC_USD": 50000})}
	fiat := &scriptedSource{name: "fiat-src", kind: Fiat,
		rates: ratesTable(t, map[string]float64{"EUR_USD": 1.0786})}
	cache := NewRateCache(0)

	u := NewUpdater([]RateSource{crypto, fiat}, cache, nil, time.Second)
	report := u.Refresh(context.Background(), []Pair{
		{Base: "BTC", Quote: "USD"},
		{Base: "EUR", Quote: "USD"},
	})

	if got := report.Resolved(); got != 2 {
		t.Fatalf("Resolved() = %d, want 2", got)
	}
	if pr := resultFor(t, report, "BTC_USD"); pr.Source != "crypto-src" {
		t.Errorf("BTC_USD resolved by %q, want crypto-src", pr.Source)
	}
	if pr := resultFor(t, report, "EUR_USD"); pr.Source != "fiat-src" {
		t.Errorf("EUR_USD resolved by %q, want fiat-src", pr.Source)
	}
	if _, err := cache.Get(mustPair(t, "BTC", "USD"), u.clock()); err != nil {
		t.Errorf("BTC_USD not cached after refresh: %v", err)
	}
}

func TestUpdater_Refresh_FallbackToSecondaryProvider(t *testing.T) {
	// the crypto-primary provider is down; the fiat provider also carries
	// the pair and serves it in the second pass
	broken := &scriptedSource{name: "crypto-src", kind: Crypto, failures: 99}
	backup := &scriptedSource{name: "fiat-src", kind: Fiat,
		rates: ratesTable(t, map[string]float64{"BTC_USD": 49900})}
	cache := NewRateCache(0)

	u := NewUpdater([]RateSource{broken, backup}, cache, nil, time.Second)
	report := u.Refresh(context.Background(), []Pair{{Base: "BTC", Quote: "USD"}})

	pr := resultFor(t, report, "BTC_USD")
	if !pr.Resolved {
		t.Fatalf("BTC_USD unresolved: %v", pr.Err)
	}
	if pr.Source != "fiat-src" {
		t.Errorf("BTC_USD resolved by %q, want the fallback fiat-src", pr.Source)
	}
}

func TestUpdater_Refresh_RetriesOnce(t *testing.T) {
	flaky := &scriptedSource{name: "crypto-src", kind: Crypto, failures: 1,
		rates: ratesTable(t, map[string]float64{"BTC_USD": 50000})}
	cache := NewRateCache(0)

	u := NewUpdater([]RateSource{flaky}, cache, nil, time.Second)
	report := u.Refresh(context.Background(), []Pair{{Base: "BTC", Quote: "USD"}})

	if pr := resultFor(t, report, "BTC_USD"); !pr.Resolved {
		t.Fatalf("BTC_USD unresolved after a transient failure: %v", pr.Err)
	}
	if flaky.calls != 2 {
		t.Errorf("provider called %d times, want 2 (one retry)", flaky.calls)
	}
}

func TestUpdater_Refresh_FailureIsolation(t *testing.T) {
	broken := &scriptedSource{name: "crypto-src", kind: Crypto, failures: 99}
	healthy := &scriptedSource{name: "fiat-src", kind: Fiat,
		rates: ratesTable(t, map[string]float64{"EUR_USD": 1.0786})}
	cache := NewRateCache(0)
	cache.Put(entry(t, "BTC", "USD", 48000, t0.Add(-time.Hour)))

	u := NewUpdater([]RateSource{broken, healthy}, cache, nil, time.Second)
	report := u.Refresh(context.Background(), []Pair{
		{Base: "BTC", Quote: "USD"},
		{Base: "EUR", Quote: "USD"},
	})

	if pr := resultFor(t, report, "EUR_USD"); !pr.Resolved {
		t.Errorf("EUR_USD unresolved, one broken provider must not abort the rest: %v", pr.Err)
	}
	pr := resultFor(t, report, "BTC_USD")
	if pr.Resolved {
		t.Fatal("BTC_USD reported resolved with every covering provider down")
	}
	var apiErr *ApiRequestError
	if !errors.As(pr.Err, &apiErr) {
		t.Errorf("BTC_USD error = %v, want ApiRequestError", pr.Err)
	}

	// the stale cached observation survives the failed refresh
	got, err := cache.Get(mustPair(t, "BTC", "USD"), u.clock())
	if !errors.Is(err, ErrStaleRate) {
		t.Fatalf("Get() after failed refresh error = %v, want ErrStaleRate", err)
	}
	if !got.Rate.Equal(decimal.NewFromInt(48000)) {
		t.Errorf("stale rate = %s, want the previous 48000", got.Rate)
	}
}

func TestUpdater_Refresh_UncoveredPair(t *testing.T) {
	crypto := &scriptedSource{name: "crypto-src", kind: Crypto,
		rates: ratesTable(t, map[string]float64{"BTC_USD": 50000})}
	cache := NewRateCache(0)

	u := NewUpdater([]RateSource{crypto}, cache, nil, time.Second)
	report := u.Refresh(context.Background(), []Pair{{Base: "EUR", Quote: "USD"}})

	pr := resultFor(t, report, "EUR_USD")
	if pr.Resolved {
		t.Fatal("EUR_USD reported resolved with no provider carrying it")
	}
	if pr.Err == nil {
		t.Error("unresolved pair carries no error")
	}
}

func TestUpdater_Refresh_AppendsHistory(t *testing.T) {
	crypto := &scriptedSource{name: "crypto-src", kind: Crypto,
		rates: ratesTable(t, map[string]float64{"BTC_USD": 50000, "ETH_USD": 3720})}
	cache := NewRateCache(0)
	history := &memoryHistorian{}

	u := NewUpdater([]RateSource{crypto}, cache, history, time.Second)
	u.Refresh(context.Background(), []Pair{
		{Base: "BTC", Quote: "USD"},
		{Base: "ETH", Quote: "USD"},
	})

	if len(history.entries) != 2 {
		t.Fatalf("history got %d entries, want 2", len(history.entries))
	}
	for _, e := range history.entries {
		if e.Source != "crypto-src" {
			t.Errorf("history entry source = %q, want crypto-src", e.Source)
		}
	}
}

func TestUpdater_Refresh_CancelledContext(t *testing.T) {
	crypto := &scriptedSource{name: "crypto-src", kind: Crypto,
		rates: ratesTable(t, map[string]float64{"BTC_USD": 50000})}
	cache := NewRateCache(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u := NewUpdater([]RateSource{crypto}, cache, nil, time.Second)
	report := u.Refresh(ctx, []Pair{{Base: "BTC", Quote: "USD"}})

	pr := resultFor(t, report, "BTC_USD")
	if pr.Resolved {
		t.Fatal("pair reported resolved under a cancelled context")
	}
	if crypto.calls != 0 {
		t.Errorf("provider called %d times under a cancelled context, want 0", crypto.calls)
	}
}
