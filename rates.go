package valutatrade

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultRatesTTL is the maximum age after which a cached rate is
// considered unusable without a refresh.
const DefaultRatesTTL = 300 * time.Second

// RateEntry is the latest observed rate for one pair.
// Entries are created and replaced wholesale by the Updater, never
// partially mutated.
type RateEntry struct {
	Pair       Pair
	Rate       decimal.Decimal
	ObservedAt time.Time
	Source     string
}

// Invert returns the reciprocal entry for the reversed pair.
// The derived source records where the observation came from.
func (e RateEntry) Invert() RateEntry {
	return RateEntry{
		Pair:       e.Pair.Reversed(),
		Rate:       decimal.NewFromInt(1).Div(e.Rate),
		ObservedAt: e.ObservedAt,
		Source:     "derived:" + e.Source,
	}
}

func (e RateEntry) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("pair", e.Pair.String())
	w.Append("value", e.Rate)
	w.Append("observedAt", e.ObservedAt.UTC().Format(time.RFC3339))
	w.Append("source", e.Source)
	return w.MarshalJSON()
}

// RateCache holds the latest known rate per pair, guarded by a single lock
// so that readers never observe a partially applied refresh. One TTL
// applies uniformly to every pair; which provider a value came from does
// not change how long it stays usable.
type RateCache struct {
	mu      sync.RWMutex
	entries map[Pair]RateEntry
	ttl     time.Duration
}

// NewRateCache creates an empty cache with the given TTL.
// A non-positive ttl falls back to DefaultRatesTTL.
func NewRateCache(ttl time.Duration) *RateCache {
	if ttl <= 0 {
		ttl = DefaultRatesTTL
	}
	return &RateCache{entries: make(map[Pair]RateEntry), ttl: ttl}
}

func (c *RateCache) TTL() time.Duration { return c.ttl }

// Put replaces any existing entry for the same pair.
func (c *RateCache) Put(e RateEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Pair] = e
}

// Get returns the entry for the pair if it is fresh at the given instant.
// A stale entry is returned together with ErrStaleRate so the caller can
// knowingly fall back to it; a missing entry returns ErrRateNotFound.
func (c *RateCache) Get(p Pair, now time.Time) (RateEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[p]
	if !ok {
		return RateEntry{}, ErrRateNotFound
	}
	if now.Sub(e.ObservedAt) > c.ttl {
		return e, ErrStaleRate
	}
	return e, nil
}

// IsFresh reports whether a fresh entry exists for the pair.
func (c *RateCache) IsFresh(p Pair, now time.Time) bool {
	_, err := c.Get(p, now)
	return err == nil
}

// Lookup resolves a rate between two currencies, deriving it when no
// direct observation exists: first the reversed pair inverted, then a
// cross through USD. A derived entry is only as fresh as its oldest leg.
func (c *RateCache) Lookup(from, to string, now time.Time) (RateEntry, error) {
	p, err := NewPair(from, to)
	if err != nil {
		return RateEntry{}, err
	}

	direct, derr := c.Get(p, now)
	if derr == nil {
		return direct, nil
	}

	if rev, err := c.Get(p.Reversed(), now); err == nil {
		return rev.Invert(), nil
	}

	if cross, err := c.crossUSD(p, now); err == nil {
		return cross, nil
	}

	// no fresh path: surface the stale direct entry if one exists
	if derr == ErrStaleRate {
		return direct, ErrStaleRate
	}
	if rev, err := c.Get(p.Reversed(), now); err == ErrStaleRate {
		return rev.Invert(), ErrStaleRate
	}
	if cross, err := c.crossUSD(p, time.Time{}); err == nil {
		// zero instant disables the freshness check on the legs
		return cross, ErrStaleRate
	}
	return RateEntry{}, ErrRateNotFound
}

// crossUSD derives from→to out of the from_USD and to_USD observations.
// A zero now skips the per-leg freshness check (used for the stale path).
func (c *RateCache) crossUSD(p Pair, now time.Time) (RateEntry, error) {
	if p.Base == "USD" || p.Quote == "USD" {
		return RateEntry{}, ErrRateNotFound
	}
	get := func(q Pair) (RateEntry, error) {
		c.mu.RLock()
		defer c.mu.RUnlock()
		e, ok := c.entries[q]
		if !ok {
			return RateEntry{}, ErrRateNotFound
		}
		if !now.IsZero() && now.Sub(e.ObservedAt) > c.ttl {
			return e, ErrStaleRate
		}
		return e, nil
	}
	baseLeg, err := get(Pair{Base: p.Base, Quote: "USD"})
	if err != nil {
		return RateEntry{}, err
	}
	quoteLeg, err := get(Pair{Base: p.Quote, Quote: "USD"})
	if err != nil {
		return RateEntry{}, err
	}
	observed := baseLeg.ObservedAt
	if quoteLeg.ObservedAt.Before(observed) {
		observed = quoteLeg.ObservedAt
	}
	return RateEntry{
		Pair:       p,
		Rate:       baseLeg.Rate.Div(quoteLeg.Rate),
		ObservedAt: observed,
		Source:     "derived:cross-usd",
	}, nil
}

// Entries returns a snapshot of all cached entries, newest first.
func (c *RateCache) Entries() []RateEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]RateEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ObservedAt.Equal(out[j].ObservedAt) {
			return out[i].ObservedAt.After(out[j].ObservedAt)
		}
		return out[i].Pair.String() < out[j].Pair.String()
	})
	return out
}
