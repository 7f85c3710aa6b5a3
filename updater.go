package valutatrade

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RateHistorian records every newly observed rate in an append-only
// history, independent from the cache's latest-value semantics.
type RateHistorian interface {
	AppendRateHistory(e RateEntry) error
}

// PairResult is the outcome of refreshing a single pair.
type PairResult struct {
	Pair     Pair
	Resolved bool
	Source   string // provider that supplied the value, when resolved
	Err      error  // joined provider errors, when unresolved
}

// RefreshReport summarizes one Refresh call.
type RefreshReport struct {
	When    time.Time
	Results []PairResult
}

// Resolved counts the pairs that obtained a fresh value.
func (r RefreshReport) Resolved() int {
	n := 0
	for _, pr := range r.Results {
		if pr.Resolved {
			n++
		}
	}
	return n
}

// Unresolved returns the results that failed to obtain a value.
func (r RefreshReport) Unresolved() []PairResult {
	var out []PairResult
	for _, pr := range r.Results {
		if !pr.Resolved {
			out = append(out, pr)
		}
	}
	return out
}

// Updater orchestrates a refresh across the configured providers and
// merges the results into the cache.
type Updater struct {
	sources []RateSource // fixed priority order within each domain pass
	cache   *RateCache
	history RateHistorian
	timeout time.Duration // per provider call
	clock   func() time.Time
}

// NewUpdater wires an updater. Sources are consulted in the given order,
// with providers primary for a pair's domain tried before the rest.
// history may be nil when no audit log is wanted.
func NewUpdater(sources []RateSource, cache *RateCache, history RateHistorian, timeout time.Duration) *Updater {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Updater{
		sources: sources,
		cache:   cache,
		history: history,
		timeout: timeout,
		clock:   time.Now,
	}
}

// Refresh obtains a fresh value for every requested pair it can.
//
// Providers primary for the pair's base-currency domain are consulted
// first; the first success for a pair wins and the remaining providers are
// not asked for it. A provider failure is isolated: it never aborts the
// refresh of other pairs. Every provider call gets one retry and a bounded
// timeout. Cancelling ctx stops the remaining work; values already written
// to the cache stay valid.
func (u *Updater) Refresh(ctx context.Context, pairs []Pair) RefreshReport {
	report := RefreshReport{When: u.clock()}
	remaining := make(map[Pair][]error, len(pairs))
	for _, p := range pairs {
		remaining[p] = nil
	}

	// two passes: domain-primary providers, then everything left
	for _, primaryOnly := range []bool{true, false} {
		for _, src := range u.sources {
			if ctx.Err() != nil {
				break
			}
			batch := u.batchFor(src, remaining, primaryOnly)
			if len(batch) == 0 {
				continue
			}
			fetched, err := u.fetch(ctx, src, batch)
			if err != nil {
				log.Warn().Str("provider", src.Name()).Err(err).Msg("provider failed")
				for _, p := range batch {
					remaining[p] = append(remaining[p], &ApiRequestError{Provider: src.Name(), Reason: err.Error(), Err: err})
				}
				continue
			}
			for _, p := range batch {
				rate, ok := fetched[p]
				if !ok || !rate.IsPositive() {
					continue
				}
				entry := RateEntry{Pair: p, Rate: rate, ObservedAt: u.clock(), Source: src.Name()}
				u.cache.Put(entry)
				if u.history != nil {
					if err := u.history.AppendRateHistory(entry); err != nil {
						log.Warn().Stringer("pair", p).Err(err).Msg("rate history append failed")
					}
				}
				report.Results = append(report.Results, PairResult{Pair: p, Resolved: true, Source: src.Name()})
				delete(remaining, p)
			}
		}
	}

	for p, errs := range remaining {
		err := errors.Join(errs...)
		if err == nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			} else {
				err = fmt.Errorf("no provider covers pair %s", p)
			}
		}
		report.Results = append(report.Results, PairResult{Pair: p, Err: err})
	}
	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].Pair.String() < report.Results[j].Pair.String()
	})
	return report
}

// batchFor selects the still-unresolved pairs this source should be asked
// for in the current pass.
func (u *Updater) batchFor(src RateSource, remaining map[Pair][]error, primaryOnly bool) []Pair {
	var batch []Pair
	for p := range remaining {
		base, err := GetCurrency(p.Base)
		if err != nil {
			continue
		}
		if primaryOnly != (base.Kind == src.Kind()) {
			continue
		}
		batch = append(batch, p)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].String() < batch[j].String() })
	return batch
}

// fetch runs one provider call with a single retry and a bounded timeout.
func (u *Updater) fetch(ctx context.Context, src RateSource, pairs []Pair) (got map[Pair]decimal.Decimal, err error) {
	r := retrier.New(retrier.ConstantBackoff(1, 0), nil)
	err = r.RunCtx(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, u.timeout)
		defer cancel()
		fetched, ferr := src.Fetch(callCtx, pairs)
		if ferr != nil {
			return ferr
		}
		got = fetched
		return nil
	})
	return got, err
}
