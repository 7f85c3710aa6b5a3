package valutatrade

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Ledger owns all portfolios and applies trades to them atomically.
//
// A buy or sell takes one exclusive critical section spanning the user's
// portfolio and the shared rate cache: the lock is acquired before the
// balance check and released after persistence. Within that section the
// trade uses a single rate snapshot; the rate is never re-queried
// mid-operation.
type Ledger struct {
	mu      sync.Mutex
	store   *Store
	cache   *RateCache
	updater *Updater
	log     *TransactionLog
	clock   func() time.Time
}

func NewLedger(store *Store, cache *RateCache, updater *Updater) *Ledger {
	return &Ledger{
		store:   store,
		cache:   cache,
		updater: updater,
		log:     NewTransactionLog(store),
		clock:   time.Now,
	}
}

// Log exposes the append-only trade log.
func (l *Ledger) Log() *TransactionLog { return l.log }

// Cache exposes the rate cache for read-only inspection.
func (l *Ledger) Cache() *RateCache { return l.cache }

// Buy purchases amount units of code, paying from the user's base-currency
// wallet at the cached rate. The cost rounds up to the base currency's
// precision; the credited amount rounds down to the target's. The user's
// portfolio is created on first trade.
func (l *Ledger) Buy(ctx context.Context, userID int64, code string, amount Quantity, base string) (Transaction, error) {
	return l.trade(ctx, userID, KindBuy, code, amount, base)
}

// Sell disposes amount units of code, crediting the proceeds to the user's
// base-currency wallet. Selling without a wallet, or more than the wallet
// holds, is rejected with no mutation.
func (l *Ledger) Sell(ctx context.Context, userID int64, code string, amount Quantity, base string) (Transaction, error) {
	return l.trade(ctx, userID, KindSell, code, amount, base)
}

func (l *Ledger) trade(ctx context.Context, userID int64, kind TradeKind, code string, amount Quantity, base string) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	currency, err := GetCurrency(code)
	if err != nil {
		return Transaction{}, err
	}
	baseCur, err := GetCurrency(base)
	if err != nil {
		return Transaction{}, err
	}
	if currency.Code == baseCur.Code {
		return Transaction{}, fmt.Errorf("cannot trade %s against itself", currency.Code)
	}

	release, err := l.store.Lock()
	if err != nil {
		return Transaction{}, err
	}
	defer release()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, stale, refreshedAt, err := l.rateSnapshot(ctx, currency.Code, baseCur.Code)
	if err != nil {
		return Transaction{}, err
	}

	portfolio, err := l.store.LoadPortfolio(userID)
	if err != nil {
		return Transaction{}, err
	}
	if portfolio == nil {
		if kind == KindSell {
			return Transaction{}, &InsufficientFundsError{Code: currency.Code, Available: Q(0).Decimal(), Required: amount.Decimal()}
		}
		portfolio = NewPortfolio(userID)
	}

	price := M(entry.Rate, baseCur.Code)
	gross := price.Mul(amount)

	var total Money
	switch kind {
	case KindBuy:
		cost := gross.RoundDebit()
		credit := amount.In(currency.Code).RoundCredit()
		if !credit.IsPositive() || !cost.IsPositive() {
			return Transaction{}, ErrInvalidAmount
		}
		baseWallet, err := portfolio.EnsureWallet(baseCur.Code)
		if err != nil {
			return Transaction{}, err
		}
		if baseWallet.Balance.LessThan(cost) {
			return Transaction{}, &InsufficientFundsError{Code: baseCur.Code, Available: baseWallet.Balance.Amount(), Required: cost.Amount()}
		}
		target, err := portfolio.EnsureWallet(currency.Code)
		if err != nil {
			return Transaction{}, err
		}
		if err := baseWallet.Withdraw(cost); err != nil {
			return Transaction{}, err
		}
		if err := target.Deposit(credit); err != nil {
			return Transaction{}, err
		}
		total = cost
	case KindSell:
		debit := amount.In(currency.Code).RoundDebit()
		proceeds := gross.RoundCredit()
		if !debit.IsPositive() || !proceeds.IsPositive() {
			return Transaction{}, ErrInvalidAmount
		}
		target := portfolio.Wallet(currency.Code)
		if target == nil || target.Balance.LessThan(debit) {
			return Transaction{}, &InsufficientFundsError{Code: currency.Code, Available: portfolio.Balance(currency.Code).Amount(), Required: debit.Amount()}
		}
		baseWallet, err := portfolio.EnsureWallet(baseCur.Code)
		if err != nil {
			return Transaction{}, err
		}
		if err := target.Withdraw(debit); err != nil {
			return Transaction{}, err
		}
		if err := baseWallet.Deposit(proceeds); err != nil {
			return Transaction{}, err
		}
		total = proceeds
	default:
		return Transaction{}, fmt.Errorf("unsupported trade kind %q", kind)
	}

	id, err := l.log.NextID()
	if err != nil {
		return Transaction{}, err
	}
	tx := Transaction{
		ID:               id,
		UserID:           userID,
		Kind:             kind,
		Currency:         currency.Code,
		Amount:           amount,
		UnitRate:         entry.Rate,
		TotalCost:        total,
		Timestamp:        l.clock(),
		ResultingBalance: Q(portfolio.Balance(currency.Code).Amount()),
		StaleRate:        stale,
	}

	// all mutated aggregates persist inside the critical section
	if err := l.store.SavePortfolio(portfolio); err != nil {
		return Transaction{}, err
	}
	if err := l.log.Append(tx); err != nil {
		return Transaction{}, err
	}
	if !refreshedAt.IsZero() {
		if err := l.store.SaveRates(l.cache.Entries(), refreshedAt); err != nil {
			return Transaction{}, err
		}
	}
	return tx, nil
}

// rateSnapshot resolves one rate for the trade, forcing a refresh of the
// needed legs when the cached view is stale or missing. A stale value is
// still usable when every provider fails; the stale flag surfaces that to
// the caller. refreshedAt is zero when no refresh happened.
func (l *Ledger) rateSnapshot(ctx context.Context, from, to string) (entry RateEntry, stale bool, refreshedAt time.Time, err error) {
	entry, lerr := l.cache.Lookup(from, to, l.clock())
	if lerr == nil {
		return entry, false, time.Time{}, nil
	}
	if !errors.Is(lerr, ErrStaleRate) && !errors.Is(lerr, ErrRateNotFound) {
		return RateEntry{}, false, time.Time{}, lerr
	}

	report := l.updater.Refresh(ctx, refreshPairsFor(from, to))
	entry, lerr = l.cache.Lookup(from, to, l.clock())
	switch {
	case lerr == nil:
		return entry, false, report.When, nil
	case errors.Is(lerr, ErrStaleRate):
		return entry, true, report.When, nil
	default:
		return RateEntry{}, false, time.Time{}, refreshFailure(report, from, to)
	}
}

// refreshPairsFor lists the provider-facing pairs needed to resolve
// from→to: every non-USD side quoted against USD.
func refreshPairsFor(codes ...string) []Pair {
	var pairs []Pair
	seen := make(map[Pair]bool)
	for _, code := range codes {
		if code == "USD" {
			continue
		}
		p := Pair{Base: code, Quote: "USD"}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// refreshFailure converts an unproductive refresh into the error escalated
// to the caller: every provider failed and no usable cached value exists.
func refreshFailure(report RefreshReport, from, to string) error {
	errs := make([]error, 0, len(report.Results))
	for _, pr := range report.Unresolved() {
		errs = append(errs, pr.Err)
	}
	return &ApiRequestError{
		Reason: fmt.Sprintf("no usable rate for %s→%s", from, to),
		Err:    errors.Join(errs...),
	}
}

// BalanceOf returns a user's balance for one currency, zero when no wallet
// exists.
func (l *Ledger) BalanceOf(userID int64, code string) (Money, error) {
	c, err := GetCurrency(code)
	if err != nil {
		return Money{}, err
	}
	portfolio, err := l.store.LoadPortfolio(userID)
	if err != nil {
		return Money{}, err
	}
	if portfolio == nil {
		return M(0, c.Code), nil
	}
	return portfolio.Balance(c.Code), nil
}

// Rate resolves the from→to rate, refreshing stale or missing entries on
// demand. The stale flag reports that every provider failed and the value
// returned is older than the TTL.
func (l *Ledger) Rate(ctx context.Context, from, to string) (RateEntry, bool, error) {
	if _, err := GetCurrency(from); err != nil {
		return RateEntry{}, false, err
	}
	if _, err := GetCurrency(to); err != nil {
		return RateEntry{}, false, err
	}
	release, err := l.store.Lock()
	if err != nil {
		return RateEntry{}, false, err
	}
	defer release()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, stale, refreshedAt, err := l.rateSnapshot(ctx, from, to)
	if err != nil {
		return RateEntry{}, false, err
	}
	if !refreshedAt.IsZero() {
		if err := l.store.SaveRates(l.cache.Entries(), refreshedAt); err != nil {
			return RateEntry{}, false, err
		}
	}
	return entry, stale, nil
}

// UpdateRates refreshes every tracked pair and persists the new view.
func (l *Ledger) UpdateRates(ctx context.Context) (RefreshReport, error) {
	release, err := l.store.Lock()
	if err != nil {
		return RefreshReport{}, err
	}
	defer release()
	l.mu.Lock()
	defer l.mu.Unlock()

	report := l.updater.Refresh(ctx, TrackedPairs())
	if err := l.store.SaveRates(l.cache.Entries(), report.When); err != nil {
		return report, err
	}
	return report, nil
}

// TrackedPairs returns every registered non-USD currency quoted against
// USD, the set providers are polled for.
func TrackedPairs() []Pair {
	var pairs []Pair
	for _, c := range AllCurrencies() {
		if c.Code == "USD" {
			continue
		}
		pairs = append(pairs, Pair{Base: c.Code, Quote: "USD"})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].String() < pairs[j].String() })
	return pairs
}

// WalletValuation is one wallet's balance expressed in the report's base
// currency.
type WalletValuation struct {
	Currency string
	Balance  Money
	Value    Money // zero when no rate path exists
	HasRate  bool
	Stale    bool
}

// PortfolioReport values every wallet of a user in one base currency,
// using the cached view only (no forced refresh).
type PortfolioReport struct {
	UserID  int64
	Base    string
	Wallets []WalletValuation
	Total   Money
}

// Report builds a valuation of the user's portfolio in the base currency.
// It reads the cached rates as they are; missing or stale rates are
// reported per wallet instead of triggering network calls.
func (l *Ledger) Report(userID int64, base string) (PortfolioReport, error) {
	baseCur, err := GetCurrency(base)
	if err != nil {
		return PortfolioReport{}, err
	}
	portfolio, err := l.store.LoadPortfolio(userID)
	if err != nil {
		return PortfolioReport{}, err
	}
	if portfolio == nil {
		return PortfolioReport{}, &UserNotFoundError{UserID: userID}
	}

	now := l.clock()
	report := PortfolioReport{UserID: userID, Base: baseCur.Code, Total: M(0, baseCur.Code)}
	for _, code := range portfolio.Codes() {
		w := portfolio.Wallet(code)
		v := WalletValuation{Currency: code, Balance: w.Balance}
		if code == baseCur.Code {
			v.Value = w.Balance
			v.HasRate = true
		} else if entry, err := l.cache.Lookup(code, baseCur.Code, now); err == nil || errors.Is(err, ErrStaleRate) {
			v.Value = M(entry.Rate, baseCur.Code).Mul(Q(w.Balance.Amount())).RoundBank()
			v.HasRate = true
			v.Stale = errors.Is(err, ErrStaleRate)
		}
		report.Total = report.Total.Add(v.Value)
		report.Wallets = append(report.Wallets, v)
	}
	return report, nil
}
