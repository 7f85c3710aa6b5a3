package valutatrade

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the file-backed persistence gateway. Each collection lives in
// one document under the data directory:
//
//	rates.json           latest rate per pair + refresh metadata
//	portfolios.json      one portfolio document per user id
//	transactions.jsonl   append-only trade log
//	exchange_rates.jsonl append-only rate observation history
//
// Documents are written atomically (temp file + rename). The lock file
// gives two concurrent invocations against the same data directory an
// exclusive critical section.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create data directory %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) ratesPath() string        { return filepath.Join(s.dir, "rates.json") }
func (s *Store) portfoliosPath() string   { return filepath.Join(s.dir, "portfolios.json") }
func (s *Store) transactionsPath() string { return filepath.Join(s.dir, "transactions.jsonl") }
func (s *Store) rateHistoryPath() string  { return filepath.Join(s.dir, "exchange_rates.jsonl") }
func (s *Store) lockPath() string         { return filepath.Join(s.dir, ".lock") }

// Lock acquires the cross-process lock, blocking up to lockTimeout.
// The returned release function must be called once.
func (s *Store) Lock() (release func(), err error) {
	const lockTimeout = 5 * time.Second
	deadline := time.Now().Add(lockTimeout)
	for {
		f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(s.lockPath()) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("could not acquire data lock: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("data directory %q is locked by another process", s.dir)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// writeDocument writes data to path atomically.
func (s *Store) writeDocument(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("could not write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("could not replace %q: %w", path, err)
	}
	return nil
}

// ratesDoc is the persisted shape of the latest-rates collection.
type ratesDoc struct {
	Pairs       map[string]rateRecord `json:"pairs"`
	LastRefresh string                `json:"lastRefresh,omitempty"`
	Source      string                `json:"source,omitempty"`
}

type rateRecord struct {
	Value      decimal.Decimal `json:"value"`
	ObservedAt string          `json:"observedAt"`
	Source     string          `json:"source"`
}

// SaveRates persists the latest entry per pair and the refresh instant.
func (s *Store) SaveRates(entries []RateEntry, lastRefresh time.Time) error {
	doc := ratesDoc{Pairs: make(map[string]rateRecord, len(entries)), Source: "updater"}
	if !lastRefresh.IsZero() {
		doc.LastRefresh = lastRefresh.UTC().Format(time.RFC3339)
	}
	for _, e := range entries {
		doc.Pairs[e.Pair.String()] = rateRecord{
			Value:      e.Rate,
			ObservedAt: e.ObservedAt.UTC().Format(time.RFC3339),
			Source:     e.Source,
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return s.writeDocument(s.ratesPath(), data)
}

// LoadRates reads the latest-rates document. A missing file yields an
// empty result, not an error.
func (s *Store) LoadRates() ([]RateEntry, time.Time, error) {
	data, err := os.ReadFile(s.ratesPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("could not read rates document: %w", err)
	}
	var doc ratesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, time.Time{}, fmt.Errorf("could not decode rates document: %w", err)
	}
	var entries []RateEntry
	for key, rec := range doc.Pairs {
		pair, err := ParsePair(key)
		if err != nil {
			// entries for currencies no longer registered are skipped
			continue
		}
		observed, err := time.Parse(time.RFC3339, rec.ObservedAt)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("invalid observedAt for pair %s: %w", key, err)
		}
		entries = append(entries, RateEntry{Pair: pair, Rate: rec.Value, ObservedAt: observed, Source: rec.Source})
	}
	var last time.Time
	if doc.LastRefresh != "" {
		if last, err = time.Parse(time.RFC3339, doc.LastRefresh); err != nil {
			return nil, time.Time{}, fmt.Errorf("invalid lastRefresh: %w", err)
		}
	}
	return entries, last, nil
}

// LoadPortfolios reads every portfolio document, keyed by user id.
func (s *Store) LoadPortfolios() (map[int64]*Portfolio, error) {
	data, err := os.ReadFile(s.portfoliosPath())
	if errors.Is(err, fs.ErrNotExist) {
		return map[int64]*Portfolio{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read portfolios document: %w", err)
	}
	var docs map[string]*Portfolio
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("could not decode portfolios document: %w", err)
	}
	out := make(map[int64]*Portfolio, len(docs))
	for _, p := range docs {
		out[p.UserID] = p
	}
	return out, nil
}

// LoadPortfolio returns one user's portfolio, or nil when none exists.
func (s *Store) LoadPortfolio(userID int64) (*Portfolio, error) {
	all, err := s.LoadPortfolios()
	if err != nil {
		return nil, err
	}
	return all[userID], nil
}

// SavePortfolio writes one portfolio back into the whole-collection
// document.
func (s *Store) SavePortfolio(p *Portfolio) error {
	all, err := s.LoadPortfolios()
	if err != nil {
		return err
	}
	all[p.UserID] = p
	docs := make(map[string]*Portfolio, len(all))
	for id, portfolio := range all {
		docs[fmt.Sprint(id)] = portfolio
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	return s.writeDocument(s.portfoliosPath(), data)
}

// AppendTransaction appends one record to the trade log.
func (s *Store) AppendTransaction(tx Transaction) error {
	f, err := os.OpenFile(s.transactionsPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("could not open transaction log: %w", err)
	}
	defer f.Close()
	return EncodeTransaction(f, tx)
}

// LoadTransactions reads the whole trade log in append order.
func (s *Store) LoadTransactions() ([]Transaction, error) {
	f, err := os.Open(s.transactionsPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not open transaction log: %w", err)
	}
	defer f.Close()
	return DecodeTransactions(f)
}

// AppendRateHistory appends one observation to the audit history.
// It implements RateHistorian.
func (s *Store) AppendRateHistory(e RateEntry) error {
	f, err := os.OpenFile(s.rateHistoryPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("could not open rate history: %w", err)
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		return err
	}
	_, err = f.Write([]byte("\n"))
	return err
}
