package valutatrade

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// TradeKind identifies the direction of a trade.
type TradeKind string

const (
	KindBuy  TradeKind = "BUY"
	KindSell TradeKind = "SELL"
)

// Transaction is the append-only record of one completed trade. Records
// are never mutated or deleted once written.
type Transaction struct {
	ID               int64
	UserID           int64
	Kind             TradeKind
	Currency         string          // traded currency code
	Amount           Quantity        // units of Currency traded
	UnitRate         decimal.Decimal // Currency→base rate used for the trade
	TotalCost        Money           // cost (BUY) or proceeds (SELL) in base currency
	Timestamp        time.Time
	ResultingBalance Quantity // Currency wallet balance after the trade
	StaleRate        bool     // the rate snapshot was older than the TTL
}

// MarshalJSON keeps a stable field order in the persisted record.
func (t Transaction) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("id", t.ID)
	w.Append("user_id", t.UserID)
	w.Append("kind", t.Kind)
	w.Append("currency", t.Currency)
	w.Append("amount", t.Amount)
	w.Append("unit_rate", t.UnitRate)
	w.Append("total_cost", t.TotalCost.Amount())
	w.Append("base_currency", t.TotalCost.Currency())
	w.Append("timestamp", t.Timestamp.UTC().Format(time.RFC3339))
	w.Append("resulting_balance", t.ResultingBalance)
	w.Optional("stale_rate", t.StaleRate)
	return w.MarshalJSON()
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var temp struct {
		ID               int64           `json:"id"`
		UserID           int64           `json:"user_id"`
		Kind             TradeKind       `json:"kind"`
		Currency         string          `json:"currency"`
		Amount           Quantity        `json:"amount"`
		UnitRate         decimal.Decimal `json:"unit_rate"`
		TotalCost        decimal.Decimal `json:"total_cost"`
		BaseCurrency     string          `json:"base_currency"`
		Timestamp        string          `json:"timestamp"`
		ResultingBalance Quantity        `json:"resulting_balance"`
		StaleRate        bool            `json:"stale_rate"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339, temp.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid transaction timestamp %q: %w", temp.Timestamp, err)
	}
	*t = Transaction{
		ID:               temp.ID,
		UserID:           temp.UserID,
		Kind:             temp.Kind,
		Currency:         temp.Currency,
		Amount:           temp.Amount,
		UnitRate:         temp.UnitRate,
		TotalCost:        M(temp.TotalCost, temp.BaseCurrency),
		Timestamp:        ts,
		ResultingBalance: temp.ResultingBalance,
		StaleRate:        temp.StaleRate,
	}
	return nil
}

// EncodeTransaction appends one record as a JSONL line.
func EncodeTransaction(w io.Writer, tx Transaction) error {
	b, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}

// DecodeTransactions reads a stream of JSONL transaction records.
func DecodeTransactions(r io.Reader) ([]Transaction, error) {
	var out []Transaction
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var tx Transaction
		if err := json.Unmarshal(line, &tx); err != nil {
			return nil, fmt.Errorf("could not decode transaction line %q: %w", string(line), err)
		}
		out = append(out, tx)
	}
	return out, scanner.Err()
}

// TransactionLog is the append-only sequence of completed trades, backed
// by the store. Append never fails except on the storage boundary.
type TransactionLog struct {
	store *Store
}

func NewTransactionLog(store *Store) *TransactionLog {
	return &TransactionLog{store: store}
}

// NextID returns the next monotonically assignable transaction id.
func (l *TransactionLog) NextID() (int64, error) {
	txs, err := l.store.LoadTransactions()
	if err != nil {
		return 0, err
	}
	var max int64
	for _, tx := range txs {
		if tx.ID > max {
			max = tx.ID
		}
	}
	return max + 1, nil
}

// Append writes one record to the end of the log.
func (l *TransactionLog) Append(tx Transaction) error {
	return l.store.AppendTransaction(tx)
}

// AllFor returns a user's transactions ordered by timestamp ascending,
// stable by id on equal timestamps.
func (l *TransactionLog) AllFor(userID int64) ([]Transaction, error) {
	txs, err := l.store.LoadTransactions()
	if err != nil {
		return nil, err
	}
	var out []Transaction
	for _, tx := range txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
