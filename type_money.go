package valutatrade

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money represents an amount of a specific currency.
type Money struct {
	value decimal.Decimal // as major unit value
	cur   string
}

func M[T float32 | float64 | int | int32 | int64 | decimal.Decimal](value T, currency string) Money {
	return Money{value: newDecimal(value), cur: currency}
}

// precision returns the decimal places for the money's currency.
// Registered currencies are authoritative; for anything else fall back to
// the go-money currency table.
func (m Money) precision() int32 {
	if c, err := GetCurrency(m.cur); err == nil {
		return c.Precision
	}
	return int32(money.New(0, m.cur).Currency().Fraction)
}

// String returns the string representation of the money value.
// Fiat amounts use the currency's conventional formatting, crypto amounts
// are printed as plain decimals with their code.
func (m Money) String() string {
	if c, err := GetCurrency(m.cur); err == nil && c.Kind == Crypto {
		return m.value.StringFixed(c.Precision) + " " + m.cur
	}
	cur := money.New(0, m.cur).Currency()
	dec := m.value.Shift(int32(cur.Fraction))
	return cur.Formatter().Format(dec.IntPart())
}

func (m Money) Currency() string                { return m.cur }
func (m Money) Amount() decimal.Decimal         { return m.value }
func (m Money) Equal(n Money) bool              { return m.value.Equal(n.value) && m.cur == n.cur }
func (m Money) IsZero() bool                    { return m.value.IsZero() }
func (m Money) IsPositive() bool                { return m.value.IsPositive() }
func (m Money) IsNegative() bool                { return m.value.IsNegative() }
func (m Money) LessThan(n Money) bool           { return m.value.LessThan(n.value) }
func (m Money) GreaterThan(n Money) bool        { return m.value.GreaterThan(n.value) }
func (m Money) GreaterThanOrEqual(n Money) bool { return m.value.GreaterThanOrEqual(n.value) }
func (m Money) Mul(q Quantity) Money            { return Money{value: m.value.Mul(q.value), cur: m.cur} }

// binary operators.
func (m Money) Add(n Money) Money { return Money{value: m.value.Add(n.value), cur: cur(m, n)} }
func (m Money) Sub(n Money) Money { return Money{value: m.value.Sub(n.value), cur: cur(m, n)} }

// makes the "" currency totally weak.
func cur(a, b Money) string {
	if a.cur == "" {
		return b.cur
	}
	if b.cur == "" {
		return a.cur
	}
	if a.cur != b.cur {
		panic("currency mismatch " + a.cur + "!=" + b.cur)
	}
	return a.cur
}

// RoundDebit rounds up to the currency's precision. Amounts leaving a
// wallet always round against the account holder so that a buy/sell round
// trip can never manufacture value out of rounding error.
func (m Money) RoundDebit() Money {
	return Money{value: m.value.RoundCeil(m.precision()), cur: m.cur}
}

// RoundCredit rounds down to the currency's precision, the counterpart of
// RoundDebit for amounts entering a wallet.
func (m Money) RoundCredit() Money {
	return Money{value: m.value.RoundFloor(m.precision()), cur: m.cur}
}

// RoundBank rounds half-even to the currency's precision. Used for the
// neutral valuation step before the debit/credit rounding is applied.
func (m Money) RoundBank() Money {
	return Money{value: m.value.RoundBank(m.precision()), cur: m.cur}
}

func (m Money) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Optional("currency", m.cur)
	w.Append("amount", m.value.Round(m.precision()))
	return w.MarshalJSON()
}
