package valutatrade

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Wallet holds the balance of one currency inside a portfolio.
// The balance never goes negative; the Ledger checks before it debits and
// the wallet checks again when asked.
type Wallet struct {
	Currency string
	Balance  Money
}

// Deposit credits a positive amount in the wallet's currency.
func (w *Wallet) Deposit(m Money) error {
	if !m.IsPositive() {
		return ErrInvalidAmount
	}
	w.Balance = w.Balance.Add(M(m.Amount(), w.Currency))
	return nil
}

// Withdraw debits a positive amount, rejecting overdrafts.
func (w *Wallet) Withdraw(m Money) error {
	if !m.IsPositive() {
		return ErrInvalidAmount
	}
	if w.Balance.LessThan(M(m.Amount(), w.Currency)) {
		return &InsufficientFundsError{
			Code:      w.Currency,
			Available: w.Balance.Amount(),
			Required:  m.Amount(),
		}
	}
	w.Balance = w.Balance.Sub(M(m.Amount(), w.Currency))
	return nil
}

// Portfolio is the set of wallets of one user, keyed by currency code.
// It is owned exclusively by the Ledger and never shared across users.
type Portfolio struct {
	UserID  int64
	Wallets map[string]*Wallet
}

func NewPortfolio(userID int64) *Portfolio {
	return &Portfolio{UserID: userID, Wallets: make(map[string]*Wallet)}
}

// Wallet returns the wallet for a code, or nil when absent.
func (p *Portfolio) Wallet(code string) *Wallet {
	return p.Wallets[code]
}

// EnsureWallet returns the wallet for a registered currency, creating an
// empty one when absent.
func (p *Portfolio) EnsureWallet(code string) (*Wallet, error) {
	c, err := GetCurrency(code)
	if err != nil {
		return nil, err
	}
	if w, ok := p.Wallets[c.Code]; ok {
		return w, nil
	}
	w := &Wallet{Currency: c.Code, Balance: M(0, c.Code)}
	p.Wallets[c.Code] = w
	return w, nil
}

// Balance returns the balance for a code, zero when no wallet exists.
func (p *Portfolio) Balance(code string) Money {
	if w, ok := p.Wallets[code]; ok {
		return w.Balance
	}
	return M(0, code)
}

// Codes lists the portfolio's currency codes in stable order.
func (p *Portfolio) Codes() []string {
	codes := make([]string, 0, len(p.Wallets))
	for code := range p.Wallets {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (p *Portfolio) MarshalJSON() ([]byte, error) {
	balances := make(map[string]decimal.Decimal, len(p.Wallets))
	for code, w := range p.Wallets {
		balances[code] = w.Balance.Amount()
	}
	var w jsonObjectWriter
	w.Append("user_id", p.UserID)
	w.Append("wallets", balances)
	return w.MarshalJSON()
}

func (p *Portfolio) UnmarshalJSON(data []byte) error {
	var doc struct {
		UserID  int64                      `json:"user_id"`
		Wallets map[string]decimal.Decimal `json:"wallets"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	p.UserID = doc.UserID
	p.Wallets = make(map[string]*Wallet, len(doc.Wallets))
	for code, balance := range doc.Wallets {
		p.Wallets[code] = &Wallet{Currency: code, Balance: M(balance, code)}
	}
	return nil
}
