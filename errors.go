package valutatrade

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Domain errors are returned as values to the immediate caller and rendered
// once at the command boundary. The command layer maps each family onto a
// distinct exit code.

// InsufficientFundsError reports a rejected debit. The operation that
// produced it has not mutated any state.
type InsufficientFundsError struct {
	Code      string
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s %s, required %s %s",
		e.Available, e.Code, e.Required, e.Code)
}

// CurrencyNotFoundError reports a code absent from the currency registry.
type CurrencyNotFoundError struct {
	Code string
}

func (e *CurrencyNotFoundError) Error() string {
	return fmt.Sprintf("unknown currency %q", e.Code)
}

// ApiRequestError reports a failed external provider call. The updater
// isolates these per provider; it only reaches the caller when every
// provider for a needed pair failed and no usable cached value exists.
type ApiRequestError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ApiRequestError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("external API request failed: %s", e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

func (e *ApiRequestError) Unwrap() error { return e.Err }

// UserNotFoundError reports an unknown user id at the trusted boundary.
type UserNotFoundError struct {
	UserID int64
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user %d not found", e.UserID)
}

// ErrInvalidAmount rejects non-positive trade or transfer amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// Rate cache signals.
var (
	// ErrRateNotFound means no entry ever existed for the pair.
	ErrRateNotFound = errors.New("no rate recorded for pair")
	// ErrStaleRate means an entry exists but its age exceeds the TTL.
	// The stale entry is still returned alongside this error so callers
	// may knowingly fall back to it when a refresh fails.
	ErrStaleRate = errors.New("cached rate is stale")
)
