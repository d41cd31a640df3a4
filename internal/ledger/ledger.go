// Package ledger talks to the external key-value store holding prepaid
// account balances.
//
// DESIGN: One balance per account, keyed "rn_<account>". Balances are stored
// as integer micro-units (currency x 1e6) so repeated atomic decrements never
// accumulate floating-point drift; conversion back to currency happens only
// at the read boundary. Write-side conversion rounds up, so fractional
// micro-unit charges always debit at least one micro-unit.
package ledger

import (
	"context"
	"errors"
	"math"
)

// keyPrefix namespaces billing accounts inside the shared store.
const keyPrefix = "rn_"

// microPerUnit is the fixed-point scale for stored balances.
const microPerUnit = 1_000_000

// ErrNotFound reports that no balance exists for the account.
var ErrNotFound = errors.New("ledger: account not found")

// Client is the ledger capability the billing engine consumes.
type Client interface {
	// Decrement atomically subtracts amount (currency units) from the
	// account and returns the new balance. Negative amounts credit.
	Decrement(ctx context.Context, account string, amount float64) (float64, error)
	// Balance reads the current balance in currency units.
	// Returns ErrNotFound when the account has no balance key.
	Balance(ctx context.Context, account string) (float64, error)
	// Close releases the underlying connection pool.
	Close() error
}

// Key returns the store key for an account.
func Key(account string) string {
	return keyPrefix + account
}

// ToMicroUnits converts a currency amount to stored micro-units, rounding up.
func ToMicroUnits(amount float64) int64 {
	return int64(math.Ceil(amount * microPerUnit))
}

// FromMicroUnits converts stored micro-units back to a currency amount.
func FromMicroUnits(micro int64) float64 {
	return float64(micro) / microPerUnit
}
