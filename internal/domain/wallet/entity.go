// internal/domain/wallet/entity.go
package wallet

import (
	"context"
	"time"
)

// ClientWallet holds a client's spendable balance. Balance is a derived
// cache over completed wallet transactions; it only moves inside the ledger
// store's atomic operations and must never go negative.
type ClientWallet struct {
	ID       int64 `json:"id" db:"id"`
	ClientID int64 `json:"client_id" db:"client_id"`
	Balance  int64 `json:"balance" db:"balance"` // kobo

	// Lifetime stats
	TotalDeposited   int64      `json:"total_deposited" db:"total_deposited"`
	TotalSpent       int64      `json:"total_spent" db:"total_spent"`
	TotalRefunded    int64      `json:"total_refunded" db:"total_refunded"`
	TransactionCount int64      `json:"transaction_count" db:"transaction_count"`
	FirstDepositAt   *time.Time `json:"first_deposit_at,omitempty" db:"first_deposit_at"`
	LastActivityAt   *time.Time `json:"last_activity_at,omitempty" db:"last_activity_at"`

	Currency  string    `json:"currency" db:"currency"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Summary is the wallet read model returned to clients.
type Summary struct {
	Balance          int64      `json:"balance"`
	BalanceDisplay   string     `json:"balance_display"`
	Currency         string     `json:"currency"`
	TotalDeposited   int64      `json:"total_deposited"`
	TotalSpent       int64      `json:"total_spent"`
	TotalRefunded    int64      `json:"total_refunded"`
	TransactionCount int64      `json:"transaction_count"`
	LastActivityAt   *time.Time `json:"last_activity_at,omitempty"`
}

// Repository covers wallet reads. Mutations live on ledger.Store so a
// balance can never move without its authoritative transaction.
type Repository interface {
	FindByClientID(ctx context.Context, clientID int64) (*ClientWallet, error)
}
