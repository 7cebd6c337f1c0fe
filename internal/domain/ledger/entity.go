// internal/domain/ledger/entity.go
package ledger

import (
	"time"

	"cargolink-service/internal/domain/earnings"
)

type TransactionType string

const (
	TypeClientPayment   TransactionType = "client_payment"
	TypeWalletDeposit   TransactionType = "wallet_deposit"
	TypeWalletDeduction TransactionType = "wallet_deduction"
	TypeDriverEarning   TransactionType = "driver_earning"
	TypeDriverPayout    TransactionType = "driver_payout"
	TypeRefund          TransactionType = "refund"
	TypePlatformRevenue TransactionType = "platform_revenue"
)

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
	StatusReversed   TransactionStatus = "reversed"
	StatusCancelled  TransactionStatus = "cancelled"
)

// IsTerminal reports whether a status can no longer move forward.
// completed/failed/reversed/cancelled transactions must never be rewritten.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusReversed, StatusCancelled:
		return true
	}
	return false
}

// Amount carries a money value in minor units (kobo). The invariant
// Net + Fees == Gross must hold for every completed transaction.
type Amount struct {
	Gross    int64  `json:"gross" db:"amount_gross"`
	Fees     int64  `json:"fees" db:"amount_fees"`
	Net      int64  `json:"net" db:"amount_net"`
	Currency string `json:"currency" db:"currency"`
}

// GatewayInfo identifies the external money movement. Reference doubles as
// the idempotency key shared with the gateway.
type GatewayInfo struct {
	Provider  string                 `json:"provider" db:"gateway_provider"`
	Reference string                 `json:"reference" db:"gateway_reference"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"gateway_metadata"`
}

// BankDetails is the snapshot of the destination account taken at payout
// request time. The struct is defined in the earnings package to avoid an
// import cycle; the alias keeps ledger.BankDetails as the canonical name.
type BankDetails = earnings.BankDetails

// PayoutDetails is populated only for driver_payout transactions.
type PayoutDetails struct {
	RequestedAmount int64       `json:"requested_amount"`
	TransferFee     int64       `json:"transfer_fee"`
	NetAmount       int64       `json:"net_amount"`
	Bank            BankDetails `json:"bank"`
	RecipientCode   string      `json:"recipient_code,omitempty"`
	TransferCode    string      `json:"transfer_code,omitempty"`
	TransferStatus  string      `json:"transfer_status,omitempty"`
}

// FinancialTransaction is one row of the append-mostly money event log. It is
// the source of truth; wallet and earnings balances are derived caches that
// only move in the same atomic step as a status flip here.
type FinancialTransaction struct {
	ID     string            `json:"id" db:"id"` // ULID
	Type   TransactionType   `json:"transaction_type" db:"transaction_type"`
	Status TransactionStatus `json:"status" db:"status"`

	ClientID *int64 `json:"client_id,omitempty" db:"client_id"`
	DriverID *int64 `json:"driver_id,omitempty" db:"driver_id"`
	OrderID  *int64 `json:"order_id,omitempty" db:"order_id"`

	Amount  Amount         `json:"amount"`
	Gateway GatewayInfo    `json:"gateway"`
	Payout  *PayoutDetails `json:"payout,omitempty" db:"payout"`

	Description   string  `json:"description,omitempty" db:"description"`
	FailureReason *string `json:"failure_reason,omitempty" db:"failure_reason"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}
