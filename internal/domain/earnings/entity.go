// internal/domain/earnings/entity.go
package earnings

import (
	"context"
	"time"
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
)

// DriverEarnings tracks a driver's withdrawable money. AvailableBalance is
// the authoritative answer to "can a payout be requested"; it is debited the
// moment a payout is requested, not when it settles. The pending/available/
// withdrawn triple is a reporting view reconciled by the sweep job.
type DriverEarnings struct {
	ID               int64 `json:"id" db:"id"`
	DriverID         int64 `json:"driver_id" db:"driver_id"`
	AvailableBalance int64 `json:"available_balance" db:"available_balance"` // kobo

	// Reporting view
	EarningsPending   int64 `json:"earnings_pending" db:"earnings_pending"`
	EarningsAvailable int64 `json:"earnings_available" db:"earnings_available"`
	EarningsWithdrawn int64 `json:"earnings_withdrawn" db:"earnings_withdrawn"`

	// Lifetime stats
	TotalEarned        int64      `json:"total_earned" db:"total_earned"`
	TotalWithdrawn     int64      `json:"total_withdrawn" db:"total_withdrawn"`
	DeliveryCount      int64      `json:"delivery_count" db:"delivery_count"`
	AveragePerDelivery int64      `json:"average_per_delivery" db:"average_per_delivery"`
	LastWithdrawalAt   *time.Time `json:"last_withdrawal_at,omitempty" db:"last_withdrawal_at"`

	// Payout PIN (bcrypt hash); nil until the driver sets one.
	PayoutPINHash     *string    `json:"-" db:"payout_pin_hash"`
	PINFailedAttempts int        `json:"-" db:"pin_failed_attempts"`
	PINLockedUntil    *time.Time `json:"-" db:"pin_locked_until"`

	Currency  string    `json:"currency" db:"currency"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PendingTransfer is one in-flight payout. BalanceBefore/After snapshot the
// available balance around the lock for audit.
type PendingTransfer struct {
	ID                  int64          `json:"id" db:"id"`
	DriverID            int64          `json:"driver_id" db:"driver_id"`
	TransactionID       string         `json:"transaction_id" db:"transaction_id"`
	Reference           string         `json:"reference" db:"reference"`
	Amount              int64          `json:"amount" db:"amount"` // requested, kobo
	TransferFee         int64          `json:"transfer_fee" db:"transfer_fee"`
	NetAmount           int64          `json:"net_amount" db:"net_amount"`
	Status              TransferStatus `json:"status" db:"status"`
	BalanceBefore       int64          `json:"balance_before" db:"balance_before"`
	BalanceAfter        int64          `json:"balance_after" db:"balance_after"`
	RecipientCode       string         `json:"recipient_code" db:"recipient_code"`
	TransferCode        string         `json:"transfer_code" db:"transfer_code"`
	BankSnapshot        string         `json:"bank_snapshot" db:"bank_snapshot"` // JSON
	RequiresManualCheck bool           `json:"requires_manual_check" db:"requires_manual_check"`
	FailureReason       *string        `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
	SettledAt           *time.Time     `json:"settled_at,omitempty" db:"settled_at"`
}

// EarningEntry is one date-bucketed row of the driver's earnings ledger,
// appended at revenue distribution time.
type EarningEntry struct {
	ID            int64     `json:"id" db:"id"`
	DriverID      int64     `json:"driver_id" db:"driver_id"`
	OrderID       int64     `json:"order_id" db:"order_id"`
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	Amount        int64     `json:"amount" db:"amount"`
	EarnedOn      time.Time `json:"earned_on" db:"earned_on"` // date bucket
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Summary is the earnings read model returned to drivers.
type Summary struct {
	AvailableBalance   int64      `json:"available_balance"`
	BalanceDisplay     string     `json:"balance_display"`
	Pending            int64      `json:"pending"`
	Withdrawn          int64      `json:"withdrawn"`
	TotalEarned        int64      `json:"total_earned"`
	TotalWithdrawn     int64      `json:"total_withdrawn"`
	DeliveryCount      int64      `json:"delivery_count"`
	AveragePerDelivery int64      `json:"average_per_delivery"`
	LastWithdrawalAt   *time.Time `json:"last_withdrawal_at,omitempty"`
	Currency           string     `json:"currency"`
}

// Repository covers earnings reads plus the PIN credential, which is not a
// money-affecting field. Balance mutations live on ledger.Store.
type Repository interface {
	FindByDriverID(ctx context.Context, driverID int64) (*DriverEarnings, error)
	SetPayoutPIN(ctx context.Context, driverID int64, pinHash string) error
	RecordPINFailure(ctx context.Context, driverID int64, lockedUntil *time.Time) error
	ResetPINFailures(ctx context.Context, driverID int64) error
	RecentEntries(ctx context.Context, driverID int64, limit int) ([]EarningEntry, error)
}
