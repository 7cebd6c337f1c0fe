// internal/domain/ledger/store.go
package ledger

import (
	"context"
	"time"

	"cargolink-service/internal/domain/earnings"
)

// CompletePaymentParams drives the single idempotent "complete order payment"
// operation shared by the callback, poll, and webhook paths.
type CompletePaymentParams struct {
	OrderID    int64
	Reference  string
	AmountPaid int64 // gateway-confirmed gross, kobo
	Fees       int64 // gateway fees, kobo
	PaidAt     time.Time
	Channel    string
}

// PaymentCompletion reports the outcome of CompleteClientPayment.
// AlreadyCompleted means another caller won the race; treat as success and
// do not credit or notify again.
type PaymentCompletion struct {
	AlreadyCompleted bool
	Transaction      *FinancialTransaction
	// References of the liability transactions pre-created for revenue
	// distribution (driver unknown at this point).
	DriverEarningTransactionID   string
	PlatformRevenueTransactionID string
}

// LockFundsParams describes a payout request at the moment funds are locked.
type LockFundsParams struct {
	DriverID        int64
	TransactionID   string
	Reference       string
	RequestedAmount int64
	TransferFee     int64
	NetAmount       int64
	Bank            BankDetails
	RecipientCode   string
	TransferCode    string
}

// TransferSettlement reports the outcome of a payout settlement, from either
// the webhook or the reconciliation sweep.
type TransferSettlement struct {
	AlreadySettled bool
	Transaction    *FinancialTransaction
	DriverID       int64
	Amount         int64 // requested amount, kobo
}

// DistributeParams carries the revenue split for a delivered order.
type DistributeParams struct {
	OrderID                      int64
	DriverID                     int64
	DriverEarningTransactionID   string
	PlatformRevenueTransactionID string
	DriverShare                  int64
	PlatformShare                int64
	DeliveredAt                  time.Time
}

// Distribution reports the outcome of revenue distribution.
type Distribution struct {
	AlreadyDistributed bool
	DriverShare        int64
	PlatformShare      int64
}

// DepositCompletion reports the outcome of a wallet deposit settlement.
type DepositCompletion struct {
	AlreadyCompleted bool
	Transaction      *FinancialTransaction
	NewBalance       int64
}

// Store owns every money-affecting mutation. Implementations must express
// each terminal transition as a conditional update keyed on the record's
// current status; a zero-row match means another writer already settled it
// and the caller must treat the call as a success no-op.
type Store interface {
	CreateTransaction(ctx context.Context, txn *FinancialTransaction) error
	TransactionByReference(ctx context.Context, reference string) (*FinancialTransaction, error)
	TransactionByID(ctx context.Context, id string) (*FinancialTransaction, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)

	// CompleteClientPayment atomically flips the payment transaction to
	// completed, marks the order paid and submitted, updates the client
	// wallet lifetime stats, creates the two pending liability transactions
	// for later revenue distribution, and appends tracking history.
	CompleteClientPayment(ctx context.Context, p CompletePaymentParams) (*PaymentCompletion, error)

	// FailClientPayment conditionally marks a pending/processing payment
	// failed. A reference already completed stays completed: a late
	// charge.failed webhook must never shadow a success.
	FailClientPayment(ctx context.Context, reference, reason string) (bool, error)

	// LockPayoutFunds decrements availableBalance and records the pending
	// transfer in one step. The transaction row for the payout must already
	// exist. Returns ErrInsufficientBalance when the guarded decrement
	// matches no row.
	LockPayoutFunds(ctx context.Context, p LockFundsParams) error

	// SettleTransferSuccess resolves a pending payout as completed:
	// transaction → completed, pending transfer → completed, withdrawn and
	// lifetime totals incremented. availableBalance is untouched (it was
	// debited at request time).
	SettleTransferSuccess(ctx context.Context, reference string) (*TransferSettlement, error)

	// SettleTransferFailure resolves a pending payout as failed or reversed
	// and restores the locked amount to availableBalance.
	SettleTransferFailure(ctx context.Context, reference string, toStatus TransactionStatus, reason string) (*TransferSettlement, error)

	// DistributeOrderRevenue backfills the driver onto the pre-created
	// earning transaction, flips both liability transactions to completed,
	// and credits DriverEarnings. Idempotent on re-fire.
	DistributeOrderRevenue(ctx context.Context, p DistributeParams) (*Distribution, error)

	// CompleteWalletDeposit atomically flips a wallet_deposit transaction to
	// completed and credits the client wallet.
	CompleteWalletDeposit(ctx context.Context, reference string, fees int64, paidAt time.Time) (*DepositCompletion, error)

	// PendingTransfers lists in-flight payouts for the reconciliation sweep.
	PendingTransfers(ctx context.Context, driverID int64) ([]earnings.PendingTransfer, error)
	// StalePendingTransfers lists pending transfers older than cutoff or
	// flagged for manual check, across all drivers.
	StalePendingTransfers(ctx context.Context, cutoff time.Time) ([]earnings.PendingTransfer, error)

	// RecentTransactions serves the bounded wallet history view (last 50).
	RecentTransactions(ctx context.Context, clientID int64, limit int) ([]FinancialTransaction, error)
}
