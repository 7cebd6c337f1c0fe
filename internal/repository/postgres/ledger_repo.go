// internal/repository/postgres/ledger_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cargolink-service/internal/domain/earnings"
	"cargolink-service/internal/domain/ledger"
	xerrors "cargolink-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

const txnColumns = `
	id, transaction_type, status, client_id, driver_id, order_id,
	amount_gross, amount_fees, amount_net, currency,
	gateway_provider, gateway_reference, gateway_metadata, payout,
	description, failure_reason, created_at, updated_at, completed_at
`

// LedgerRepository implements ledger.Store on Postgres. Every terminal
// transition is a guarded UPDATE keyed on the row's current status; a
// zero-row match means another writer settled the record first.
type LedgerRepository struct {
	db       *pgxpool.Pool
	provider string
	currency string
}

func NewLedgerRepository(db *pgxpool.Pool, provider, currency string) *LedgerRepository {
	return &LedgerRepository{db: db, provider: provider, currency: currency}
}

func (r *LedgerRepository) CreateTransaction(ctx context.Context, txn *ledger.FinancialTransaction) error {
	if txn.ID == "" {
		txn.ID = ulid.Make().String()
	}
	now := time.Now()
	txn.CreatedAt = now
	txn.UpdatedAt = now

	metadataJSON, err := marshalJSONField(txn.Gateway.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway metadata: %w", err)
	}
	payoutJSON, err := marshalJSONField(txn.Payout)
	if err != nil {
		return fmt.Errorf("failed to marshal payout details: %w", err)
	}

	query := `
		INSERT INTO financial_transactions (
			id, transaction_type, status, client_id, driver_id, order_id,
			amount_gross, amount_fees, amount_net, currency,
			gateway_provider, gateway_reference, gateway_metadata, payout,
			description, failure_reason, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`
	_, err = r.db.Exec(ctx, query,
		txn.ID, txn.Type, txn.Status, txn.ClientID, txn.DriverID, txn.OrderID,
		txn.Amount.Gross, txn.Amount.Fees, txn.Amount.Net, txn.Amount.Currency,
		txn.Gateway.Provider, txn.Gateway.Reference, metadataJSON, payoutJSON,
		txn.Description, txn.FailureReason, txn.CreatedAt, txn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create financial transaction: %w", err)
	}
	return nil
}

func (r *LedgerRepository) TransactionByReference(ctx context.Context, reference string) (*ledger.FinancialTransaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM financial_transactions WHERE gateway_reference = $1`, txnColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, reference))
}

func (r *LedgerRepository) TransactionByID(ctx context.Context, id string) (*ledger.FinancialTransaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM financial_transactions WHERE id = $1`, txnColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *LedgerRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM financial_transactions WHERE gateway_reference = $1)`,
		reference,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check reference existence: %w", err)
	}
	return exists, nil
}

// CompleteClientPayment is atomic call site (a): transaction → completed,
// order → paid/submitted, wallet lifetime stats, liability transactions for
// revenue distribution, tracking history. All inside one DB transaction so a
// competing settlement path observes either all of it or none of it.
func (r *LedgerRepository) CompleteClientPayment(ctx context.Context, p ledger.CompletePaymentParams) (*ledger.PaymentCompletion, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Conditional completion. A charge the gateway confirms as paid may
	// complete from failed too: a premature charge.failed webhook must not
	// make confirmed money vanish.
	net := p.AmountPaid - p.Fees
	row := tx.QueryRow(ctx, `
		UPDATE financial_transactions
		SET status = 'completed', amount_gross = $2, amount_fees = $3, amount_net = $4,
		    failure_reason = NULL, completed_at = $5, updated_at = NOW()
		WHERE gateway_reference = $1 AND status IN ('pending', 'processing', 'failed')
		RETURNING id, client_id
	`, p.Reference, p.AmountPaid, p.Fees, net, p.PaidAt)

	var txnID string
	var clientID *int64
	if err := row.Scan(&txnID, &clientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.resolveCompletionMiss(ctx, p.Reference)
		}
		return nil, fmt.Errorf("failed to complete payment transaction: %w", err)
	}

	// Revenue split comes from the order's pricing contract.
	var driverShare, platformShare int64
	var orderClientID int64
	err = tx.QueryRow(ctx, `
		SELECT client_id, driver_share, platform_share FROM orders WHERE id = $1 FOR UPDATE
	`, p.OrderID).Scan(&orderClientID, &driverShare, &platformShare)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", p.OrderID, xerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load order pricing: %w", err)
	}

	// Pre-create the liability transactions. The driver is unknown until
	// assignment, so driver_id stays NULL until distribution backfills it.
	earningTxnID := ulid.Make().String()
	revenueTxnID := ulid.Make().String()

	_, err = tx.Exec(ctx, `
		INSERT INTO financial_transactions (
			id, transaction_type, status, client_id, order_id,
			amount_gross, amount_fees, amount_net, currency,
			gateway_provider, gateway_reference, description, created_at, updated_at
		)
		VALUES
			($1, 'driver_earning', 'pending', $3, $4, $5, 0, $5, $7, $8, $9, 'Driver share of order revenue', NOW(), NOW()),
			($2, 'platform_revenue', 'pending', $3, $4, $6, 0, $6, $7, $8, $10, 'Platform share of order revenue', NOW(), NOW())
	`, earningTxnID, revenueTxnID, orderClientID, p.OrderID,
		driverShare, platformShare, r.currency, r.provider,
		earningTxnID, revenueTxnID)
	if err != nil {
		return nil, fmt.Errorf("failed to create liability transactions: %w", err)
	}

	// Flip the order. Conditional on not already paid; if a competing path
	// beat us to the order but we won the transaction flip, the earlier
	// guarded UPDATE above would have matched zero rows, so reaching here
	// with a miss indicates an inconsistent order/ledger pair.
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET payment_status = 'paid', status = 'submitted', paid_at = $2,
		    payment_transaction_id = $3, driver_earning_transaction_id = $4,
		    platform_revenue_transaction_id = $5, payment_failure_reason = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND payment_status != 'paid'
	`, p.OrderID, p.PaidAt, txnID, earningTxnID, revenueTxnID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("order %d already paid while transaction %s was pending: %w", p.OrderID, txnID, xerrors.ErrConflict)
	}

	// Wallet lifetime stats. The wallet is created lazily on first activity.
	_, err = tx.Exec(ctx, `
		INSERT INTO client_wallets (client_id, balance, total_spent, transaction_count, last_activity_at, currency, created_at, updated_at)
		VALUES ($1, 0, $2, 1, NOW(), $3, NOW(), NOW())
		ON CONFLICT (client_id) DO UPDATE
		SET total_spent = client_wallets.total_spent + $2,
		    transaction_count = client_wallets.transaction_count + 1,
		    last_activity_at = NOW(),
		    updated_at = NOW()
	`, orderClientID, p.AmountPaid, r.currency)
	if err != nil {
		return nil, fmt.Errorf("failed to update client wallet stats: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_tracking (order_id, event, note, created_at)
		VALUES ($1, 'order_submitted', 'Payment confirmed, order submitted for assignment', NOW()),
		       ($1, 'payment_completed', $2, NOW())
	`, p.OrderID, fmt.Sprintf("Payment of %d kobo confirmed via %s", p.AmountPaid, p.Channel))
	if err != nil {
		return nil, fmt.Errorf("failed to append tracking history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment completion: %w", err)
	}

	txn, err := r.TransactionByID(ctx, txnID)
	if err != nil {
		return nil, err
	}

	return &ledger.PaymentCompletion{
		Transaction:                  txn,
		DriverEarningTransactionID:   earningTxnID,
		PlatformRevenueTransactionID: revenueTxnID,
	}, nil
}

// resolveCompletionMiss distinguishes "someone else already completed it"
// (idempotent success) from "reference unknown".
func (r *LedgerRepository) resolveCompletionMiss(ctx context.Context, reference string) (*ledger.PaymentCompletion, error) {
	existing, err := r.TransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if existing.Status == ledger.StatusCompleted {
		return &ledger.PaymentCompletion{AlreadyCompleted: true, Transaction: existing}, nil
	}
	return nil, fmt.Errorf("transaction %s in unexpected status %s: %w", reference, existing.Status, xerrors.ErrConflict)
}

// FailClientPayment conditionally fails a charge. A completed reference is
// left untouched and reported as not matched.
func (r *LedgerRepository) FailClientPayment(ctx context.Context, reference, reason string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE financial_transactions
		SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE gateway_reference = $1 AND status IN ('pending', 'processing')
		RETURNING order_id
	`, reference, reason)

	var orderID *int64
	if err := row.Scan(&orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to fail payment transaction: %w", err)
	}

	if orderID != nil {
		_, err = tx.Exec(ctx, `
			UPDATE orders
			SET payment_status = 'failed', payment_failure_reason = $2, updated_at = NOW()
			WHERE id = $1 AND payment_status IN ('pending', 'processing')
		`, *orderID, reason)
		if err != nil {
			return false, fmt.Errorf("failed to mark order payment failed: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO order_tracking (order_id, event, note, created_at)
			VALUES ($1, 'payment_failed', $2, NOW())
		`, *orderID, reason)
		if err != nil {
			return false, fmt.Errorf("failed to append tracking history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit payment failure: %w", err)
	}
	return true, nil
}

// LockPayoutFunds decrements availableBalance and records the pending
// transfer in one step. The guarded decrement doubles as the balance check
// under concurrency.
func (r *LedgerRepository) LockPayoutFunds(ctx context.Context, p ledger.LockFundsParams) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var balanceBefore int64
	err = tx.QueryRow(ctx, `
		SELECT available_balance FROM driver_earnings WHERE driver_id = $1 FOR UPDATE
	`, p.DriverID).Scan(&balanceBefore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("driver earnings %d: %w", p.DriverID, xerrors.ErrNotFound)
		}
		return fmt.Errorf("failed to load driver earnings: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE driver_earnings
		SET available_balance = available_balance - $2, updated_at = NOW()
		WHERE driver_id = $1 AND available_balance >= $2
	`, p.DriverID, p.RequestedAmount)
	if err != nil {
		return fmt.Errorf("failed to lock payout funds: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrInsufficientBalance
	}

	bankJSON, err := json.Marshal(p.Bank)
	if err != nil {
		return fmt.Errorf("failed to marshal bank snapshot: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO pending_transfers (
			driver_id, transaction_id, reference, amount, transfer_fee, net_amount,
			status, balance_before, balance_after, recipient_code, transfer_code,
			bank_snapshot, requires_manual_check, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',$7,$8,$9,$10,$11,false,NOW())
	`, p.DriverID, p.TransactionID, p.Reference, p.RequestedAmount, p.TransferFee,
		p.NetAmount, balanceBefore, balanceBefore-p.RequestedAmount,
		p.RecipientCode, p.TransferCode, bankJSON)
	if err != nil {
		return fmt.Errorf("failed to record pending transfer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit fund lock: %w", err)
	}
	return nil
}

// SettleTransferSuccess is atomic call site (b).
func (r *LedgerRepository) SettleTransferSuccess(ctx context.Context, reference string) (*ledger.TransferSettlement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var txnID string
	err = tx.QueryRow(ctx, `
		UPDATE financial_transactions
		SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE gateway_reference = $1 AND status IN ('pending', 'processing')
		RETURNING id
	`, reference).Scan(&txnID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.resolveSettlementMiss(ctx, reference)
		}
		return nil, fmt.Errorf("failed to complete payout transaction: %w", err)
	}

	var driverID, amount int64
	err = tx.QueryRow(ctx, `
		UPDATE pending_transfers
		SET status = 'completed', settled_at = NOW()
		WHERE reference = $1 AND status = 'pending'
		RETURNING driver_id, amount
	`, reference).Scan(&driverID, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pending transfer %s missing for completed transaction: %w", reference, xerrors.ErrConflict)
		}
		return nil, fmt.Errorf("failed to settle pending transfer: %w", err)
	}

	// availableBalance was already debited at request time; only the
	// reporting view and lifetime totals move here.
	_, err = tx.Exec(ctx, `
		UPDATE driver_earnings
		SET earnings_withdrawn = earnings_withdrawn + $2,
		    earnings_available = GREATEST(earnings_available - $2, 0),
		    total_withdrawn = total_withdrawn + $2,
		    last_withdrawal_at = NOW(),
		    updated_at = NOW()
		WHERE driver_id = $1
	`, driverID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to update driver earnings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transfer settlement: %w", err)
	}

	txn, err := r.TransactionByID(ctx, txnID)
	if err != nil {
		return nil, err
	}
	return &ledger.TransferSettlement{Transaction: txn, DriverID: driverID, Amount: amount}, nil
}

// SettleTransferFailure is atomic call site (c): the compensating action.
// The locked amount returns to availableBalance because the transfer never
// completed; the fee is not charged on failure.
func (r *LedgerRepository) SettleTransferFailure(ctx context.Context, reference string, toStatus ledger.TransactionStatus, reason string) (*ledger.TransferSettlement, error) {
	if toStatus != ledger.StatusFailed && toStatus != ledger.StatusReversed {
		return nil, fmt.Errorf("settlement status %s: %w", toStatus, xerrors.ErrValidation)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var txnID string
	err = tx.QueryRow(ctx, `
		UPDATE financial_transactions
		SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE gateway_reference = $1 AND status IN ('pending', 'processing')
		RETURNING id
	`, reference, toStatus, reason).Scan(&txnID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.resolveSettlementMiss(ctx, reference)
		}
		return nil, fmt.Errorf("failed to fail payout transaction: %w", err)
	}

	var driverID, amount int64
	err = tx.QueryRow(ctx, `
		UPDATE pending_transfers
		SET status = 'failed', failure_reason = $2, settled_at = NOW()
		WHERE reference = $1 AND status = 'pending'
		RETURNING driver_id, amount
	`, reference, reason).Scan(&driverID, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pending transfer %s missing for failed transaction: %w", reference, xerrors.ErrConflict)
		}
		return nil, fmt.Errorf("failed to settle pending transfer: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE driver_earnings
		SET available_balance = available_balance + $2, updated_at = NOW()
		WHERE driver_id = $1
	`, driverID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to restore driver balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transfer failure: %w", err)
	}

	txn, err := r.TransactionByID(ctx, txnID)
	if err != nil {
		return nil, err
	}
	return &ledger.TransferSettlement{Transaction: txn, DriverID: driverID, Amount: amount}, nil
}

func (r *LedgerRepository) resolveSettlementMiss(ctx context.Context, reference string) (*ledger.TransferSettlement, error) {
	existing, err := r.TransactionByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if existing.Status.IsTerminal() {
		var driverID int64
		if existing.DriverID != nil {
			driverID = *existing.DriverID
		}
		return &ledger.TransferSettlement{AlreadySettled: true, Transaction: existing, DriverID: driverID}, nil
	}
	return nil, fmt.Errorf("transfer %s in unexpected status %s: %w", reference, existing.Status, xerrors.ErrConflict)
}

// DistributeOrderRevenue backfills the driver and completes both liability
// transactions, crediting DriverEarnings in the same step.
func (r *LedgerRepository) DistributeOrderRevenue(ctx context.Context, p ledger.DistributeParams) (*ledger.Distribution, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE financial_transactions
		SET driver_id = $2, status = 'completed', completed_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, p.DriverEarningTransactionID, p.DriverID, p.DeliveredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to complete driver earning transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := r.TransactionByID(ctx, p.DriverEarningTransactionID)
		if err != nil {
			return nil, err
		}
		if existing.Status == ledger.StatusCompleted {
			return &ledger.Distribution{AlreadyDistributed: true}, nil
		}
		return nil, fmt.Errorf("driver earning transaction %s in status %s: %w", p.DriverEarningTransactionID, existing.Status, xerrors.ErrConflict)
	}

	_, err = tx.Exec(ctx, `
		UPDATE financial_transactions
		SET status = 'completed', completed_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, p.PlatformRevenueTransactionID, p.DeliveredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to complete platform revenue transaction: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO driver_earnings (
			driver_id, available_balance, earnings_available, total_earned,
			delivery_count, average_per_delivery, currency, created_at, updated_at
		)
		VALUES ($1, $2, $2, $2, 1, $2, $3, NOW(), NOW())
		ON CONFLICT (driver_id) DO UPDATE
		SET available_balance = driver_earnings.available_balance + $2,
		    earnings_available = driver_earnings.earnings_available + $2,
		    total_earned = driver_earnings.total_earned + $2,
		    delivery_count = driver_earnings.delivery_count + 1,
		    average_per_delivery = (driver_earnings.total_earned + $2) / (driver_earnings.delivery_count + 1),
		    updated_at = NOW()
	`, p.DriverID, p.DriverShare, r.currency)
	if err != nil {
		return nil, fmt.Errorf("failed to credit driver earnings: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO earning_entries (driver_id, order_id, transaction_id, amount, earned_on, created_at)
		VALUES ($1, $2, $3, $4, $5::date, NOW())
	`, p.DriverID, p.OrderID, p.DriverEarningTransactionID, p.DriverShare, p.DeliveredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append earning entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit revenue distribution: %w", err)
	}

	return &ledger.Distribution{
		DriverShare:   p.DriverShare,
		PlatformShare: p.PlatformShare,
	}, nil
}

// CompleteWalletDeposit credits the client wallet in the same atomic step as
// the deposit transaction's status flip.
func (r *LedgerRepository) CompleteWalletDeposit(ctx context.Context, reference string, fees int64, paidAt time.Time) (*ledger.DepositCompletion, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var txnID string
	var clientID int64
	var gross int64
	err = tx.QueryRow(ctx, `
		UPDATE financial_transactions
		SET status = 'completed', amount_fees = $2, amount_net = amount_gross - $2,
		    completed_at = $3, updated_at = NOW()
		WHERE gateway_reference = $1 AND status IN ('pending', 'processing', 'failed')
		RETURNING id, client_id, amount_gross
	`, reference, fees, paidAt).Scan(&txnID, &clientID, &gross)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			existing, lookupErr := r.TransactionByReference(ctx, reference)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing.Status == ledger.StatusCompleted {
				return &ledger.DepositCompletion{AlreadyCompleted: true, Transaction: existing}, nil
			}
			return nil, fmt.Errorf("deposit %s in unexpected status %s: %w", reference, existing.Status, xerrors.ErrConflict)
		}
		return nil, fmt.Errorf("failed to complete deposit transaction: %w", err)
	}

	var newBalance int64
	err = tx.QueryRow(ctx, `
		INSERT INTO client_wallets (client_id, balance, total_deposited, transaction_count, first_deposit_at, last_activity_at, currency, created_at, updated_at)
		VALUES ($1, $2, $2, 1, NOW(), NOW(), $3, NOW(), NOW())
		ON CONFLICT (client_id) DO UPDATE
		SET balance = client_wallets.balance + $2,
		    total_deposited = client_wallets.total_deposited + $2,
		    transaction_count = client_wallets.transaction_count + 1,
		    first_deposit_at = COALESCE(client_wallets.first_deposit_at, NOW()),
		    last_activity_at = NOW(),
		    updated_at = NOW()
		RETURNING balance
	`, clientID, gross, r.currency).Scan(&newBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to credit client wallet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit deposit completion: %w", err)
	}

	txn, err := r.TransactionByID(ctx, txnID)
	if err != nil {
		return nil, err
	}
	return &ledger.DepositCompletion{Transaction: txn, NewBalance: newBalance}, nil
}

func (r *LedgerRepository) PendingTransfers(ctx context.Context, driverID int64) ([]earnings.PendingTransfer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, driver_id, transaction_id, reference, amount, transfer_fee, net_amount,
		       status, balance_before, balance_after, recipient_code, transfer_code,
		       bank_snapshot, requires_manual_check, failure_reason, created_at, settled_at
		FROM pending_transfers
		WHERE driver_id = $1 AND status = 'pending'
		ORDER BY created_at ASC
	`, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transfers: %w", err)
	}
	defer rows.Close()
	return scanPendingTransfers(rows)
}

func (r *LedgerRepository) StalePendingTransfers(ctx context.Context, cutoff time.Time) ([]earnings.PendingTransfer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, driver_id, transaction_id, reference, amount, transfer_fee, net_amount,
		       status, balance_before, balance_after, recipient_code, transfer_code,
		       bank_snapshot, requires_manual_check, failure_reason, created_at, settled_at
		FROM pending_transfers
		WHERE status = 'pending' AND (requires_manual_check OR created_at < $1)
		ORDER BY created_at ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending transfers: %w", err)
	}
	defer rows.Close()
	return scanPendingTransfers(rows)
}

func (r *LedgerRepository) RecentTransactions(ctx context.Context, clientID int64, limit int) ([]ledger.FinancialTransaction, error) {
	if limit < 1 || limit > 50 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT %s FROM financial_transactions
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, txnColumns)

	rows, err := r.db.Query(ctx, query, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent transactions: %w", err)
	}
	defer rows.Close()

	transactions := []ledger.FinancialTransaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *txn)
	}
	return transactions, nil
}

// ---- scanning helpers ----

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *LedgerRepository) scanOne(row pgx.Row) (*ledger.FinancialTransaction, error) {
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("financial transaction: %w", xerrors.ErrNotFound)
		}
		return nil, err
	}
	return txn, nil
}

func scanTransaction(row rowScanner) (*ledger.FinancialTransaction, error) {
	var txn ledger.FinancialTransaction
	var metadataJSON, payoutJSON []byte

	err := row.Scan(
		&txn.ID, &txn.Type, &txn.Status, &txn.ClientID, &txn.DriverID, &txn.OrderID,
		&txn.Amount.Gross, &txn.Amount.Fees, &txn.Amount.Net, &txn.Amount.Currency,
		&txn.Gateway.Provider, &txn.Gateway.Reference, &metadataJSON, &payoutJSON,
		&txn.Description, &txn.FailureReason, &txn.CreatedAt, &txn.UpdatedAt, &txn.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &txn.Gateway.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal gateway metadata: %w", err)
		}
	}
	if len(payoutJSON) > 0 {
		txn.Payout = &ledger.PayoutDetails{}
		if err := json.Unmarshal(payoutJSON, txn.Payout); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payout details: %w", err)
		}
	}
	return &txn, nil
}

func scanPendingTransfers(rows pgx.Rows) ([]earnings.PendingTransfer, error) {
	transfers := []earnings.PendingTransfer{}
	for rows.Next() {
		var pt earnings.PendingTransfer
		var bankJSON []byte
		err := rows.Scan(
			&pt.ID, &pt.DriverID, &pt.TransactionID, &pt.Reference, &pt.Amount,
			&pt.TransferFee, &pt.NetAmount, &pt.Status, &pt.BalanceBefore,
			&pt.BalanceAfter, &pt.RecipientCode, &pt.TransferCode, &bankJSON,
			&pt.RequiresManualCheck, &pt.FailureReason, &pt.CreatedAt, &pt.SettledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending transfer: %w", err)
		}
		pt.BankSnapshot = string(bankJSON)
		transfers = append(transfers, pt)
	}
	return transfers, nil
}

func marshalJSONField(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case map[string]interface{}:
		if val == nil {
			return nil, nil
		}
	case *ledger.PayoutDetails:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
