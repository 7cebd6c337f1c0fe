// internal/repository/postgres/earnings_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cargolink-service/internal/domain/earnings"
	xerrors "cargolink-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EarningsRepository struct {
	db *pgxpool.Pool
}

func NewEarningsRepository(db *pgxpool.Pool) *EarningsRepository {
	return &EarningsRepository{db: db}
}

func (r *EarningsRepository) FindByDriverID(ctx context.Context, driverID int64) (*earnings.DriverEarnings, error) {
	var e earnings.DriverEarnings
	err := r.db.QueryRow(ctx, `
		SELECT id, driver_id, available_balance,
		       earnings_pending, earnings_available, earnings_withdrawn,
		       total_earned, total_withdrawn, delivery_count, average_per_delivery,
		       last_withdrawal_at, payout_pin_hash, pin_failed_attempts, pin_locked_until,
		       currency, created_at, updated_at
		FROM driver_earnings
		WHERE driver_id = $1
	`, driverID).Scan(
		&e.ID, &e.DriverID, &e.AvailableBalance,
		&e.EarningsPending, &e.EarningsAvailable, &e.EarningsWithdrawn,
		&e.TotalEarned, &e.TotalWithdrawn, &e.DeliveryCount, &e.AveragePerDelivery,
		&e.LastWithdrawalAt, &e.PayoutPINHash, &e.PINFailedAttempts, &e.PINLockedUntil,
		&e.Currency, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("driver earnings: %w", xerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load driver earnings: %w", err)
	}
	return &e, nil
}

func (r *EarningsRepository) SetPayoutPIN(ctx context.Context, driverID int64, pinHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE driver_earnings
		SET payout_pin_hash = $2, pin_failed_attempts = 0, pin_locked_until = NULL, updated_at = NOW()
		WHERE driver_id = $1
	`, driverID, pinHash)
	if err != nil {
		return fmt.Errorf("failed to set payout pin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("driver earnings %d: %w", driverID, xerrors.ErrNotFound)
	}
	return nil
}

func (r *EarningsRepository) RecordPINFailure(ctx context.Context, driverID int64, lockedUntil *time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE driver_earnings
		SET pin_failed_attempts = pin_failed_attempts + 1, pin_locked_until = $2, updated_at = NOW()
		WHERE driver_id = $1
	`, driverID, lockedUntil)
	if err != nil {
		return fmt.Errorf("failed to record pin failure: %w", err)
	}
	return nil
}

func (r *EarningsRepository) ResetPINFailures(ctx context.Context, driverID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE driver_earnings
		SET pin_failed_attempts = 0, pin_locked_until = NULL, updated_at = NOW()
		WHERE driver_id = $1
	`, driverID)
	if err != nil {
		return fmt.Errorf("failed to reset pin failures: %w", err)
	}
	return nil
}

func (r *EarningsRepository) RecentEntries(ctx context.Context, driverID int64, limit int) ([]earnings.EarningEntry, error) {
	if limit < 1 || limit > 50 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, driver_id, order_id, transaction_id, amount, earned_on, created_at
		FROM earning_entries
		WHERE driver_id = $1
		ORDER BY earned_on DESC, id DESC
		LIMIT $2
	`, driverID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list earning entries: %w", err)
	}
	defer rows.Close()

	entries := []earnings.EarningEntry{}
	for rows.Next() {
		var e earnings.EarningEntry
		if err := rows.Scan(&e.ID, &e.DriverID, &e.OrderID, &e.TransactionID, &e.Amount, &e.EarnedOn, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan earning entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
