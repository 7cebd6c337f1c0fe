// internal/repository/postgres/order_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cargolink-service/internal/domain/order"
	xerrors "cargolink-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `
	id, order_ref, client_id, driver_id, status,
	COALESCE(payment_method, ''), payment_status, COALESCE(payment_reference, ''), payment_amount,
	COALESCE(authorization_url, ''), COALESCE(access_code, ''),
	payment_initiated_at, paid_at, payment_failure_reason,
	pricing_total, driver_share, platform_share,
	COALESCE(payment_transaction_id, ''), COALESCE(driver_earning_transaction_id, ''),
	COALESCE(platform_revenue_transaction_id, ''),
	delivered_at, created_at, updated_at
`

type OrderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)
	return scanOrder(r.db.QueryRow(ctx, query, id))
}

func (r *OrderRepository) FindByIDAndReference(ctx context.Context, id int64, reference string) (*order.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1 AND payment_reference = $2`, orderColumns)
	return scanOrder(r.db.QueryRow(ctx, query, id, reference))
}

func (r *OrderRepository) FindByReference(ctx context.Context, reference string) (*order.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE payment_reference = $1`, orderColumns)
	return scanOrder(r.db.QueryRow(ctx, query, reference))
}

func (r *OrderRepository) SetPaymentInitiated(ctx context.Context, orderID int64, f order.InitiatePaymentFields) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET payment_method = $2, payment_status = 'processing', payment_reference = $3,
		    payment_amount = $4, authorization_url = $5, access_code = $6,
		    payment_initiated_at = $7, payment_failure_reason = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'draft'
	`, orderID, f.Method, f.Reference, f.Amount, f.AuthorizationURL, f.AccessCode, f.InitiatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to set payment initiated: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepository) MarkRefundRequested(ctx context.Context, orderID int64, reason string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET payment_status = 'refund_requested', payment_failure_reason = $2, updated_at = NOW()
		WHERE id = $1 AND payment_status = 'paid'
	`, orderID, reason)
	if err != nil {
		return false, fmt.Errorf("failed to mark refund requested: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepository) MarkDelivered(ctx context.Context, orderID, driverID int64, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = 'delivered', delivered_at = $3, updated_at = NOW()
		WHERE id = $1 AND driver_id = $2 AND status = 'in_transit'
	`, orderID, driverID, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark order delivered: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepository) AppendTracking(ctx context.Context, orderID int64, event, note string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO order_tracking (order_id, event, note, created_at)
		VALUES ($1, $2, $3, NOW())
	`, orderID, event, note)
	if err != nil {
		return fmt.Errorf("failed to append tracking entry: %w", err)
	}
	return nil
}

func (r *OrderRepository) TrackingHistory(ctx context.Context, orderID int64) ([]order.TrackingEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, event, note, created_at
		FROM order_tracking
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracking history: %w", err)
	}
	defer rows.Close()

	entries := []order.TrackingEntry{}
	for rows.Next() {
		var e order.TrackingEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Event, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tracking entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.OrderRef, &o.ClientID, &o.DriverID, &o.Status,
		&o.Payment.Method, &o.Payment.Status, &o.Payment.Reference, &o.Payment.Amount,
		&o.Payment.AuthorizationURL, &o.Payment.AccessCode, &o.Payment.InitiatedAt,
		&o.Payment.PaidAt, &o.Payment.FailureReason,
		&o.Pricing.Total, &o.Pricing.DriverShare, &o.Pricing.PlatformShare,
		&o.Pricing.References.PaymentTransactionID,
		&o.Pricing.References.DriverEarningTransactionID,
		&o.Pricing.References.PlatformRevenueTransactionID,
		&o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order: %w", xerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return &o, nil
}
