// internal/domain/order/entity.go
package order

import (
	"context"
	"time"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusAssigned  Status = "assigned"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending         PaymentStatus = "pending"
	PaymentProcessing      PaymentStatus = "processing"
	PaymentPaid            PaymentStatus = "paid"
	PaymentFailed          PaymentStatus = "failed"
	PaymentRefundRequested PaymentStatus = "refund_requested"
	PaymentCancelled       PaymentStatus = "cancelled"
)

// Payment is the payment sub-record owned by an order.
type Payment struct {
	Method           string        `json:"method" db:"payment_method"`
	Status           PaymentStatus `json:"status" db:"payment_status"`
	Reference        string        `json:"reference" db:"payment_reference"`
	Amount           int64         `json:"amount" db:"payment_amount"` // kobo
	AuthorizationURL string        `json:"authorization_url,omitempty" db:"authorization_url"`
	AccessCode       string        `json:"access_code,omitempty" db:"access_code"`
	InitiatedAt      *time.Time    `json:"initiated_at,omitempty" db:"payment_initiated_at"`
	PaidAt           *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
	FailureReason    *string       `json:"failure_reason,omitempty" db:"payment_failure_reason"`
}

// FinancialReferences link the order to its ledger rows. The earning and
// revenue ids are created at payment time with no driver attached; revenue
// distribution refuses to run without them.
type FinancialReferences struct {
	PaymentTransactionID         string `json:"payment_transaction_id" db:"payment_transaction_id"`
	DriverEarningTransactionID   string `json:"driver_earning_transaction_id" db:"driver_earning_transaction_id"`
	PlatformRevenueTransactionID string `json:"platform_revenue_transaction_id" db:"platform_revenue_transaction_id"`
}

// Pricing is the output contract of the upstream pricing engine. The
// composition formula is not this service's concern; only the total and the
// split are.
type Pricing struct {
	Total         int64               `json:"total" db:"pricing_total"` // kobo
	DriverShare   int64               `json:"driver_share" db:"driver_share"`
	PlatformShare int64               `json:"platform_share" db:"platform_share"`
	References    FinancialReferences `json:"financial_references"`
}

// Order is the subset of the marketplace order relevant to payments.
type Order struct {
	ID       int64  `json:"id" db:"id"`
	OrderRef string `json:"order_ref" db:"order_ref"`
	ClientID int64  `json:"client_id" db:"client_id"`
	DriverID *int64 `json:"driver_id,omitempty" db:"driver_id"`
	Status   Status `json:"status" db:"status"`

	Payment Payment `json:"payment"`
	Pricing Pricing `json:"pricing"`

	DeliveredAt *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// TrackingEntry is one row of the order's status history.
type TrackingEntry struct {
	ID        int64     `json:"id" db:"id"`
	OrderID   int64     `json:"order_id" db:"order_id"`
	Event     string    `json:"event" db:"event"`
	Note      string    `json:"note,omitempty" db:"note"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// InitiatePaymentFields is written onto the order when checkout starts.
type InitiatePaymentFields struct {
	Method           string
	Reference        string
	Amount           int64
	AuthorizationURL string
	AccessCode       string
	InitiatedAt      time.Time
}

// Repository covers order reads and the non-settlement payment writes.
// Settlement itself goes through ledger.Store.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Order, error)
	FindByIDAndReference(ctx context.Context, id int64, reference string) (*Order, error)
	FindByReference(ctx context.Context, reference string) (*Order, error)

	// SetPaymentInitiated writes checkout fields conditionally on the order
	// still being a draft; false means the order changed underneath and the
	// caller must 409.
	SetPaymentInitiated(ctx context.Context, orderID int64, f InitiatePaymentFields) (bool, error)

	// MarkRefundRequested flips payment status paid → refund_requested.
	MarkRefundRequested(ctx context.Context, orderID int64, reason string) (bool, error)

	// MarkDelivered flips order status to delivered, conditional on
	// in_transit, recording who delivered.
	MarkDelivered(ctx context.Context, orderID, driverID int64, at time.Time) (bool, error)

	AppendTracking(ctx context.Context, orderID int64, event, note string) error
	TrackingHistory(ctx context.Context, orderID int64) ([]TrackingEntry, error)
}
