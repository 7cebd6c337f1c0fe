// internal/domain/notification/entity.go
package notification

import (
	"context"
	"database/sql"
	"time"
)

type Category string

const (
	CategoryOrder   Category = "order"
	CategoryPayment Category = "payment"
	CategoryPayout  Category = "payout"
)

// Event types within a category.
const (
	TypeOrderCreated      = "order.created"
	TypePaymentSuccessful = "payment.successful"
	TypePaymentFailed     = "payment.failed"
	TypeRefundRequested   = "payment.refund_requested"
	TypePayoutInitiated   = "payout.initiated"
	TypePayoutCompleted   = "payout.completed"
	TypePayoutFailed      = "payout.failed"
	TypeEarningCredited   = "earning.credited"
	TypeDepositSuccessful = "wallet.deposit_successful"
)

// Notification is a persisted in-app notification. Delivery to push/SMS/email
// happens in a downstream worker; this service only creates and publishes.
type Notification struct {
	ID         int64                  `json:"id" db:"id"`
	IdentityID int64                  `json:"identity_id" db:"identity_id"`
	Category   Category               `json:"category" db:"category"`
	Type       string                 `json:"type" db:"type"`
	Title      string                 `json:"title" db:"title"`
	Message    string                 `json:"message" db:"message"`
	OrderID    *int64                 `json:"order_id,omitempty" db:"order_id"`
	Channels   []string               `json:"channels" db:"channels"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	IsRead     bool                   `json:"is_read" db:"is_read"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
	ReadAt     sql.NullTime           `json:"read_at,omitempty" db:"read_at"`
}

// ListFilters narrows notification queries.
type ListFilters struct {
	IsRead   *bool     `form:"is_read"`
	Category *Category `form:"category"`
	Page     int       `form:"page"`
	PageSize int       `form:"page_size"`
}

// Repository persists notifications. ExistsSimilar is the dedupe gate: the
// callback and webhook paths race to notify the same event, and only the
// first creation may go through.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ExistsSimilar(ctx context.Context, identityID int64, category Category, typ string, orderID *int64) (bool, error)
	List(ctx context.Context, identityID int64, filters *ListFilters) ([]Notification, int64, error)
	MarkAsRead(ctx context.Context, id, identityID int64) error
	UnreadCount(ctx context.Context, identityID int64) (int, error)
}

// EventPublisher pushes a realtime event to one user. The core engines
// depend only on this capability, never on a process-wide socket registry.
type EventPublisher interface {
	Publish(identityID int64, event string, payload interface{})
}
