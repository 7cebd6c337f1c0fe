// internal/service/notification/notification_service.go
package notification

import (
	"context"

	"cargolink-service/internal/domain/notification"

	"go.uber.org/zap"
)

// Service creates in-app notifications and pushes realtime events. It is
// fire-and-forget from the engines' point of view: a notification failure
// never fails a money operation.
type Service struct {
	repo      notification.Repository
	publisher notification.EventPublisher
	logger    *zap.Logger
}

func NewService(repo notification.Repository, publisher notification.EventPublisher, logger *zap.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, logger: logger}
}

// Event is a typed notification trigger. Fields outside the closed set used
// by its type's template are ignored.
type Event struct {
	IdentityID int64
	Category   notification.Category
	Type       string
	OrderID    *int64
	OrderRef   string
	Amount     int64 // kobo
	Currency   string
	Reason     string
}

// Notify renders, dedupes, persists, and publishes one notification. The
// dedupe key is {identity, category, type, order}: the callback, poll, and
// webhook paths race to notify the same settlement, and only the first
// creation goes through.
func (s *Service) Notify(ctx context.Context, e Event) {
	exists, err := s.repo.ExistsSimilar(ctx, e.IdentityID, e.Category, e.Type, e.OrderID)
	if err != nil {
		s.logger.Error("notification dedupe check failed",
			zap.Int64("identity_id", e.IdentityID),
			zap.String("type", e.Type),
			zap.Error(err))
		return
	}
	if exists {
		return
	}

	title, message := render(e)
	n := &notification.Notification{
		IdentityID: e.IdentityID,
		Category:   e.Category,
		Type:       e.Type,
		Title:      title,
		Message:    message,
		OrderID:    e.OrderID,
		Channels:   []string{"in_app", "push"},
		Metadata:   metadataFor(e),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Error("notification create failed",
			zap.Int64("identity_id", e.IdentityID),
			zap.String("type", e.Type),
			zap.Error(err))
		return
	}

	if s.publisher != nil {
		s.publisher.Publish(e.IdentityID, e.Type, n)
	}
}

func (s *Service) List(ctx context.Context, identityID int64, filters *notification.ListFilters) ([]notification.Notification, int64, error) {
	return s.repo.List(ctx, identityID, filters)
}

func (s *Service) MarkAsRead(ctx context.Context, id, identityID int64) error {
	return s.repo.MarkAsRead(ctx, id, identityID)
}

func (s *Service) UnreadCount(ctx context.Context, identityID int64) (int, error) {
	return s.repo.UnreadCount(ctx, identityID)
}

func metadataFor(e Event) map[string]interface{} {
	m := map[string]interface{}{}
	if e.OrderID != nil {
		m["order_id"] = *e.OrderID
	}
	if e.OrderRef != "" {
		m["order_ref"] = e.OrderRef
	}
	if e.Amount > 0 {
		m["amount"] = e.Amount
	}
	if e.Reason != "" {
		m["reason"] = e.Reason
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
