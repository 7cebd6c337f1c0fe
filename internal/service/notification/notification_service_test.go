// internal/service/notification/notification_service_test.go
package notification

import (
	"context"
	"strings"
	"sync"
	"testing"

	domain "cargolink-service/internal/domain/notification"

	"go.uber.org/zap"
)

type memoryRepo struct {
	mu      sync.Mutex
	created []domain.Notification
}

func (m *memoryRepo) Create(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, *n)
	return nil
}

func (m *memoryRepo) ExistsSimilar(ctx context.Context, identityID int64, category domain.Category, typ string, orderID *int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.created {
		if n.IdentityID != identityID || n.Category != category || n.Type != typ {
			continue
		}
		if (n.OrderID == nil) != (orderID == nil) {
			continue
		}
		if n.OrderID != nil && *n.OrderID != *orderID {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (m *memoryRepo) List(ctx context.Context, identityID int64, filters *domain.ListFilters) ([]domain.Notification, int64, error) {
	return nil, 0, nil
}

func (m *memoryRepo) MarkAsRead(ctx context.Context, id, identityID int64) error { return nil }

func (m *memoryRepo) UnreadCount(ctx context.Context, identityID int64) (int, error) {
	return 0, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(identityID int64, event string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func TestNotifyDedupesPerOrderAndType(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, zap.NewNop())
	orderID := int64(11)

	event := Event{
		IdentityID: 5,
		Category:   domain.CategoryPayment,
		Type:       domain.TypePaymentSuccessful,
		OrderID:    &orderID,
		OrderRef:   "ORD-2026-000011",
		Amount:     250_000,
		Currency:   "NGN",
	}
	// The callback, poll, and webhook paths race to notify the same event.
	for i := 0; i < 3; i++ {
		svc.Notify(context.Background(), event)
	}
	if len(repo.created) != 1 {
		t.Fatalf("created = %d, want 1", len(repo.created))
	}

	// A different order with the same type is a distinct notification.
	otherOrder := int64(12)
	event.OrderID = &otherOrder
	svc.Notify(context.Background(), event)
	if len(repo.created) != 2 {
		t.Errorf("created = %d after second order, want 2", len(repo.created))
	}
}

func TestNotifyPublishesRealtimeEvent(t *testing.T) {
	repo := &memoryRepo{}
	pub := &recordingPublisher{}
	svc := NewService(repo, pub, zap.NewNop())

	svc.Notify(context.Background(), Event{
		IdentityID: 9,
		Category:   domain.CategoryPayout,
		Type:       domain.TypePayoutCompleted,
		Amount:     300_000,
		Currency:   "NGN",
	})

	if len(pub.events) != 1 || pub.events[0] != domain.TypePayoutCompleted {
		t.Errorf("published events = %v, want one payout.completed", pub.events)
	}
}

func TestRenderKnownTypes(t *testing.T) {
	orderID := int64(11)
	cases := []struct {
		event     Event
		wantTitle string
		wantIn    string
	}{
		{
			Event{Type: domain.TypePaymentSuccessful, OrderID: &orderID, OrderRef: "ORD-2026-000011", Amount: 250_000, Currency: "NGN"},
			"Payment successful", "NGN 2500.00",
		},
		{
			Event{Type: domain.TypePayoutFailed, Amount: 4_000_000, Currency: "NGN"},
			"Payout failed", "returned to your balance",
		},
		{
			Event{Type: domain.TypeEarningCredited, OrderRef: "ORD-2026-000011", Amount: 200_000, Currency: "NGN"},
			"Earnings credited", "ORD-2026-000011",
		},
		{
			Event{Type: "something.unknown", Category: domain.CategoryOrder},
			"Notification", "order",
		},
	}

	for _, tc := range cases {
		title, message := render(tc.event)
		if title != tc.wantTitle {
			t.Errorf("render(%s) title = %q, want %q", tc.event.Type, title, tc.wantTitle)
		}
		if !strings.Contains(message, tc.wantIn) {
			t.Errorf("render(%s) message = %q, want it to contain %q", tc.event.Type, message, tc.wantIn)
		}
	}
}
