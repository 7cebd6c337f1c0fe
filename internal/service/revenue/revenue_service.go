// internal/service/revenue/revenue_service.go
package revenue

import (
	"context"
	"fmt"
	"time"

	"cargolink-service/internal/domain/ledger"
	"cargolink-service/internal/domain/notification"
	"cargolink-service/internal/domain/order"
	xerrors "cargolink-service/internal/pkg/errors"
	notifsvc "cargolink-service/internal/service/notification"

	"go.uber.org/zap"
)

// Service distributes a delivered order's revenue between the driver and the
// platform, completing the liability transactions pre-created at payment
// time.
type Service struct {
	currency      string
	orders        order.Repository
	store         ledger.Store
	notifications *notifsvc.Service
	logger        *zap.Logger
}

func NewService(currency string, orders order.Repository, store ledger.Store, notifications *notifsvc.Service, logger *zap.Logger) *Service {
	return &Service{
		currency:      currency,
		orders:        orders,
		store:         store,
		notifications: notifications,
		logger:        logger,
	}
}

// DistributionResult reports one distribution outcome.
type DistributionResult struct {
	OrderID            int64 `json:"order_id"`
	DriverShare        int64 `json:"driver_share"`
	PlatformShare      int64 `json:"platform_share"`
	AlreadyDistributed bool  `json:"already_distributed,omitempty"`
}

// CompleteDelivery marks an in-transit order delivered and distributes its
// revenue. Re-firing for an already-delivered order only retries the
// distribution, which is idempotent.
func (s *Service) CompleteDelivery(ctx context.Context, driverID, orderID int64) (*DistributionResult, error) {
	ord, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.DriverID == nil || *ord.DriverID != driverID {
		return nil, fmt.Errorf("order %d is not assigned to driver %d: %w", orderID, driverID, xerrors.ErrForbidden)
	}

	switch ord.Status {
	case order.StatusInTransit:
		now := time.Now()
		ok, err := s.orders.MarkDelivered(ctx, orderID, driverID, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("order %d status changed: %w", orderID, xerrors.ErrConflict)
		}
		ord.Status = order.StatusDelivered
		ord.DeliveredAt = &now
		if err := s.orders.AppendTracking(ctx, orderID, "order_delivered", "Delivery confirmed by driver"); err != nil {
			s.logger.Error("delivery tracking append failed", zap.Int64("order_id", orderID), zap.Error(err))
		}
	case order.StatusDelivered:
		// Re-fire: fall through to distribution.
	default:
		return nil, fmt.Errorf("order %d is not in transit: %w", orderID, xerrors.ErrConflict)
	}

	return s.Distribute(ctx, ord)
}

// Distribute completes the two liability transactions and credits the
// driver. Fires only for delivered orders; missing financial references
// indicate an order that skipped payment initialization and must fail
// loudly, never distribute silently.
func (s *Service) Distribute(ctx context.Context, ord *order.Order) (*DistributionResult, error) {
	if ord.Status != order.StatusDelivered {
		return nil, fmt.Errorf("order %d not delivered: %w", ord.ID, xerrors.ErrConflict)
	}
	if ord.DriverID == nil {
		return nil, fmt.Errorf("order %d has no driver: %w", ord.ID, xerrors.ErrConflict)
	}
	refs := ord.Pricing.References
	if refs.DriverEarningTransactionID == "" || refs.PlatformRevenueTransactionID == "" {
		s.logger.Error("order missing financial references",
			zap.Int64("order_id", ord.ID),
			zap.String("order_ref", ord.OrderRef))
		return nil, fmt.Errorf("order %d: %w", ord.ID, xerrors.ErrMissingFinancialReferences)
	}

	deliveredAt := time.Now()
	if ord.DeliveredAt != nil {
		deliveredAt = *ord.DeliveredAt
	}

	dist, err := s.store.DistributeOrderRevenue(ctx, ledger.DistributeParams{
		OrderID:                      ord.ID,
		DriverID:                     *ord.DriverID,
		DriverEarningTransactionID:   refs.DriverEarningTransactionID,
		PlatformRevenueTransactionID: refs.PlatformRevenueTransactionID,
		DriverShare:                  ord.Pricing.DriverShare,
		PlatformShare:                ord.Pricing.PlatformShare,
		DeliveredAt:                  deliveredAt,
	})
	if err != nil {
		return nil, err
	}
	if dist.AlreadyDistributed {
		return &DistributionResult{OrderID: ord.ID, AlreadyDistributed: true}, nil
	}

	s.logger.Info("revenue distributed",
		zap.Int64("order_id", ord.ID),
		zap.Int64("driver_id", *ord.DriverID),
		zap.Int64("driver_share", ord.Pricing.DriverShare),
		zap.Int64("platform_share", ord.Pricing.PlatformShare))

	s.notifications.Notify(ctx, notifsvc.Event{
		IdentityID: *ord.DriverID,
		Category:   notification.CategoryPayout,
		Type:       notification.TypeEarningCredited,
		OrderID:    &ord.ID,
		OrderRef:   ord.OrderRef,
		Amount:     ord.Pricing.DriverShare,
		Currency:   s.currency,
	})

	return &DistributionResult{
		OrderID:       ord.ID,
		DriverShare:   dist.DriverShare,
		PlatformShare: dist.PlatformShare,
	}, nil
}
