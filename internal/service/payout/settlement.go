// internal/service/payout/settlement.go
package payout

import (
	"context"
	"time"

	"cargolink-service/internal/domain/earnings"
	"cargolink-service/internal/domain/ledger"
	"cargolink-service/internal/domain/notification"
	"cargolink-service/internal/gateway/paystack"
	"cargolink-service/internal/pkg/reference"
	notifsvc "cargolink-service/internal/service/notification"

	"go.uber.org/zap"
)

// HandleTransferWebhook settles transfer events. Malformed references are
// dropped before any lookup; duplicate deliveries collapse to no-ops inside
// the store's conditional updates.
func (s *Service) HandleTransferWebhook(ctx context.Context, event *paystack.WebhookEvent) error {
	ref := event.Data.Reference
	if !reference.IsValidTransferReference(ref) {
		s.logger.Warn("transfer webhook with malformed reference",
			zap.String("event", event.Event),
			zap.String("reference", ref))
		return nil
	}

	switch event.Event {
	case paystack.EventTransferSuccess:
		return s.settleSuccess(ctx, ref)
	case paystack.EventTransferFailed:
		return s.settleFailure(ctx, ref, ledger.StatusFailed, failureReason(event.Data, "transfer failed"))
	case paystack.EventTransferReversed:
		return s.settleFailure(ctx, ref, ledger.StatusReversed, failureReason(event.Data, "transfer reversed"))
	}

	s.logger.Debug("ignoring unhandled transfer event", zap.String("event", event.Event))
	return nil
}

func failureReason(data paystack.WebhookEventData, fallback string) string {
	if data.Reason != "" {
		return data.Reason
	}
	if data.GatewayResponse != "" {
		return data.GatewayResponse
	}
	return fallback
}

func (s *Service) settleSuccess(ctx context.Context, ref string) error {
	settlement, err := s.store.SettleTransferSuccess(ctx, ref)
	if err != nil {
		return err
	}
	if settlement.AlreadySettled {
		return nil
	}

	s.logger.Info("payout settled",
		zap.Int64("driver_id", settlement.DriverID),
		zap.String("reference", ref),
		zap.Int64("amount", settlement.Amount))

	s.notifications.Notify(ctx, notifsvc.Event{
		IdentityID: settlement.DriverID,
		Category:   notification.CategoryPayout,
		Type:       notification.TypePayoutCompleted,
		Amount:     settlement.Amount,
		Currency:   s.cfg.Currency,
	})
	return nil
}

func (s *Service) settleFailure(ctx context.Context, ref string, toStatus ledger.TransactionStatus, reason string) error {
	settlement, err := s.store.SettleTransferFailure(ctx, ref, toStatus, reason)
	if err != nil {
		return err
	}
	if settlement.AlreadySettled {
		return nil
	}

	s.logger.Warn("payout failed, balance restored",
		zap.Int64("driver_id", settlement.DriverID),
		zap.String("reference", ref),
		zap.Int64("restored_amount", settlement.Amount),
		zap.String("reason", reason))

	s.notifications.Notify(ctx, notifsvc.Event{
		IdentityID: settlement.DriverID,
		Category:   notification.CategoryPayout,
		Type:       notification.TypePayoutFailed,
		Amount:     settlement.Amount,
		Currency:   s.cfg.Currency,
		Reason:     reason,
	})
	return nil
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	StillPend int `json:"still_pending"`
	Errors    int `json:"errors"`
}

// ReconcilePendingTransfers re-verifies a driver's in-flight payouts against
// the gateway and routes each outcome through the same settlement handlers
// the webhook uses. This is the backstop for missed webhook deliveries.
func (s *Service) ReconcilePendingTransfers(ctx context.Context, driverID int64) (*ReconcileReport, error) {
	pending, err := s.store.PendingTransfers(ctx, driverID)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, pending), nil
}

// ReconcileStaleTransfers sweeps pending transfers older than the staleness
// cutoff, or flagged for manual check, across all drivers.
func (s *Service) ReconcileStaleTransfers(ctx context.Context) (*ReconcileReport, error) {
	cutoff := time.Now().Add(-s.cfg.StaleAfter)
	pending, err := s.store.StalePendingTransfers(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, pending), nil
}

func (s *Service) reconcile(ctx context.Context, pending []earnings.PendingTransfer) *ReconcileReport {
	report := &ReconcileReport{}
	for _, pt := range pending {
		report.Checked++

		verification, err := s.gateway.VerifyTransfer(ctx, pt.Reference)
		if err != nil {
			report.Errors++
			s.logger.Error("transfer verification failed during sweep",
				zap.Int64("driver_id", pt.DriverID),
				zap.String("reference", pt.Reference),
				zap.Error(err))
			continue
		}

		switch verification.Status {
		case "success":
			if err := s.settleSuccess(ctx, pt.Reference); err != nil {
				report.Errors++
				s.logger.Error("sweep settlement failed",
					zap.String("reference", pt.Reference), zap.Error(err))
				continue
			}
			report.Completed++
		case "failed":
			if err := s.settleFailure(ctx, pt.Reference, ledger.StatusFailed, verification.Reason); err != nil {
				report.Errors++
				continue
			}
			report.Failed++
		case "reversed":
			if err := s.settleFailure(ctx, pt.Reference, ledger.StatusReversed, verification.Reason); err != nil {
				report.Errors++
				continue
			}
			report.Failed++
		default:
			report.StillPend++
		}
	}
	return report
}
