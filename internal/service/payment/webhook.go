// internal/service/payment/webhook.go
package payment

import (
	"context"

	"cargolink-service/internal/gateway/paystack"

	"go.uber.org/zap"
)

// HandleChargeWebhook settles charge events. The caller has already passed
// the signature gate; payload contents are still treated as untrusted and
// cross-checked against the gateway before any credit.
func (s *Service) HandleChargeWebhook(ctx context.Context, event *paystack.WebhookEvent) error {
	reference := event.Data.Reference
	ord, err := s.orders.FindByReference(ctx, reference)
	if err != nil {
		// Unknown references are logged and acknowledged; the gateway would
		// otherwise retry an event this service can never process.
		s.logger.Warn("charge webhook for unknown reference",
			zap.String("event", event.Event),
			zap.String("reference", reference))
		return nil
	}

	switch event.Event {
	case paystack.EventChargeSuccess:
		// The webhook payload claims success; the gateway verify call is the
		// authority on both outcome and amount.
		verification, err := s.gateway.VerifyCharge(ctx, reference)
		if err != nil {
			return err
		}
		if !verification.Success() {
			s.logger.Warn("charge.success webhook contradicted by verification",
				zap.String("reference", reference),
				zap.String("verified_status", verification.Status))
			return nil
		}
		_, err = s.settleVerifiedCharge(ctx, ord, verification)
		return err

	case paystack.EventChargeFailed:
		// Conditional: a failure event arriving after a success must not
		// touch the completed transaction.
		reason := event.Data.GatewayResponse
		if reason == "" {
			reason = event.Data.Reason
		}
		_, err := s.failPayment(ctx, ord, reason)
		return err
	}

	s.logger.Debug("ignoring unhandled charge event", zap.String("event", event.Event))
	return nil
}
