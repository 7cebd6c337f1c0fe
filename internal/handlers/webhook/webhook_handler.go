// internal/handlers/webhook/webhook_handler.go
package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"cargolink-service/internal/gateway/paystack"
	xerrors "cargolink-service/internal/pkg/errors"
	"cargolink-service/internal/pkg/reference"
	"cargolink-service/internal/pkg/response"
	paymentsvc "cargolink-service/internal/service/payment"
	payoutsvc "cargolink-service/internal/service/payout"
	walletsvc "cargolink-service/internal/service/wallet"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 256 * 1024

// WebhookHandler is the single signature-gated entry point for gateway
// events. Signature verification runs over the raw body before anything is
// parsed; a bad signature is a hard 401 and touches no state.
type WebhookHandler struct {
	verifier       *paystack.WebhookVerifier
	paymentService *paymentsvc.Service
	payoutService  *payoutsvc.Service
	walletService  *walletsvc.Service
	logger         *zap.Logger
}

func NewWebhookHandler(
	verifier *paystack.WebhookVerifier,
	paymentService *paymentsvc.Service,
	payoutService *payoutsvc.Service,
	walletService *walletsvc.Service,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:       verifier,
		paymentService: paymentService,
		payoutService:  payoutService,
		walletService:  walletService,
		logger:         logger,
	}
}

// HandleGatewayEvent processes one inbound gateway webhook
func (h *WebhookHandler) HandleGatewayEvent(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "failed to read request body", err)
		return
	}

	signature := c.GetHeader(paystack.SignatureHeader)
	if !h.verifier.Verify(raw, signature) {
		h.logger.Warn("webhook rejected, invalid signature",
			zap.String("remote_addr", c.ClientIP()))
		response.Unauthorized(c, "invalid webhook signature")
		return
	}

	var event paystack.WebhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		response.Error(c, http.StatusBadRequest, "malformed event payload", err)
		return
	}

	h.logger.Info("webhook received",
		zap.String("event", event.Event),
		zap.String("reference", event.Data.Reference))

	if err := h.route(c, &event); err != nil {
		// A 5xx makes the gateway redeliver, which is exactly what a
		// transient settlement failure needs.
		h.logger.Error("webhook processing failed",
			zap.String("event", event.Event),
			zap.String("reference", event.Data.Reference),
			zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "event processing failed", err)
		return
	}

	response.Success(c, http.StatusOK, "event processed", nil)
}

func (h *WebhookHandler) route(c *gin.Context, event *paystack.WebhookEvent) error {
	ctx := c.Request.Context()

	switch {
	case strings.HasPrefix(event.Event, "charge."):
		// Wallet deposits carry TXN references; order payments carry
		// order-ref based references.
		if reference.IsValidTransactionReference(event.Data.Reference) {
			if event.Event == paystack.EventChargeSuccess {
				err := h.walletService.SettleDeposit(ctx, event.Data.Reference)
				if xerrors.Is(err, xerrors.ErrNotFound) {
					// Ack unknown references; the gateway would retry an
					// event this service can never process.
					h.logger.Warn("deposit webhook for unknown reference",
						zap.String("reference", event.Data.Reference))
					return nil
				}
				return err
			}
			return nil
		}
		return h.paymentService.HandleChargeWebhook(ctx, event)

	case strings.HasPrefix(event.Event, "transfer."):
		return h.payoutService.HandleTransferWebhook(ctx, event)
	}

	h.logger.Debug("ignoring unhandled webhook event", zap.String("event", event.Event))
	return nil
}
