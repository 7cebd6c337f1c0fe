// internal/service/payment/payment_service.go
package payment

import (
	"context"
	"fmt"
	"time"

	"cargolink-service/internal/domain/ledger"
	"cargolink-service/internal/domain/notification"
	"cargolink-service/internal/domain/order"
	"cargolink-service/internal/gateway/paystack"
	xerrors "cargolink-service/internal/pkg/errors"
	notifsvc "cargolink-service/internal/service/notification"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Config carries the payment-flow knobs.
type Config struct {
	Currency        string
	CallbackBaseURL string
	DeepLinkBase    string
	Cooldown        time.Duration
	CheckoutExpiry  time.Duration
	RefundWindow    time.Duration
}

// Service is the payment reconciliation engine. Settlement can arrive via
// callback, client poll, or webhook; all three converge on the same
// idempotent completion so duplicates are no-ops by construction.
type Service struct {
	cfg           Config
	orders        order.Repository
	store         ledger.Store
	gateway       *paystack.Client
	notifications *notifsvc.Service
	logger        *zap.Logger
}

func NewService(
	cfg Config,
	orders order.Repository,
	store ledger.Store,
	gateway *paystack.Client,
	notifications *notifsvc.Service,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:           cfg,
		orders:        orders,
		store:         store,
		gateway:       gateway,
		notifications: notifications,
		logger:        logger,
	}
}

// InitiateResult is returned to the client app to open checkout.
type InitiateResult struct {
	AuthorizationURL string    `json:"authorization_url"`
	AccessCode       string    `json:"access_code"`
	Reference        string    `json:"reference"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	ExpiresAt        time.Time `json:"expires_at"`
	// RetryAfter is set when an in-flight checkout was returned instead of a
	// fresh one.
	RetryAfter *int `json:"retry_after_seconds,omitempty"`
}

// InitiatePayment starts hosted checkout for a draft order. Within the
// cooldown window an existing in-flight checkout is returned instead of a
// duplicate charge.
func (s *Service) InitiatePayment(ctx context.Context, clientID, orderID, amount int64, email string) (*InitiateResult, error) {
	ord, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.ClientID != clientID {
		return nil, fmt.Errorf("order %d does not belong to requester: %w", orderID, xerrors.ErrForbidden)
	}
	if ord.Status != order.StatusDraft {
		return nil, fmt.Errorf("order %d is not awaiting payment: %w", orderID, xerrors.ErrConflict)
	}
	if ord.Pricing.Total <= 0 {
		return nil, fmt.Errorf("order %d has no pricing: %w", orderID, xerrors.ErrValidation)
	}
	if amount != ord.Pricing.Total {
		return nil, fmt.Errorf("amount %d does not match order total %d: %w", amount, ord.Pricing.Total, xerrors.ErrValidation)
	}

	// Cooldown throttle. Advisory only; true duplicate safety is the
	// gateway's duplicate-reference rejection plus the conditional updates.
	if ord.Payment.InitiatedAt != nil &&
		(ord.Payment.Status == order.PaymentProcessing || ord.Payment.Status == order.PaymentPending) &&
		ord.Payment.AuthorizationURL != "" {
		elapsed := time.Since(*ord.Payment.InitiatedAt)
		if elapsed < s.cfg.Cooldown {
			retryAfter := int((s.cfg.Cooldown - elapsed).Seconds()) + 1
			return &InitiateResult{
				AuthorizationURL: ord.Payment.AuthorizationURL,
				AccessCode:       ord.Payment.AccessCode,
				Reference:        ord.Payment.Reference,
				Amount:           ord.Payment.Amount,
				Currency:         s.cfg.Currency,
				ExpiresAt:        ord.Payment.InitiatedAt.Add(s.cfg.CheckoutExpiry),
				RetryAfter:       &retryAfter,
			}, nil
		}
	}

	reference := fmt.Sprintf("%s-%d", ord.OrderRef, time.Now().UnixMilli())
	callbackURL := fmt.Sprintf("%s/order/payment-callback?order_id=%d&reference=%s", s.cfg.CallbackBaseURL, ord.ID, reference)

	checkout, err := s.gateway.InitializeCharge(ctx, &paystack.InitializeChargeRequest{
		Email:       email,
		Amount:      amount,
		Currency:    s.cfg.Currency,
		Reference:   reference,
		CallbackURL: callbackURL,
		Metadata: map[string]interface{}{
			"order_id":  ord.ID,
			"order_ref": ord.OrderRef,
			"client_id": clientID,
		},
	})
	if err != nil {
		s.logger.Error("charge initialization failed",
			zap.Int64("order_id", ord.ID),
			zap.String("reference", reference),
			zap.Int64("amount", amount),
			zap.Error(err))
		return nil, err
	}

	now := time.Now()
	txn := &ledger.FinancialTransaction{
		ID:       ulid.Make().String(),
		Type:     ledger.TypeClientPayment,
		Status:   ledger.StatusPending,
		ClientID: &clientID,
		OrderID:  &ord.ID,
		Amount:   ledger.Amount{Gross: amount, Net: amount, Currency: s.cfg.Currency},
		Gateway: ledger.GatewayInfo{
			Provider:  "paystack",
			Reference: reference,
		},
		Description: fmt.Sprintf("Payment for order %s", ord.OrderRef),
	}
	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	ok, err := s.orders.SetPaymentInitiated(ctx, ord.ID, order.InitiatePaymentFields{
		Method:           "card",
		Reference:        reference,
		Amount:           amount,
		AuthorizationURL: checkout.AuthorizationURL,
		AccessCode:       checkout.AccessCode,
		InitiatedAt:      now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("order %d status changed during initiation: %w", ord.ID, xerrors.ErrConflict)
	}

	s.logger.Info("payment initiated",
		zap.Int64("order_id", ord.ID),
		zap.String("reference", reference),
		zap.Int64("amount", amount))

	return &InitiateResult{
		AuthorizationURL: checkout.AuthorizationURL,
		AccessCode:       checkout.AccessCode,
		Reference:        reference,
		Amount:           amount,
		Currency:         s.cfg.Currency,
		ExpiresAt:        now.Add(s.cfg.CheckoutExpiry),
	}, nil
}

// Callback redirect reason codes carried on the deep link.
const (
	ReasonSuccess            = "success"
	ReasonAlreadyPaid        = "already_paid"
	ReasonPaymentFailed      = "payment_failed"
	ReasonAmountMismatch     = "amount_mismatch"
	ReasonOrderNotFound      = "order_not_found"
	ReasonVerificationFailed = "verification_failed"
)

// HandleCallback settles a checkout from the browser redirect. It always
// returns a deep link carrying a reason code; raw errors never reach the
// webview.
func (s *Service) HandleCallback(ctx context.Context, orderID int64, reference string) string {
	ord, err := s.orders.FindByIDAndReference(ctx, orderID, reference)
	if err != nil {
		s.logger.Warn("callback for unknown order/reference",
			zap.Int64("order_id", orderID),
			zap.String("reference", reference),
			zap.Error(err))
		return s.deepLink(orderID, ReasonOrderNotFound)
	}
	if ord.Payment.Status == order.PaymentPaid {
		return s.deepLink(orderID, ReasonAlreadyPaid)
	}

	verification, err := s.gateway.VerifyCharge(ctx, reference)
	if err != nil {
		s.logger.Error("callback charge verification failed",
			zap.Int64("order_id", orderID),
			zap.String("reference", reference),
			zap.Error(err))
		return s.deepLink(orderID, ReasonVerificationFailed)
	}
	if !verification.Success() {
		if _, err := s.failPayment(ctx, ord, verification.GatewayResponse); err != nil {
			s.logger.Error("callback payment failure record failed",
				zap.String("reference", reference),
				zap.Error(err))
		}
		return s.deepLink(orderID, ReasonPaymentFailed)
	}

	reason, err := s.settleVerifiedCharge(ctx, ord, verification)
	if err != nil {
		s.logger.Error("callback settlement failed",
			zap.Int64("order_id", orderID),
			zap.String("reference", reference),
			zap.Error(err))
		return s.deepLink(orderID, ReasonVerificationFailed)
	}
	return s.deepLink(orderID, reason)
}

func (s *Service) deepLink(orderID int64, reason string) string {
	return fmt.Sprintf("%s?order_id=%d&reason=%s", s.cfg.DeepLinkBase, orderID, reason)
}

// StatusResult is the poll response. Cached means the gateway could not be
// reached and the stored state was returned as-is.
type StatusResult struct {
	OrderID       int64               `json:"order_id"`
	PaymentStatus order.PaymentStatus `json:"payment_status"`
	OrderStatus   order.Status        `json:"order_status"`
	Amount        int64               `json:"amount"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	FailureReason *string             `json:"failure_reason,omitempty"`
	Cached        bool                `json:"cached,omitempty"`
}

// CheckPaymentStatus is the client poll path. Already-paid orders fast-path
// without a gateway call; gateway outages degrade to the cached state.
func (s *Service) CheckPaymentStatus(ctx context.Context, clientID, orderID int64, reference string) (*StatusResult, error) {
	ord, err := s.orders.FindByIDAndReference(ctx, orderID, reference)
	if err != nil {
		return nil, err
	}
	if ord.ClientID != clientID {
		return nil, fmt.Errorf("order %d does not belong to requester: %w", orderID, xerrors.ErrForbidden)
	}

	if ord.Payment.Status == order.PaymentPaid {
		return statusOf(ord, false), nil
	}

	verification, err := s.gateway.VerifyCharge(ctx, reference)
	if err != nil {
		s.logger.Warn("poll verification degraded to cached state",
			zap.Int64("order_id", orderID),
			zap.String("reference", reference),
			zap.Error(err))
		return statusOf(ord, true), nil
	}

	if verification.Success() {
		if _, err := s.settleVerifiedCharge(ctx, ord, verification); err != nil {
			return nil, err
		}
	} else if verification.Status == "failed" || verification.Status == "abandoned" {
		if _, err := s.failPayment(ctx, ord, verification.GatewayResponse); err != nil {
			return nil, err
		}
	}

	fresh, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return statusOf(fresh, false), nil
}

func statusOf(ord *order.Order, cached bool) *StatusResult {
	return &StatusResult{
		OrderID:       ord.ID,
		PaymentStatus: ord.Payment.Status,
		OrderStatus:   ord.Status,
		Amount:        ord.Payment.Amount,
		PaidAt:        ord.Payment.PaidAt,
		FailureReason: ord.Payment.FailureReason,
		Cached:        cached,
	}
}

// settleVerifiedCharge is the single completion path shared by callback,
// poll, and webhook. The amount gate runs before any write; the conditional
// completion makes concurrent invocations collapse to one credit and one
// notification pair.
func (s *Service) settleVerifiedCharge(ctx context.Context, ord *order.Order, v *paystack.ChargeVerification) (string, error) {
	if v.Amount != ord.Payment.Amount {
		s.logger.Error("verified amount does not match order",
			zap.Int64("order_id", ord.ID),
			zap.String("reference", ord.Payment.Reference),
			zap.Int64("verified_amount", v.Amount),
			zap.Int64("order_amount", ord.Payment.Amount))
		return ReasonAmountMismatch, fmt.Errorf("verified amount %d does not match order amount %d: %w", v.Amount, ord.Payment.Amount, xerrors.ErrValidation)
	}

	paidAt := parseGatewayTime(v.PaidAt)
	completion, err := s.store.CompleteClientPayment(ctx, ledger.CompletePaymentParams{
		OrderID:    ord.ID,
		Reference:  ord.Payment.Reference,
		AmountPaid: v.Amount,
		Fees:       v.Fees,
		PaidAt:     paidAt,
		Channel:    v.Channel,
	})
	if err != nil {
		return ReasonVerificationFailed, err
	}
	if completion.AlreadyCompleted {
		return ReasonAlreadyPaid, nil
	}

	s.logger.Info("payment completed",
		zap.Int64("order_id", ord.ID),
		zap.String("reference", ord.Payment.Reference),
		zap.Int64("amount", v.Amount))

	s.notifications.Notify(ctx, notifsvc.Event{
		IdentityID: ord.ClientID,
		Category:   notification.CategoryOrder,
		Type:       notification.TypeOrderCreated,
		OrderID:    &ord.ID,
		OrderRef:   ord.OrderRef,
	})
	s.notifications.Notify(ctx, notifsvc.Event{
		IdentityID: ord.ClientID,
		Category:   notification.CategoryPayment,
		Type:       notification.TypePaymentSuccessful,
		OrderID:    &ord.ID,
		OrderRef:   ord.OrderRef,
		Amount:     v.Amount,
		Currency:   s.cfg.Currency,
	})
	return ReasonSuccess, nil
}

// failPayment conditionally fails the transaction and order. Completed
// references stay completed; the failure is then a stale event.
func (s *Service) failPayment(ctx context.Context, ord *order.Order, reason string) (bool, error) {
	if reason == "" {
		reason = "payment was not successful"
	}
	matched, err := s.store.FailClientPayment(ctx, ord.Payment.Reference, reason)
	if err != nil {
		return false, err
	}
	if !matched {
		return false, nil
	}

	s.logger.Info("payment failed",
		zap.Int64("order_id", ord.ID),
		zap.String("reference", ord.Payment.Reference),
		zap.String("reason", reason))

	s.notifications.Notify(ctx, notifsvc.Event{
		IdentityID: ord.ClientID,
		Category:   notification.CategoryPayment,
		Type:       notification.TypePaymentFailed,
		OrderID:    &ord.ID,
		OrderRef:   ord.OrderRef,
		Reason:     reason,
	})
	return true, nil
}

// RequestRefund flips a paid order to refund_requested within the refund
// window. The gateway refund call itself is a manual back-office step.
func (s *Service) RequestRefund(ctx context.Context, clientID, orderID int64, reason string) error {
	ord, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if ord.ClientID != clientID {
		return fmt.Errorf("order %d does not belong to requester: %w", orderID, xerrors.ErrForbidden)
	}
	if ord.Payment.Status != order.PaymentPaid || ord.Payment.PaidAt == nil {
		return fmt.Errorf("order %d is not refundable: %w", orderID, xerrors.ErrConflict)
	}
	if time.Since(*ord.Payment.PaidAt) > s.cfg.RefundWindow {
		return fmt.Errorf("refund window for order %d has closed: %w", orderID, xerrors.ErrValidation)
	}

	ok, err := s.orders.MarkRefundRequested(ctx, orderID, reason)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("order %d payment status changed: %w", orderID, xerrors.ErrConflict)
	}
	if err := s.orders.AppendTracking(ctx, orderID, "refund_requested", reason); err != nil {
		s.logger.Error("refund tracking append failed", zap.Int64("order_id", orderID), zap.Error(err))
	}

	s.notifications.Notify(ctx, notifsvc.Event{
		IdentityID: ord.ClientID,
		Category:   notification.CategoryPayment,
		Type:       notification.TypeRefundRequested,
		OrderID:    &ord.ID,
		OrderRef:   ord.OrderRef,
		Reason:     reason,
	})
	return nil
}

// parseGatewayTime tolerates the gateway's timestamp formats; a blank or
// unparseable value falls back to now.
func parseGatewayTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now()
}
