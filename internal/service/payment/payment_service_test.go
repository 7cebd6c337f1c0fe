// internal/service/payment/payment_service_test.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cargolink-service/internal/domain/earnings"
	"cargolink-service/internal/domain/ledger"
	"cargolink-service/internal/domain/notification"
	"cargolink-service/internal/domain/order"
	"cargolink-service/internal/gateway/paystack"
	xerrors "cargolink-service/internal/pkg/errors"
	notifsvc "cargolink-service/internal/service/notification"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// fakeOrderRepo is an in-memory order.Repository honoring the same conditional
// write semantics as the Postgres repository.
type fakeOrderRepo struct {
	mu       sync.Mutex
	orders   map[int64]*order.Order
	tracking []order.TrackingEntry
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[int64]*order.Order)}
}

func (f *fakeOrderRepo) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ord, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, xerrors.ErrNotFound)
	}
	copied := *ord
	return &copied, nil
}

func (f *fakeOrderRepo) FindByIDAndReference(ctx context.Context, id int64, reference string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ord, ok := f.orders[id]
	if !ok || ord.Payment.Reference != reference {
		return nil, fmt.Errorf("order %d with reference %s: %w", id, reference, xerrors.ErrNotFound)
	}
	copied := *ord
	return &copied, nil
}

func (f *fakeOrderRepo) FindByReference(ctx context.Context, reference string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ord := range f.orders {
		if ord.Payment.Reference == reference {
			copied := *ord
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("order with reference %s: %w", reference, xerrors.ErrNotFound)
}

func (f *fakeOrderRepo) SetPaymentInitiated(ctx context.Context, orderID int64, fields order.InitiatePaymentFields) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ord, ok := f.orders[orderID]
	if !ok || ord.Status != order.StatusDraft {
		return false, nil
	}
	initiatedAt := fields.InitiatedAt
	ord.Payment = order.Payment{
		Method:           fields.Method,
		Status:           order.PaymentProcessing,
		Reference:        fields.Reference,
		Amount:           fields.Amount,
		AuthorizationURL: fields.AuthorizationURL,
		AccessCode:       fields.AccessCode,
		InitiatedAt:      &initiatedAt,
	}
	return true, nil
}

func (f *fakeOrderRepo) MarkRefundRequested(ctx context.Context, orderID int64, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ord, ok := f.orders[orderID]
	if !ok || ord.Payment.Status != order.PaymentPaid {
		return false, nil
	}
	ord.Payment.Status = order.PaymentRefundRequested
	return true, nil
}

func (f *fakeOrderRepo) MarkDelivered(ctx context.Context, orderID, driverID int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ord, ok := f.orders[orderID]
	if !ok || ord.Status != order.StatusInTransit || ord.DriverID == nil || *ord.DriverID != driverID {
		return false, nil
	}
	ord.Status = order.StatusDelivered
	ord.DeliveredAt = &at
	return true, nil
}

func (f *fakeOrderRepo) AppendTracking(ctx context.Context, orderID int64, event, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracking = append(f.tracking, order.TrackingEntry{OrderID: orderID, Event: event, Note: note})
	return nil
}

func (f *fakeOrderRepo) TrackingHistory(ctx context.Context, orderID int64) ([]order.TrackingEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []order.TrackingEntry
	for _, entry := range f.tracking {
		if entry.OrderID == orderID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// fakePaymentStore implements the payment slice of ledger.Store. Completion
// and failure flip the backing order the way the Postgres transaction does.
type fakePaymentStore struct {
	mu          sync.Mutex
	txns        map[string]*ledger.FinancialTransaction
	orders      *fakeOrderRepo
	completions int32
}

func newFakePaymentStore(orders *fakeOrderRepo) *fakePaymentStore {
	return &fakePaymentStore{
		txns:   make(map[string]*ledger.FinancialTransaction),
		orders: orders,
	}
}

func (f *fakePaymentStore) CreateTransaction(ctx context.Context, txn *ledger.FinancialTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if txn.ID == "" {
		txn.ID = ulid.Make().String()
	}
	f.txns[txn.Gateway.Reference] = txn
	return nil
}

func (f *fakePaymentStore) TransactionByReference(ctx context.Context, reference string) (*ledger.FinancialTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[reference]
	if !ok {
		return nil, fmt.Errorf("transaction: %w", xerrors.ErrNotFound)
	}
	return txn, nil
}

func (f *fakePaymentStore) TransactionByID(ctx context.Context, id string) (*ledger.FinancialTransaction, error) {
	return nil, errors.New("not used in payment tests")
}

func (f *fakePaymentStore) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.txns[reference]
	return ok, nil
}

func (f *fakePaymentStore) CompleteClientPayment(ctx context.Context, p ledger.CompletePaymentParams) (*ledger.PaymentCompletion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[p.Reference]
	if !ok {
		return nil, fmt.Errorf("transaction: %w", xerrors.ErrNotFound)
	}
	// Conditional flip. A late success may overwrite a recorded failure, but
	// never another completion.
	switch txn.Status {
	case ledger.StatusPending, ledger.StatusProcessing, ledger.StatusFailed:
	case ledger.StatusCompleted:
		return &ledger.PaymentCompletion{AlreadyCompleted: true, Transaction: txn}, nil
	default:
		return nil, fmt.Errorf("transaction %s is %s: %w", p.Reference, txn.Status, xerrors.ErrConflict)
	}
	txn.Status = ledger.StatusCompleted
	txn.Amount.Fees = p.Fees
	txn.Amount.Net = p.AmountPaid - p.Fees
	atomic.AddInt32(&f.completions, 1)

	f.orders.mu.Lock()
	ord := f.orders.orders[p.OrderID]
	ord.Status = order.StatusSubmitted
	ord.Payment.Status = order.PaymentPaid
	paidAt := p.PaidAt
	ord.Payment.PaidAt = &paidAt
	ord.Pricing.References.PaymentTransactionID = txn.ID
	ord.Pricing.References.DriverEarningTransactionID = ulid.Make().String()
	ord.Pricing.References.PlatformRevenueTransactionID = ulid.Make().String()
	earningID := ord.Pricing.References.DriverEarningTransactionID
	revenueID := ord.Pricing.References.PlatformRevenueTransactionID
	f.orders.mu.Unlock()

	return &ledger.PaymentCompletion{
		Transaction:                  txn,
		DriverEarningTransactionID:   earningID,
		PlatformRevenueTransactionID: revenueID,
	}, nil
}

func (f *fakePaymentStore) FailClientPayment(ctx context.Context, reference, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[reference]
	if !ok {
		return false, nil
	}
	if txn.Status != ledger.StatusPending && txn.Status != ledger.StatusProcessing {
		return false, nil
	}
	txn.Status = ledger.StatusFailed
	txn.FailureReason = &reason

	f.orders.mu.Lock()
	if txn.OrderID != nil {
		if ord, ok := f.orders.orders[*txn.OrderID]; ok {
			ord.Payment.Status = order.PaymentFailed
			ord.Payment.FailureReason = &reason
		}
	}
	f.orders.mu.Unlock()
	return true, nil
}

func (f *fakePaymentStore) LockPayoutFunds(ctx context.Context, p ledger.LockFundsParams) error {
	return errors.New("not used in payment tests")
}

func (f *fakePaymentStore) SettleTransferSuccess(ctx context.Context, reference string) (*ledger.TransferSettlement, error) {
	return nil, errors.New("not used in payment tests")
}

func (f *fakePaymentStore) SettleTransferFailure(ctx context.Context, reference string, toStatus ledger.TransactionStatus, reason string) (*ledger.TransferSettlement, error) {
	return nil, errors.New("not used in payment tests")
}

func (f *fakePaymentStore) DistributeOrderRevenue(ctx context.Context, p ledger.DistributeParams) (*ledger.Distribution, error) {
	return nil, errors.New("not used in payment tests")
}

func (f *fakePaymentStore) CompleteWalletDeposit(ctx context.Context, reference string, fees int64, paidAt time.Time) (*ledger.DepositCompletion, error) {
	return nil, errors.New("not used in payment tests")
}

func (f *fakePaymentStore) PendingTransfers(ctx context.Context, driverID int64) ([]earnings.PendingTransfer, error) {
	return nil, errors.New("not used in payment tests")
}

func (f *fakePaymentStore) StalePendingTransfers(ctx context.Context, cutoff time.Time) ([]earnings.PendingTransfer, error) {
	return nil, errors.New("not used in payment tests")
}

func (f *fakePaymentStore) RecentTransactions(ctx context.Context, clientID int64, limit int) ([]ledger.FinancialTransaction, error) {
	return nil, errors.New("not used in payment tests")
}

// fakeNotifRepo counts created notifications and honors the dedupe check.
type fakeNotifRepo struct {
	mu      sync.Mutex
	created []notification.Notification
}

func (f *fakeNotifRepo) Create(ctx context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *n)
	return nil
}

func (f *fakeNotifRepo) ExistsSimilar(ctx context.Context, identityID int64, category notification.Category, typ string, orderID *int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.created {
		if n.IdentityID == identityID && n.Category == category && n.Type == typ {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotifRepo) List(ctx context.Context, identityID int64, filters *notification.ListFilters) ([]notification.Notification, int64, error) {
	return nil, 0, nil
}

func (f *fakeNotifRepo) MarkAsRead(ctx context.Context, id, identityID int64) error { return nil }

func (f *fakeNotifRepo) UnreadCount(ctx context.Context, identityID int64) (int, error) {
	return 0, nil
}

func (f *fakeNotifRepo) countByType(typ string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.created {
		if n.Type == typ {
			count++
		}
	}
	return count
}

// gatewayStub serves the Paystack endpoints the payment flow touches.
type gatewayStub struct {
	mu         sync.Mutex
	verify     map[string]paystack.ChargeVerification
	verifyDown bool
	initCalls  int32
}

func (g *gatewayStub) setVerification(reference string, v paystack.ChargeVerification) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verify == nil {
		g.verify = make(map[string]paystack.ChargeVerification)
	}
	g.verify[reference] = v
}

func (g *gatewayStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/transaction/initialize", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&g.initCalls, 1)
		var req paystack.InitializeChargeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeEnvelope(w, paystack.InitializeChargeResponse{
			AuthorizationURL: "https://checkout.example/" + req.Reference,
			AccessCode:       "AC_" + req.Reference,
			Reference:        req.Reference,
		})
	})
	mux.HandleFunc("/transaction/verify/", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		down := g.verifyDown
		ref := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
		v, ok := g.verify[ref]
		g.mu.Unlock()
		if down {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !ok {
			v = paystack.ChargeVerification{Status: "pending"}
		}
		writeEnvelope(w, v)
	})
	return mux
}

func writeEnvelope(w http.ResponseWriter, data interface{}) {
	raw, _ := json.Marshal(data)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  true,
		"message": "ok",
		"data":    json.RawMessage(raw),
	})
}

// ---- harness ----

type paymentFixture struct {
	svc    *Service
	orders *fakeOrderRepo
	store  *fakePaymentStore
	gw     *gatewayStub
	notifs *fakeNotifRepo
	ctx    context.Context
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	gw := &gatewayStub{}
	server := httptest.NewServer(gw.handler())
	t.Cleanup(server.Close)

	orders := newFakeOrderRepo()
	store := newFakePaymentStore(orders)
	notifs := &fakeNotifRepo{}
	notifService := notifsvc.NewService(notifs, nil, zap.NewNop())
	client := paystack.NewClient(server.URL, "sk_test_x", time.Second, zap.NewNop())

	svc := NewService(Config{
		Currency:        "NGN",
		CallbackBaseURL: "https://api.example/api/v1",
		DeepLinkBase:    "cargolink://payment-result",
		Cooldown:        2 * time.Minute,
		CheckoutExpiry:  30 * time.Minute,
		RefundWindow:    24 * time.Hour,
	}, orders, store, client, notifService, zap.NewNop())

	return &paymentFixture{svc: svc, orders: orders, store: store, gw: gw, notifs: notifs, ctx: context.Background()}
}

func (fx *paymentFixture) seedDraftOrder(id, clientID, total int64) *order.Order {
	ord := &order.Order{
		ID:       id,
		OrderRef: fmt.Sprintf("ORD-2026-%06d", id),
		ClientID: clientID,
		Status:   order.StatusDraft,
		Pricing:  order.Pricing{Total: total, DriverShare: total * 80 / 100, PlatformShare: total * 20 / 100},
	}
	fx.orders.mu.Lock()
	fx.orders.orders[id] = ord
	fx.orders.mu.Unlock()
	return ord
}

// initiate seeds a draft order and runs checkout initiation.
func (fx *paymentFixture) initiate(t *testing.T, id, clientID, total int64) *InitiateResult {
	t.Helper()
	fx.seedDraftOrder(id, clientID, total)
	result, err := fx.svc.InitiatePayment(fx.ctx, clientID, id, total, "client@example.com")
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	return result
}

func TestInitiatePaymentCreatesCheckout(t *testing.T) {
	fx := newPaymentFixture(t)

	result := fx.initiate(t, 11, 5, 250_000)

	ord, _ := fx.orders.FindByID(fx.ctx, 11)
	if !strings.HasPrefix(result.Reference, ord.OrderRef+"-") {
		t.Errorf("reference %q not derived from order ref %q", result.Reference, ord.OrderRef)
	}
	if result.AuthorizationURL == "" || result.AccessCode == "" {
		t.Errorf("checkout handle incomplete: %+v", result)
	}
	if ord.Payment.Status != order.PaymentProcessing {
		t.Errorf("payment status = %s, want processing", ord.Payment.Status)
	}

	txn, err := fx.store.TransactionByReference(fx.ctx, result.Reference)
	if err != nil {
		t.Fatalf("pending transaction not recorded: %v", err)
	}
	if txn.Status != ledger.StatusPending || txn.Amount.Gross != 250_000 {
		t.Errorf("transaction = %s/%d, want pending/250000", txn.Status, txn.Amount.Gross)
	}
}

func TestInitiatePaymentCooldownReturnsExistingCheckout(t *testing.T) {
	fx := newPaymentFixture(t)

	first := fx.initiate(t, 11, 5, 250_000)

	// A repeat within the cooldown must not open a second checkout. The order
	// is no longer a draft, so the cooldown branch is the only success path.
	second, err := fx.svc.InitiatePayment(fx.ctx, 5, 11, 250_000, "client@example.com")
	if err != nil {
		t.Fatalf("repeat InitiatePayment: %v", err)
	}
	if second.Reference != first.Reference {
		t.Errorf("repeat returned new reference %q, want %q", second.Reference, first.Reference)
	}
	if second.AuthorizationURL != first.AuthorizationURL {
		t.Errorf("repeat returned new checkout URL")
	}
	if second.RetryAfter == nil || *second.RetryAfter <= 0 {
		t.Errorf("RetryAfter not set on throttled repeat")
	}
	if calls := atomic.LoadInt32(&fx.gw.initCalls); calls != 1 {
		t.Errorf("gateway initialize calls = %d, want 1", calls)
	}
}

func TestInitiatePaymentRejectsAmountMismatch(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.seedDraftOrder(11, 5, 250_000)

	_, err := fx.svc.InitiatePayment(fx.ctx, 5, 11, 249_999, "client@example.com")
	if !errors.Is(err, xerrors.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestInitiatePaymentRejectsForeignOrder(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.seedDraftOrder(11, 5, 250_000)

	_, err := fx.svc.InitiatePayment(fx.ctx, 6, 11, 250_000, "other@example.com")
	if !errors.Is(err, xerrors.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestConcurrentPollsCompleteOnce(t *testing.T) {
	fx := newPaymentFixture(t)
	result := fx.initiate(t, 11, 5, 250_000)

	fx.gw.setVerification(result.Reference, paystack.ChargeVerification{
		Status: "success", Amount: 250_000, Fees: 3_750,
		PaidAt: "2026-09-01T10:00:00Z", Channel: "card",
	})

	const pollers = 8
	var wg sync.WaitGroup
	errs := make(chan error, pollers)
	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := fx.svc.CheckPaymentStatus(fx.ctx, 5, 11, result.Reference)
			if err != nil {
				errs <- err
				return
			}
			if status.PaymentStatus != order.PaymentPaid {
				errs <- fmt.Errorf("payment status = %s, want paid", status.PaymentStatus)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if n := atomic.LoadInt32(&fx.store.completions); n != 1 {
		t.Errorf("completions = %d, want exactly 1", n)
	}
	if got := fx.notifs.countByType(notification.TypePaymentSuccessful); got != 1 {
		t.Errorf("payment.successful notifications = %d, want 1", got)
	}
	if got := fx.notifs.countByType(notification.TypeOrderCreated); got != 1 {
		t.Errorf("order.created notifications = %d, want 1", got)
	}

	ord, _ := fx.orders.FindByID(fx.ctx, 11)
	if ord.Status != order.StatusSubmitted {
		t.Errorf("order status = %s, want submitted", ord.Status)
	}
	refs := ord.Pricing.References
	if refs.PaymentTransactionID == "" || refs.DriverEarningTransactionID == "" || refs.PlatformRevenueTransactionID == "" {
		t.Errorf("financial references incomplete: %+v", refs)
	}
}

func TestCallbackReturnsDeepLinkReasons(t *testing.T) {
	fx := newPaymentFixture(t)
	result := fx.initiate(t, 11, 5, 250_000)

	// Unknown order id.
	if link := fx.svc.HandleCallback(fx.ctx, 999, result.Reference); !strings.Contains(link, "reason="+ReasonOrderNotFound) {
		t.Errorf("unknown order link = %q", link)
	}

	// Failed charge.
	fx.gw.setVerification(result.Reference, paystack.ChargeVerification{
		Status: "failed", GatewayResponse: "Declined",
	})
	if link := fx.svc.HandleCallback(fx.ctx, 11, result.Reference); !strings.Contains(link, "reason="+ReasonPaymentFailed) {
		t.Errorf("failed charge link = %q", link)
	}
	ord, _ := fx.orders.FindByID(fx.ctx, 11)
	if ord.Payment.Status != order.PaymentFailed {
		t.Errorf("payment status = %s, want failed", ord.Payment.Status)
	}

	// Late success after the recorded failure still completes.
	fx.gw.setVerification(result.Reference, paystack.ChargeVerification{
		Status: "success", Amount: 250_000, Fees: 3_750, PaidAt: "2026-09-01T10:00:00Z",
	})
	if link := fx.svc.HandleCallback(fx.ctx, 11, result.Reference); !strings.Contains(link, "reason="+ReasonSuccess) {
		t.Errorf("success link = %q", link)
	}

	// Replay after completion.
	if link := fx.svc.HandleCallback(fx.ctx, 11, result.Reference); !strings.Contains(link, "reason="+ReasonAlreadyPaid) {
		t.Errorf("replay link = %q", link)
	}
}

func TestFailureEventAfterSuccessIsStale(t *testing.T) {
	fx := newPaymentFixture(t)
	result := fx.initiate(t, 11, 5, 250_000)

	fx.gw.setVerification(result.Reference, paystack.ChargeVerification{
		Status: "success", Amount: 250_000, Fees: 3_750, PaidAt: "2026-09-01T10:00:00Z",
	})
	if _, err := fx.svc.CheckPaymentStatus(fx.ctx, 5, 11, result.Reference); err != nil {
		t.Fatalf("CheckPaymentStatus: %v", err)
	}

	err := fx.svc.HandleChargeWebhook(fx.ctx, &paystack.WebhookEvent{
		Event: paystack.EventChargeFailed,
		Data:  paystack.WebhookEventData{Reference: result.Reference, GatewayResponse: "Declined"},
	})
	if err != nil {
		t.Fatalf("HandleChargeWebhook: %v", err)
	}

	ord, _ := fx.orders.FindByID(fx.ctx, 11)
	if ord.Payment.Status != order.PaymentPaid {
		t.Errorf("late failure overwrote a completed payment: %s", ord.Payment.Status)
	}
	if got := fx.notifs.countByType(notification.TypePaymentFailed); got != 0 {
		t.Errorf("payment.failed notifications = %d, want 0", got)
	}
}

func TestWebhookSuccessRequiresVerification(t *testing.T) {
	fx := newPaymentFixture(t)
	result := fx.initiate(t, 11, 5, 250_000)

	// The webhook claims success but the gateway says pending; nothing moves.
	err := fx.svc.HandleChargeWebhook(fx.ctx, &paystack.WebhookEvent{
		Event: paystack.EventChargeSuccess,
		Data:  paystack.WebhookEventData{Reference: result.Reference, Amount: 250_000},
	})
	if err != nil {
		t.Fatalf("HandleChargeWebhook: %v", err)
	}
	if n := atomic.LoadInt32(&fx.store.completions); n != 0 {
		t.Errorf("completion ran on unverified webhook")
	}
}

func TestWebhookUnknownReferenceIsAcked(t *testing.T) {
	fx := newPaymentFixture(t)

	err := fx.svc.HandleChargeWebhook(fx.ctx, &paystack.WebhookEvent{
		Event: paystack.EventChargeSuccess,
		Data:  paystack.WebhookEventData{Reference: "ORD-2026-999999-1756723200000"},
	})
	if err != nil {
		t.Fatalf("unknown reference should be acked, got %v", err)
	}
}

func TestSettlementRejectsAmountMismatch(t *testing.T) {
	fx := newPaymentFixture(t)
	result := fx.initiate(t, 11, 5, 250_000)

	// Gateway-confirmed amount below the order total must never credit.
	fx.gw.setVerification(result.Reference, paystack.ChargeVerification{
		Status: "success", Amount: 100, Fees: 2, PaidAt: "2026-09-01T10:00:00Z",
	})
	_, err := fx.svc.CheckPaymentStatus(fx.ctx, 5, 11, result.Reference)
	if !errors.Is(err, xerrors.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if n := atomic.LoadInt32(&fx.store.completions); n != 0 {
		t.Errorf("completion ran despite amount mismatch")
	}
}

func TestPollDegradesToCachedStateOnOutage(t *testing.T) {
	fx := newPaymentFixture(t)
	result := fx.initiate(t, 11, 5, 250_000)

	fx.gw.mu.Lock()
	fx.gw.verifyDown = true
	fx.gw.mu.Unlock()

	status, err := fx.svc.CheckPaymentStatus(fx.ctx, 5, 11, result.Reference)
	if err != nil {
		t.Fatalf("poll should degrade, got %v", err)
	}
	if !status.Cached {
		t.Errorf("Cached flag not set on degraded poll")
	}
	if status.PaymentStatus != order.PaymentProcessing {
		t.Errorf("payment status = %s, want processing from cache", status.PaymentStatus)
	}
}

func TestRefundWindowEnforced(t *testing.T) {
	fx := newPaymentFixture(t)
	result := fx.initiate(t, 11, 5, 250_000)

	fx.gw.setVerification(result.Reference, paystack.ChargeVerification{
		Status: "success", Amount: 250_000, Fees: 3_750, PaidAt: "2026-09-01T10:00:00Z",
	})
	if _, err := fx.svc.CheckPaymentStatus(fx.ctx, 5, 11, result.Reference); err != nil {
		t.Fatalf("CheckPaymentStatus: %v", err)
	}

	// Age the payment past the 24h window.
	fx.orders.mu.Lock()
	old := time.Now().Add(-48 * time.Hour)
	fx.orders.orders[11].Payment.PaidAt = &old
	fx.orders.mu.Unlock()

	err := fx.svc.RequestRefund(fx.ctx, 5, 11, "changed my mind")
	if !errors.Is(err, xerrors.ErrValidation) {
		t.Fatalf("stale refund err = %v, want ErrValidation", err)
	}

	fx.orders.mu.Lock()
	recent := time.Now().Add(-time.Hour)
	fx.orders.orders[11].Payment.PaidAt = &recent
	fx.orders.mu.Unlock()

	if err := fx.svc.RequestRefund(fx.ctx, 5, 11, "changed my mind"); err != nil {
		t.Fatalf("RequestRefund: %v", err)
	}
	ord, _ := fx.orders.FindByID(fx.ctx, 11)
	if ord.Payment.Status != order.PaymentRefundRequested {
		t.Errorf("payment status = %s, want refund_requested", ord.Payment.Status)
	}
}
