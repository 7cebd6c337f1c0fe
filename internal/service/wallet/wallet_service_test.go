// internal/service/wallet/wallet_service_test.go
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cargolink-service/internal/domain/earnings"
	"cargolink-service/internal/domain/ledger"
	"cargolink-service/internal/domain/notification"
	"cargolink-service/internal/domain/wallet"
	"cargolink-service/internal/gateway/paystack"
	xerrors "cargolink-service/internal/pkg/errors"
	"cargolink-service/internal/pkg/reference"
	notifsvc "cargolink-service/internal/service/notification"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// fakeWalletStore implements the wallet slice of ledger.Store in memory.
type fakeWalletStore struct {
	mu       sync.Mutex
	txns     map[string]*ledger.FinancialTransaction
	balances map[int64]int64
}

func newFakeWalletStore() *fakeWalletStore {
	return &fakeWalletStore{
		txns:     make(map[string]*ledger.FinancialTransaction),
		balances: make(map[int64]int64),
	}
}

func (f *fakeWalletStore) CreateTransaction(ctx context.Context, txn *ledger.FinancialTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if txn.ID == "" {
		txn.ID = ulid.Make().String()
	}
	f.txns[txn.Gateway.Reference] = txn
	return nil
}

func (f *fakeWalletStore) TransactionByReference(ctx context.Context, ref string) (*ledger.FinancialTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[ref]
	if !ok {
		return nil, fmt.Errorf("transaction: %w", xerrors.ErrNotFound)
	}
	copied := *txn
	return &copied, nil
}

func (f *fakeWalletStore) TransactionByID(ctx context.Context, id string) (*ledger.FinancialTransaction, error) {
	return nil, errors.New("not used in wallet tests")
}

func (f *fakeWalletStore) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.txns[ref]
	return ok, nil
}

func (f *fakeWalletStore) CompleteWalletDeposit(ctx context.Context, ref string, fees int64, paidAt time.Time) (*ledger.DepositCompletion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[ref]
	if !ok {
		return nil, fmt.Errorf("transaction: %w", xerrors.ErrNotFound)
	}
	if txn.Status == ledger.StatusCompleted {
		return &ledger.DepositCompletion{AlreadyCompleted: true, Transaction: txn}, nil
	}
	txn.Status = ledger.StatusCompleted
	txn.Amount.Fees = fees
	txn.Amount.Net = txn.Amount.Gross - fees
	f.balances[*txn.ClientID] += txn.Amount.Gross
	return &ledger.DepositCompletion{
		Transaction: txn,
		NewBalance:  f.balances[*txn.ClientID],
	}, nil
}

func (f *fakeWalletStore) CompleteClientPayment(ctx context.Context, p ledger.CompletePaymentParams) (*ledger.PaymentCompletion, error) {
	return nil, errors.New("not used in wallet tests")
}

func (f *fakeWalletStore) FailClientPayment(ctx context.Context, reference, reason string) (bool, error) {
	return false, errors.New("not used in wallet tests")
}

func (f *fakeWalletStore) LockPayoutFunds(ctx context.Context, p ledger.LockFundsParams) error {
	return errors.New("not used in wallet tests")
}

func (f *fakeWalletStore) SettleTransferSuccess(ctx context.Context, reference string) (*ledger.TransferSettlement, error) {
	return nil, errors.New("not used in wallet tests")
}

func (f *fakeWalletStore) SettleTransferFailure(ctx context.Context, reference string, toStatus ledger.TransactionStatus, reason string) (*ledger.TransferSettlement, error) {
	return nil, errors.New("not used in wallet tests")
}

func (f *fakeWalletStore) DistributeOrderRevenue(ctx context.Context, p ledger.DistributeParams) (*ledger.Distribution, error) {
	return nil, errors.New("not used in wallet tests")
}

func (f *fakeWalletStore) PendingTransfers(ctx context.Context, driverID int64) ([]earnings.PendingTransfer, error) {
	return nil, errors.New("not used in wallet tests")
}

func (f *fakeWalletStore) StalePendingTransfers(ctx context.Context, cutoff time.Time) ([]earnings.PendingTransfer, error) {
	return nil, errors.New("not used in wallet tests")
}

func (f *fakeWalletStore) RecentTransactions(ctx context.Context, clientID int64, limit int) ([]ledger.FinancialTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ledger.FinancialTransaction
	for _, txn := range f.txns {
		if txn.ClientID != nil && *txn.ClientID == clientID {
			out = append(out, *txn)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeWalletRepo serves wallet reads.
type fakeWalletRepo struct {
	mu      sync.Mutex
	wallets map[int64]*wallet.ClientWallet
}

func (f *fakeWalletRepo) FindByClientID(ctx context.Context, clientID int64) (*wallet.ClientWallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallets[clientID]
	if !ok {
		return nil, fmt.Errorf("wallet for client %d: %w", clientID, xerrors.ErrNotFound)
	}
	copied := *w
	return &copied, nil
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

// depositGateway serves the charge endpoints a deposit flow touches.
type depositGateway struct {
	mu     sync.Mutex
	verify map[string]paystack.ChargeVerification
}

func (g *depositGateway) setVerification(ref string, v paystack.ChargeVerification) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verify == nil {
		g.verify = make(map[string]paystack.ChargeVerification)
	}
	g.verify[ref] = v
}

func (g *depositGateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/transaction/initialize", func(w http.ResponseWriter, r *http.Request) {
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
		ref := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
		v, ok := g.verify[ref]
		g.mu.Unlock()
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

type walletFixture struct {
	svc    *Service
	store  *fakeWalletStore
	repo   *fakeWalletRepo
	gw     *depositGateway
	notifs *fakeNotifRepo
	ctx    context.Context
}

func newWalletFixture(t *testing.T) *walletFixture {
	t.Helper()

	gw := &depositGateway{}
	server := httptest.NewServer(gw.handler())
	t.Cleanup(server.Close)

	store := newFakeWalletStore()
	repo := &fakeWalletRepo{wallets: make(map[int64]*wallet.ClientWallet)}
	notifs := &fakeNotifRepo{}
	client := paystack.NewClient(server.URL, "sk_test_x", time.Second, zap.NewNop())

	svc := NewService(Config{Currency: "NGN", CallbackBaseURL: "https://api.example/api/v1"},
		repo, store, client, notifsvc.NewService(notifs, nil, zap.NewNop()), zap.NewNop())

	return &walletFixture{svc: svc, store: store, repo: repo, gw: gw, notifs: notifs, ctx: context.Background()}
}

func TestInitiateDepositRecordsPendingTransaction(t *testing.T) {
	fx := newWalletFixture(t)

	result, err := fx.svc.InitiateDeposit(fx.ctx, 5, 100_000, "client@example.com")
	if err != nil {
		t.Fatalf("InitiateDeposit: %v", err)
	}
	if !reference.IsValidTransactionReference(result.Reference) {
		t.Errorf("reference %q is not a transaction reference", result.Reference)
	}

	txn, err := fx.store.TransactionByReference(fx.ctx, result.Reference)
	if err != nil {
		t.Fatalf("pending transaction not recorded: %v", err)
	}
	if txn.Type != ledger.TypeWalletDeposit || txn.Status != ledger.StatusPending {
		t.Errorf("transaction = %s/%s, want wallet_deposit/pending", txn.Type, txn.Status)
	}
}

func TestInitiateDepositRejectsNonPositiveAmount(t *testing.T) {
	fx := newWalletFixture(t)

	for _, amount := range []int64{0, -100} {
		_, err := fx.svc.InitiateDeposit(fx.ctx, 5, amount, "client@example.com")
		if !errors.Is(err, xerrors.ErrValidation) {
			t.Errorf("InitiateDeposit(%d) = %v, want ErrValidation", amount, err)
		}
	}
}

func TestSettleDepositCreditsOnce(t *testing.T) {
	fx := newWalletFixture(t)

	result, err := fx.svc.InitiateDeposit(fx.ctx, 5, 100_000, "client@example.com")
	if err != nil {
		t.Fatalf("InitiateDeposit: %v", err)
	}
	fx.gw.setVerification(result.Reference, paystack.ChargeVerification{
		Status: "success", Amount: 100_000, Fees: 1_500, PaidAt: "2026-09-01T10:00:00Z",
	})

	// Callback, poll, and webhook all race to settle the same reference.
	for i := 0; i < 3; i++ {
		if err := fx.svc.SettleDeposit(fx.ctx, result.Reference); err != nil {
			t.Fatalf("settle %d: %v", i+1, err)
		}
	}

	fx.store.mu.Lock()
	balance := fx.store.balances[5]
	fx.store.mu.Unlock()
	if balance != 100_000 {
		t.Errorf("balance = %d, want a single 100000 credit", balance)
	}

	fx.notifs.mu.Lock()
	deposits := 0
	for _, n := range fx.notifs.created {
		if n.Type == notification.TypeDepositSuccessful {
			deposits++
		}
	}
	fx.notifs.mu.Unlock()
	if deposits != 1 {
		t.Errorf("deposit notifications = %d, want 1", deposits)
	}
}

func TestSettleDepositRejectsAmountMismatch(t *testing.T) {
	fx := newWalletFixture(t)

	result, err := fx.svc.InitiateDeposit(fx.ctx, 5, 100_000, "client@example.com")
	if err != nil {
		t.Fatalf("InitiateDeposit: %v", err)
	}
	fx.gw.setVerification(result.Reference, paystack.ChargeVerification{
		Status: "success", Amount: 50_000, Fees: 750, PaidAt: "2026-09-01T10:00:00Z",
	})

	if err := fx.svc.SettleDeposit(fx.ctx, result.Reference); !errors.Is(err, xerrors.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	fx.store.mu.Lock()
	balance := fx.store.balances[5]
	fx.store.mu.Unlock()
	if balance != 0 {
		t.Errorf("balance = %d after mismatched deposit, want 0", balance)
	}
}

func TestSettleDepositLeavesUnsettledChargeAlone(t *testing.T) {
	fx := newWalletFixture(t)

	result, err := fx.svc.InitiateDeposit(fx.ctx, 5, 100_000, "client@example.com")
	if err != nil {
		t.Fatalf("InitiateDeposit: %v", err)
	}
	// Verification still pending; the deposit stays pending and can settle
	// later.
	if err := fx.svc.SettleDeposit(fx.ctx, result.Reference); err != nil {
		t.Fatalf("SettleDeposit: %v", err)
	}

	txn, _ := fx.store.TransactionByReference(fx.ctx, result.Reference)
	if txn.Status != ledger.StatusPending {
		t.Errorf("transaction status = %s, want pending", txn.Status)
	}
}

func TestSummaryZeroedForNewClient(t *testing.T) {
	fx := newWalletFixture(t)

	summary, err := fx.svc.Summary(fx.ctx, 99)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Balance != 0 || summary.Currency != "NGN" {
		t.Errorf("summary = %+v, want zeroed NGN wallet", summary)
	}
	if summary.BalanceDisplay != "0.00" {
		t.Errorf("balance display = %q, want 0.00", summary.BalanceDisplay)
	}
}
