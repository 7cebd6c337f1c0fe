// internal/service/wallet/wallet_service.go
package wallet

import (
	"context"
	"fmt"
	"time"

	"cargolink-service/internal/domain/ledger"
	"cargolink-service/internal/domain/notification"
	"cargolink-service/internal/domain/wallet"
	"cargolink-service/internal/gateway/paystack"
	xerrors "cargolink-service/internal/pkg/errors"
	"cargolink-service/internal/pkg/money"
	"cargolink-service/internal/pkg/reference"
	notifsvc "cargolink-service/internal/service/notification"

	"go.uber.org/zap"
)

const recentTransactionsLimit = 50

// Config carries the wallet-flow knobs.
type Config struct {
	Currency        string
	CallbackBaseURL string
}

// Service handles client wallet deposits and reads. Deposit settlement uses
// the same idempotent completion discipline as order payments.
type Service struct {
	cfg           Config
	wallets       wallet.Repository
	store         ledger.Store
	gateway       *paystack.Client
	notifications *notifsvc.Service
	logger        *zap.Logger
}

func NewService(
	cfg Config,
	wallets wallet.Repository,
	store ledger.Store,
	gateway *paystack.Client,
	notifications *notifsvc.Service,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:           cfg,
		wallets:       wallets,
		store:         store,
		gateway:       gateway,
		notifications: notifications,
		logger:        logger,
	}
}

// DepositResult is the checkout handle for a wallet top-up.
type DepositResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// InitiateDeposit starts hosted checkout for a wallet top-up.
func (s *Service) InitiateDeposit(ctx context.Context, clientID, amount int64, email string) (*DepositResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive: %w", xerrors.ErrValidation)
	}

	ref := reference.Transaction()
	callbackURL := fmt.Sprintf("%s/wallet/deposit-callback?reference=%s", s.cfg.CallbackBaseURL, ref)

	checkout, err := s.gateway.InitializeCharge(ctx, &paystack.InitializeChargeRequest{
		Email:       email,
		Amount:      amount,
		Currency:    s.cfg.Currency,
		Reference:   ref,
		CallbackURL: callbackURL,
		Metadata: map[string]interface{}{
			"purpose":   "wallet_deposit",
			"client_id": clientID,
		},
	})
	if err != nil {
		s.logger.Error("deposit initialization failed",
			zap.Int64("client_id", clientID),
			zap.Int64("amount", amount),
			zap.Error(err))
		return nil, err
	}

	txn := &ledger.FinancialTransaction{
		Type:     ledger.TypeWalletDeposit,
		Status:   ledger.StatusPending,
		ClientID: &clientID,
		Amount:   ledger.Amount{Gross: amount, Net: amount, Currency: s.cfg.Currency},
		Gateway: ledger.GatewayInfo{
			Provider:  "paystack",
			Reference: ref,
		},
		Description: fmt.Sprintf("Wallet deposit of %s", money.ToMajorString(amount)),
	}
	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	return &DepositResult{
		AuthorizationURL: checkout.AuthorizationURL,
		AccessCode:       checkout.AccessCode,
		Reference:        ref,
		Amount:           amount,
		Currency:         s.cfg.Currency,
	}, nil
}

// SettleDeposit verifies a deposit reference against the gateway and credits
// the wallet. Called from the deposit callback, a client poll, or the charge
// webhook; concurrent invocations collapse to one credit.
func (s *Service) SettleDeposit(ctx context.Context, ref string) error {
	txn, err := s.store.TransactionByReference(ctx, ref)
	if err != nil {
		return err
	}
	if txn.Type != ledger.TypeWalletDeposit {
		return fmt.Errorf("reference %s is not a wallet deposit: %w", ref, xerrors.ErrValidation)
	}
	if txn.Status == ledger.StatusCompleted {
		return nil
	}

	verification, err := s.gateway.VerifyCharge(ctx, ref)
	if err != nil {
		return err
	}
	if !verification.Success() {
		return nil
	}
	if verification.Amount != txn.Amount.Gross {
		s.logger.Error("deposit amount mismatch",
			zap.String("reference", ref),
			zap.Int64("verified_amount", verification.Amount),
			zap.Int64("expected_amount", txn.Amount.Gross))
		return fmt.Errorf("verified amount %d does not match deposit %d: %w", verification.Amount, txn.Amount.Gross, xerrors.ErrValidation)
	}

	paidAt := time.Now()
	if t, err := time.Parse(time.RFC3339, verification.PaidAt); err == nil {
		paidAt = t
	}

	completion, err := s.store.CompleteWalletDeposit(ctx, ref, verification.Fees, paidAt)
	if err != nil {
		return err
	}
	if completion.AlreadyCompleted {
		return nil
	}

	clientID := int64(0)
	if completion.Transaction.ClientID != nil {
		clientID = *completion.Transaction.ClientID
	}
	s.logger.Info("wallet deposit completed",
		zap.Int64("client_id", clientID),
		zap.String("reference", ref),
		zap.Int64("amount", completion.Transaction.Amount.Gross),
		zap.Int64("new_balance", completion.NewBalance))

	s.notifications.Notify(ctx, notifsvc.Event{
		IdentityID: clientID,
		Category:   notification.CategoryPayment,
		Type:       notification.TypeDepositSuccessful,
		Amount:     completion.Transaction.Amount.Gross,
		Currency:   s.cfg.Currency,
	})
	return nil
}

// Summary returns the client's wallet read model. A client with no wallet
// yet gets a zeroed summary, not a 404.
func (s *Service) Summary(ctx context.Context, clientID int64) (*wallet.Summary, error) {
	w, err := s.wallets.FindByClientID(ctx, clientID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return &wallet.Summary{
				BalanceDisplay: money.ToMajorString(0),
				Currency:       s.cfg.Currency,
			}, nil
		}
		return nil, err
	}
	return &wallet.Summary{
		Balance:          w.Balance,
		BalanceDisplay:   money.ToMajorString(w.Balance),
		Currency:         w.Currency,
		TotalDeposited:   w.TotalDeposited,
		TotalSpent:       w.TotalSpent,
		TotalRefunded:    w.TotalRefunded,
		TransactionCount: w.TransactionCount,
		LastActivityAt:   w.LastActivityAt,
	}, nil
}

// RecentTransactions returns the client's latest ledger entries, capped
// at 50.
func (s *Service) RecentTransactions(ctx context.Context, clientID int64, limit int) ([]ledger.FinancialTransaction, error) {
	if limit < 1 || limit > recentTransactionsLimit {
		limit = recentTransactionsLimit
	}
	return s.store.RecentTransactions(ctx, clientID, limit)
}
