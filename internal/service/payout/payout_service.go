// internal/service/payout/payout_service.go
package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cargolink-service/internal/domain/earnings"
	"cargolink-service/internal/domain/ledger"
	"cargolink-service/internal/domain/notification"
	"cargolink-service/internal/gateway/paystack"
	xerrors "cargolink-service/internal/pkg/errors"
	"cargolink-service/internal/pkg/money"
	"cargolink-service/internal/pkg/reference"
	notifsvc "cargolink-service/internal/service/notification"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxPINAttempts = 5
	pinLockWindow  = 15 * time.Minute
)

// Gateway is the subset of the payment gateway used by payouts.
type Gateway interface {
	CreateTransferRecipient(ctx context.Context, req *paystack.TransferRecipientRequest) (string, error)
	InitiateTransfer(ctx context.Context, req *paystack.InitiateTransferRequest) (*paystack.TransferResult, error)
	VerifyTransfer(ctx context.Context, reference string) (*paystack.TransferVerification, error)
}

// Config carries the payout-flow knobs.
type Config struct {
	Currency   string
	StaleAfter time.Duration
}

// Service is the payout reconciliation engine. A payout locks funds the
// moment it is requested; settlement arrives later via webhook or the
// reconciliation sweep, both of which route through the same handlers.
type Service struct {
	cfg           Config
	store         ledger.Store
	earnings      earnings.Repository
	recipients    earnings.RecipientStore
	gateway       Gateway
	notifications *notifsvc.Service
	logger        *zap.Logger
}

func NewService(
	cfg Config,
	store ledger.Store,
	earningsRepo earnings.Repository,
	recipients earnings.RecipientStore,
	gateway Gateway,
	notifications *notifsvc.Service,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:           cfg,
		store:         store,
		earnings:      earningsRepo,
		recipients:    recipients,
		gateway:       gateway,
		notifications: notifications,
		logger:        logger,
	}
}

// PayoutResult describes an accepted payout request. The payout is not final
// until the transfer settles.
type PayoutResult struct {
	TransactionID   string `json:"transaction_id"`
	Reference       string `json:"reference"`
	RequestedAmount int64  `json:"requested_amount"`
	TransferFee     int64  `json:"transfer_fee"`
	NetAmount       int64  `json:"net_amount"`
	Status          string `json:"status"`
}

// RequestPayout runs the full payout request flow: PIN gate, balance check,
// fee computation, recipient resolution, transfer initiation, audit record,
// fund lock.
func (s *Service) RequestPayout(ctx context.Context, driverID, amount int64, bank ledger.BankDetails, pin string) (*PayoutResult, error) {
	e, err := s.earnings.FindByDriverID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if err := s.verifyPIN(ctx, e, pin); err != nil {
		return nil, err
	}
	if e.AvailableBalance < amount {
		return nil, fmt.Errorf("requested %d, available %d: %w", amount, e.AvailableBalance, xerrors.ErrInsufficientBalance)
	}

	fee := TransferFee(amount)
	net := amount - fee
	if net <= 0 {
		return nil, fmt.Errorf("amount %d does not cover the %d transfer fee: %w", amount, fee, xerrors.ErrValidation)
	}

	ref, err := s.freshTransferReference(ctx)
	if err != nil {
		return nil, err
	}

	recipientCode, err := s.resolveRecipient(ctx, driverID, bank)
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.InitiateTransfer(ctx, &paystack.InitiateTransferRequest{
		Source:    "balance",
		Amount:    net,
		Recipient: recipientCode,
		Reference: ref,
		Reason:    "Driver earnings payout",
	})
	if err != nil {
		if !errors.Is(err, xerrors.ErrGatewayTimeout) {
			return nil, err
		}
		// Timeout means unknown outcome. The transfer may exist on the
		// gateway side, so record and lock anyway; the sweep resolves it
		// through verifyTransfer.
		s.logger.Error("transfer initiation timed out, recording for reconciliation",
			zap.Int64("driver_id", driverID),
			zap.String("reference", ref),
			zap.Int64("amount", amount))
		result = &paystack.TransferResult{Status: "pending"}
	}

	txn := &ledger.FinancialTransaction{
		Type:     ledger.TypeDriverPayout,
		Status:   ledger.StatusPending,
		DriverID: &driverID,
		Amount:   ledger.Amount{Gross: amount, Fees: fee, Net: net, Currency: s.cfg.Currency},
		Gateway: ledger.GatewayInfo{
			Provider:  "paystack",
			Reference: ref,
		},
		Payout: &ledger.PayoutDetails{
			RequestedAmount: amount,
			TransferFee:     fee,
			NetAmount:       net,
			Bank:            bank,
			RecipientCode:   recipientCode,
			TransferCode:    result.TransferCode,
			TransferStatus:  result.Status,
		},
		Description: fmt.Sprintf("Payout of %s to %s", money.ToMajorString(amount), bank.AccountNumber),
	}
	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	err = s.store.LockPayoutFunds(ctx, ledger.LockFundsParams{
		DriverID:        driverID,
		TransactionID:   txn.ID,
		Reference:       ref,
		RequestedAmount: amount,
		TransferFee:     fee,
		NetAmount:       net,
		Bank:            bank,
		RecipientCode:   recipientCode,
		TransferCode:    result.TransferCode,
	})
	if err != nil {
		// The transfer is already in flight with an audit record; a lock
		// failure here needs eyes, not a silent rollback.
		s.logger.Error("fund lock failed after transfer initiation",
			zap.Int64("driver_id", driverID),
			zap.String("reference", ref),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("payout requested",
		zap.Int64("driver_id", driverID),
		zap.String("reference", ref),
		zap.Int64("amount", amount),
		zap.Int64("fee", fee))

	s.notifications.Notify(ctx, notifsvc.Event{
		IdentityID: driverID,
		Category:   notification.CategoryPayout,
		Type:       notification.TypePayoutInitiated,
		Amount:     amount,
		Currency:   s.cfg.Currency,
	})

	return &PayoutResult{
		TransactionID:   txn.ID,
		Reference:       ref,
		RequestedAmount: amount,
		TransferFee:     fee,
		NetAmount:       net,
		Status:          string(ledger.StatusPending),
	}, nil
}

// freshTransferReference generates a reference and rules out the vanishingly
// rare collision against an existing transaction.
func (s *Service) freshTransferReference(ctx context.Context) (string, error) {
	for i := 0; i < 3; i++ {
		ref := reference.Transfer()
		exists, err := s.store.ReferenceExists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !exists {
			return ref, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique transfer reference: %w", xerrors.ErrInternal)
}

// resolveRecipient returns a cached gateway recipient code for the bank
// account, creating one at the gateway on first use.
func (s *Service) resolveRecipient(ctx context.Context, driverID int64, bank ledger.BankDetails) (string, error) {
	code, err := s.recipients.LookupCode(ctx, driverID, bank)
	if err != nil {
		return "", err
	}
	if code != "" {
		return code, nil
	}

	code, err = s.gateway.CreateTransferRecipient(ctx, &paystack.TransferRecipientRequest{
		Type:          "nuban",
		Name:          bank.AccountName,
		AccountNumber: bank.AccountNumber,
		BankCode:      bank.BankCode,
		Currency:      s.cfg.Currency,
	})
	if err != nil {
		return "", err
	}
	if err := s.recipients.SaveCode(ctx, driverID, bank, code); err != nil {
		s.logger.Warn("recipient code persist failed",
			zap.Int64("driver_id", driverID),
			zap.Error(err))
	}
	return code, nil
}

// verifyPIN enforces the payout PIN with a lockout after repeated failures.
func (s *Service) verifyPIN(ctx context.Context, e *earnings.DriverEarnings, pin string) error {
	if e.PayoutPINHash == nil {
		return fmt.Errorf("payout pin has not been set: %w", xerrors.ErrValidation)
	}
	if e.PINLockedUntil != nil && time.Now().Before(*e.PINLockedUntil) {
		return fmt.Errorf("payout pin locked until %s: %w", e.PINLockedUntil.Format(time.RFC3339), xerrors.ErrForbidden)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*e.PayoutPINHash), []byte(pin)); err != nil {
		var lockedUntil *time.Time
		if e.PINFailedAttempts+1 >= maxPINAttempts {
			t := time.Now().Add(pinLockWindow)
			lockedUntil = &t
		}
		if recordErr := s.earnings.RecordPINFailure(ctx, e.DriverID, lockedUntil); recordErr != nil {
			s.logger.Error("pin failure record failed", zap.Int64("driver_id", e.DriverID), zap.Error(recordErr))
		}
		return fmt.Errorf("incorrect payout pin: %w", xerrors.ErrForbidden)
	}

	if e.PINFailedAttempts > 0 || e.PINLockedUntil != nil {
		if err := s.earnings.ResetPINFailures(ctx, e.DriverID); err != nil {
			s.logger.Error("pin failure reset failed", zap.Int64("driver_id", e.DriverID), zap.Error(err))
		}
	}
	return nil
}

// SetPayoutPIN hashes and stores a driver's payout PIN.
func (s *Service) SetPayoutPIN(ctx context.Context, driverID int64, pin string) error {
	if len(pin) < 4 || len(pin) > 6 {
		return fmt.Errorf("pin must be 4 to 6 digits: %w", xerrors.ErrValidation)
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return fmt.Errorf("pin must be numeric: %w", xerrors.ErrValidation)
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash pin: %w", err)
	}
	return s.earnings.SetPayoutPIN(ctx, driverID, string(hash))
}

// Summary returns the driver's earnings read model.
func (s *Service) Summary(ctx context.Context, driverID int64) (*earnings.Summary, error) {
	e, err := s.earnings.FindByDriverID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	return &earnings.Summary{
		AvailableBalance:   e.AvailableBalance,
		BalanceDisplay:     money.ToMajorString(e.AvailableBalance),
		Pending:            e.EarningsPending,
		Withdrawn:          e.EarningsWithdrawn,
		TotalEarned:        e.TotalEarned,
		TotalWithdrawn:     e.TotalWithdrawn,
		DeliveryCount:      e.DeliveryCount,
		AveragePerDelivery: e.AveragePerDelivery,
		LastWithdrawalAt:   e.LastWithdrawalAt,
		Currency:           e.Currency,
	}, nil
}

// RecentEarnings returns the driver's latest earning entries, capped at 50.
func (s *Service) RecentEarnings(ctx context.Context, driverID int64, limit int) ([]earnings.EarningEntry, error) {
	return s.earnings.RecentEntries(ctx, driverID, limit)
}
