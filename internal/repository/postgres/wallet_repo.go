// internal/repository/postgres/wallet_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"cargolink-service/internal/domain/wallet"
	xerrors "cargolink-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WalletRepository struct {
	db *pgxpool.Pool
}

func NewWalletRepository(db *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) FindByClientID(ctx context.Context, clientID int64) (*wallet.ClientWallet, error) {
	var w wallet.ClientWallet
	err := r.db.QueryRow(ctx, `
		SELECT id, client_id, balance, total_deposited, total_spent, total_refunded,
		       transaction_count, first_deposit_at, last_activity_at, currency,
		       created_at, updated_at
		FROM client_wallets
		WHERE client_id = $1
	`, clientID).Scan(
		&w.ID, &w.ClientID, &w.Balance, &w.TotalDeposited, &w.TotalSpent,
		&w.TotalRefunded, &w.TransactionCount, &w.FirstDepositAt, &w.LastActivityAt,
		&w.Currency, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("client wallet: %w", xerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load client wallet: %w", err)
	}
	return &w, nil
}
