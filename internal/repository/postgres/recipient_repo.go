// internal/repository/postgres/recipient_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"cargolink-service/internal/domain/ledger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecipientRepository is the durable store behind the Redis recipient cache.
type RecipientRepository struct {
	db *pgxpool.Pool
}

func NewRecipientRepository(db *pgxpool.Pool) *RecipientRepository {
	return &RecipientRepository{db: db}
}

func (r *RecipientRepository) LookupCode(ctx context.Context, driverID int64, bank ledger.BankDetails) (string, error) {
	var code string
	err := r.db.QueryRow(ctx, `
		SELECT recipient_code FROM transfer_recipients
		WHERE driver_id = $1 AND account_number = $2 AND bank_code = $3
	`, driverID, bank.AccountNumber, bank.BankCode).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up transfer recipient: %w", err)
	}
	return code, nil
}

func (r *RecipientRepository) SaveCode(ctx context.Context, driverID int64, bank ledger.BankDetails, code string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transfer_recipients (driver_id, account_name, account_number, bank_code, bank_name, recipient_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (driver_id, account_number, bank_code) DO UPDATE
		SET recipient_code = $6, account_name = $2, bank_name = $5
	`, driverID, bank.AccountName, bank.AccountNumber, bank.BankCode, bank.BankName, code)
	if err != nil {
		return fmt.Errorf("failed to save transfer recipient: %w", err)
	}
	return nil
}
