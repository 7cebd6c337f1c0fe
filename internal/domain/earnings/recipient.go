// internal/domain/earnings/recipient.go
package earnings

import (
	"context"
	"time"
)

// BankDetails is the snapshot of the destination account taken at payout
// request time. It lives here (rather than in ledger) so that ledger can
// depend on earnings without an import cycle; ledger re-exports it via a
// type alias.
type BankDetails struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	BankName      string `json:"bank_name,omitempty"`
}

// TransferRecipient maps a driver's bank account to the gateway's recipient
// code. One row per (driver, account number, bank code).
type TransferRecipient struct {
	ID            int64     `json:"id" db:"id"`
	DriverID      int64     `json:"driver_id" db:"driver_id"`
	AccountName   string    `json:"account_name" db:"account_name"`
	AccountNumber string    `json:"account_number" db:"account_number"`
	BankCode      string    `json:"bank_code" db:"bank_code"`
	BankName      string    `json:"bank_name" db:"bank_name"`
	RecipientCode string    `json:"recipient_code" db:"recipient_code"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// RecipientStore resolves and persists gateway recipient codes. Lookup
// misses are not errors; an empty code means the caller must create the
// recipient at the gateway.
type RecipientStore interface {
	LookupCode(ctx context.Context, driverID int64, bank BankDetails) (string, error)
	SaveCode(ctx context.Context, driverID int64, bank BankDetails, code string) error
}
