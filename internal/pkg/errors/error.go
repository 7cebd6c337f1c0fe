package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("invalid input")
	ErrConflict     = errors.New("conflicting state transition")
	ErrInternal     = errors.New("internal server error")

	// Money-path errors. Handlers map these to the status codes the mobile
	// clients rely on, so the sentinels must stay stable.
	ErrInsufficientBalance        = errors.New("insufficient available balance")
	ErrInvalidSignature           = errors.New("invalid webhook signature")
	ErrGatewayUnavailable         = errors.New("payment gateway unavailable")
	ErrGatewayTimeout             = errors.New("payment gateway timeout")
	ErrGatewayRejected            = errors.New("payment gateway rejected request")
	ErrMissingFinancialReferences = errors.New("order is missing financial transaction references")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap extracts the underlying wrapped error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
