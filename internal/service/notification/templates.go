// internal/service/notification/templates.go
package notification

import (
	"fmt"

	"cargolink-service/internal/domain/notification"
	"cargolink-service/internal/pkg/money"
)

// render maps a typed event to its title and message. Each type reads a
// closed set of fields; unknown types fall back to a generic body rather
// than failing the trigger.
func render(e Event) (title, message string) {
	amount := money.ToMajorString(e.Amount)
	currency := e.Currency
	if currency == "" {
		currency = "NGN"
	}

	switch e.Type {
	case notification.TypeOrderCreated:
		return "Order submitted",
			fmt.Sprintf("Your order %s has been submitted and is awaiting driver assignment.", e.OrderRef)
	case notification.TypePaymentSuccessful:
		return "Payment successful",
			fmt.Sprintf("Your payment of %s %s for order %s was successful.", currency, amount, e.OrderRef)
	case notification.TypePaymentFailed:
		return "Payment failed",
			fmt.Sprintf("Your payment for order %s failed: %s.", e.OrderRef, e.Reason)
	case notification.TypeRefundRequested:
		return "Refund requested",
			fmt.Sprintf("A refund has been requested for order %s. We will process it shortly.", e.OrderRef)
	case notification.TypePayoutInitiated:
		return "Payout initiated",
			fmt.Sprintf("Your payout of %s %s is being processed.", currency, amount)
	case notification.TypePayoutCompleted:
		return "Payout completed",
			fmt.Sprintf("Your payout of %s %s has been sent to your bank account.", currency, amount)
	case notification.TypePayoutFailed:
		return "Payout failed",
			fmt.Sprintf("Your payout of %s %s could not be completed. The funds have been returned to your balance.", currency, amount)
	case notification.TypeEarningCredited:
		return "Earnings credited",
			fmt.Sprintf("You earned %s %s for delivering order %s.", currency, amount, e.OrderRef)
	case notification.TypeDepositSuccessful:
		return "Deposit successful",
			fmt.Sprintf("Your wallet deposit of %s %s was successful.", currency, amount)
	}
	return "Notification", fmt.Sprintf("You have a new %s update.", e.Category)
}
