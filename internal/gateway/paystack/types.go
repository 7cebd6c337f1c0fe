// internal/gateway/paystack/types.go
package paystack

import "encoding/json"

// All amounts crossing this boundary are integer minor units (kobo).

// InitializeChargeRequest starts a hosted checkout session.
type InitializeChargeRequest struct {
	Email       string                 `json:"email"`
	Amount      int64                  `json:"amount"`
	Currency    string                 `json:"currency,omitempty"`
	Reference   string                 `json:"reference"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// InitializeChargeResponse is the checkout handle returned to the client app.
type InitializeChargeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// ChargeVerification is the gateway's authoritative view of a charge.
type ChargeVerification struct {
	Status          string `json:"status"` // success, failed, abandoned, pending
	Amount          int64  `json:"amount"`
	Fees            int64  `json:"fees"`
	GatewayResponse string `json:"gateway_response"`
	PaidAt          string `json:"paid_at"`
	Channel         string `json:"channel"`
}

// Success reports whether the charge reached a successful terminal state.
func (v *ChargeVerification) Success() bool {
	return v.Status == "success"
}

// TransferRecipientRequest registers a bank account for transfers.
type TransferRecipientRequest struct {
	Type          string `json:"type"` // always "nuban"
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

// InitiateTransferRequest moves money to a recipient. Reference is ours; the
// gateway uses it verbatim, which makes it the canonical idempotency key on
// both sides.
type InitiateTransferRequest struct {
	Source    string `json:"source"` // always "balance"
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
}

// TransferResult is the gateway's response to an initiated transfer.
type TransferResult struct {
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"` // pending, success, failed, reversed
}

// TransferVerification is the gateway's authoritative view of a transfer.
type TransferVerification struct {
	Status       string `json:"status"`
	TransferCode string `json:"transfer_code"`
	Amount       int64  `json:"amount"`
	Reason       string `json:"reason"`
}

// WebhookEvent is one inbound gateway event. Raw payload bytes must be
// signature-verified before this struct is ever populated.
type WebhookEvent struct {
	Event string           `json:"event"`
	Data  WebhookEventData `json:"data"`
}

// Webhook event names.
const (
	EventChargeSuccess    = "charge.success"
	EventChargeFailed     = "charge.failed"
	EventTransferSuccess  = "transfer.success"
	EventTransferFailed   = "transfer.failed"
	EventTransferReversed = "transfer.reversed"
)

// WebhookEventData is the event payload subset the engines need.
type WebhookEventData struct {
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Fees            int64  `json:"fees"`
	Status          string `json:"status"`
	GatewayResponse string `json:"gateway_response"`
	PaidAt          string `json:"paid_at"`
	Channel         string `json:"channel"`
	TransferCode    string `json:"transfer_code"`
	Reason          string `json:"reason"`
}

// envelope is the common Paystack response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}
