// internal/gateway/paystack/client.go
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	xerrors "cargolink-service/internal/pkg/errors"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Client is a thin wrapper over the gateway HTTP API. It is stateless except
// for credentials; callers own all idempotency and retry decisions.
// Timeouts surface as ErrGatewayTimeout and mean "unknown outcome": callers
// must never assume the money did not move.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, secretKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// InitializeCharge creates a hosted checkout session for the given reference.
func (c *Client) InitializeCharge(ctx context.Context, req *InitializeChargeRequest) (*InitializeChargeResponse, error) {
	var out InitializeChargeResponse
	if err := c.post(ctx, "/transaction/initialize", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyCharge asks the gateway for the authoritative state of a charge.
// Idempotent and safe to call repeatedly.
func (c *Client) VerifyCharge(ctx context.Context, reference string) (*ChargeVerification, error) {
	var out ChargeVerification
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTransferRecipient registers a bank account and returns the recipient
// code. Idempotent per account tuple on the gateway side; callers cache the
// result.
func (c *Client) CreateTransferRecipient(ctx context.Context, req *TransferRecipientRequest) (string, error) {
	var out struct {
		RecipientCode string `json:"recipient_code"`
	}
	if err := c.post(ctx, "/transferrecipient", req, &out); err != nil {
		return "", err
	}
	return out.RecipientCode, nil
}

// InitiateTransfer starts a payout. The gateway rejects duplicate
// references, which is the system's primary idempotency backstop for
// money-moving writes.
func (c *Client) InitiateTransfer(ctx context.Context, req *InitiateTransferRequest) (*TransferResult, error) {
	var out TransferResult
	if err := c.post(ctx, "/transfer", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTransfer asks the gateway for the authoritative state of a transfer.
func (c *Client) VerifyTransfer(ctx context.Context, reference string) (*TransferVerification, error) {
	var out TransferVerification
	path := "/transfer/verify/" + url.PathEscape(reference)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- transport helpers ----

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode gateway request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("gateway request timed out",
				zap.String("method", method),
				zap.String("path", path),
			)
			return fmt.Errorf("%w: %s %s", xerrors.ErrGatewayTimeout, method, path)
		}
		return fmt.Errorf("%w: %v", xerrors.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", xerrors.ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		c.logger.Error("gateway 5xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d", xerrors.ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var env envelope
		_ = json.Unmarshal(raw, &env)
		return fmt.Errorf("%w: status %d: %s", xerrors.ErrGatewayRejected, resp.StatusCode, env.Message)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: malformed response: %v", xerrors.ErrGatewayUnavailable, err)
	}
	if !env.Status {
		return fmt.Errorf("%w: %s", xerrors.ErrGatewayRejected, env.Message)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: malformed response data: %v", xerrors.ErrGatewayUnavailable, err)
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
