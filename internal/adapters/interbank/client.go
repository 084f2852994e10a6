// Package interbank is the gateway client for peer institutions. One
// attempt per transfer, never retried: the peer offers no idempotent
// replay, so a timed-out request is treated as an unknown outcome.
package interbank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pixel-money/pixel-money/internal/domain/entities"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

// ErrNetwork reports that the request never produced an HTTP response.
// The transfer may or may not have reached the peer.
var ErrNetwork = errors.New("interbank: network failure")

// RejectionError is a definitive refusal from the peer. ErrorCode is the
// peer's structured code when the response carried one.
type RejectionError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *RejectionError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("interbank: rejected %s (%d): %s", e.ErrorCode, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("interbank: rejected with status %d: %s", e.StatusCode, e.Message)
}

// Status maps the rejection onto the transaction status taxonomy. The
// peer's code is carried verbatim so operators can see the refusal reason
// straight from the ledger row.
func (e *RejectionError) Status() entities.TransactionStatus {
	if e.ErrorCode != "" {
		return entities.TransactionStatus("FAILED_REMOTE_" + e.ErrorCode)
	}
	return entities.FailedRemoteStatus(e.StatusCode)
}

// Client sends outbound transfers to the peer gateway.
type Client struct {
	baseURL    string
	apiKey     string
	originBank string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(baseURL, apiKey, originBank string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		originBank: originBank,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log,
	}
}

type transferRequest struct {
	OriginBank             string          `json:"origin_bank"`
	OriginAccountID        string          `json:"origin_account_id"`
	DestinationBank        string          `json:"destination_bank"`
	DestinationPhoneNumber string          `json:"destination_phone_number"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency"`
	TransactionID          string          `json:"transaction_id"`
	Description            string          `json:"description"`
}

type transferResponse struct {
	Status              string `json:"status"`
	RemoteTransactionID string `json:"remote_transaction_id"`
	ErrorCode           string `json:"error_code"`
	Message             string `json:"message"`
}

// SendTransfer submits one transfer, correlated by the local transaction
// id. Returns the peer's remote transaction id on acceptance.
func (c *Client) SendTransfer(ctx context.Context, txID uuid.UUID, originAccountID, toBank, phone string, amount decimal.Decimal, currency string) (string, error) {
	payload := transferRequest{
		OriginBank:             c.originBank,
		OriginAccountID:        originAccountID,
		DestinationBank:        toBank,
		DestinationPhoneNumber: phone,
		Amount:                 amount,
		Currency:               currency,
		TransactionID:          txID.String(),
		Description:            "wallet transfer",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode interbank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/interbank/transfers", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build interbank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-Correlation-Id", txID.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Interbank request failed before a response",
			"transaction_id", txID,
			"error", err)
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var out transferResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out.RemoteTransactionID == "" {
			return "", &RejectionError{
				StatusCode: resp.StatusCode,
				Message:    "accepted response without remote transaction id",
			}
		}
		return out.RemoteTransactionID, nil
	}

	return "", &RejectionError{
		StatusCode: resp.StatusCode,
		ErrorCode:  out.ErrorCode,
		Message:    out.Message,
	}
}
