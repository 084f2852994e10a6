// Package balanceauthority is the ledger's HTTP client for the balance
// service. Failures are classified into the domain taxonomy so the saga
// layer can pick terminal statuses without looking at HTTP codes.
package balanceauthority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pixel-money/pixel-money/internal/domain/entities"
	domainerrors "github.com/pixel-money/pixel-money/internal/domain/errors"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

// Client talks to the balance authority over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log,
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CheckFunds asks whether the wallet covers the amount. Advisory only; a
// covered answer can still lose to a concurrent debit. An uncovered
// balance comes back as the service's 400 and surfaces as
// ErrInsufficientFunds.
func (c *Client) CheckFunds(ctx context.Context, userID string, amount decimal.Decimal) error {
	payload := entities.BalanceCheckRequest{UserID: userID, Amount: amount}
	return c.post(ctx, "/balance/check", payload)
}

// Credit adds funds to an individual wallet.
func (c *Client) Credit(ctx context.Context, userID string, amount decimal.Decimal) error {
	payload := entities.BalanceUpdateRequest{UserID: userID, Amount: amount}
	return c.post(ctx, "/balance/credit", payload)
}

// Debit removes funds from an individual wallet. An insufficient funds
// rejection surfaces as ErrInsufficientFunds.
func (c *Client) Debit(ctx context.Context, userID string, amount decimal.Decimal) error {
	payload := entities.BalanceUpdateRequest{UserID: userID, Amount: amount}
	return c.post(ctx, "/balance/debit", payload)
}

// CreditGroup adds funds to a group wallet.
func (c *Client) CreditGroup(ctx context.Context, groupID string, amount decimal.Decimal) error {
	payload := entities.GroupBalanceUpdateRequest{GroupID: groupID, Amount: amount}
	return c.post(ctx, "/group_balance/credit", payload)
}

// DebitGroup removes funds from a group wallet.
func (c *Client) DebitGroup(ctx context.Context, groupID string, amount decimal.Decimal) error {
	payload := entities.GroupBalanceUpdateRequest{GroupID: groupID, Amount: amount}
	return c.post(ctx, "/group_balance/debit", payload)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domainerrors.InternalError("encode balance request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domainerrors.InternalError("build balance request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Balance service unreachable", "path", path, "error", err)
		return domainerrors.ServiceUnavailableError("balance", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	return c.classify(path, resp)
}

// classify maps a non-2xx balance response to a domain error. The status
// code carries the meaning; the body only adds the message.
func (c *Client) classify(path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	message := eb.Message
	if message == "" {
		message = fmt.Sprintf("balance service returned %d", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return domainerrors.InsufficientFundsError(message)
	case http.StatusNotFound:
		return domainerrors.NotFoundError("account")
	default:
		c.logger.Warn("Balance service error",
			"path", path,
			"status_code", resp.StatusCode,
			"body", string(raw))
		return domainerrors.ServiceUnavailableError("balance",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}
