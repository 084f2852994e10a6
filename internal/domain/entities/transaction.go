package entities

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletType identifies which kind of balance an event endpoint refers to.
// Wallet ids are opaque strings; the event store never dereferences them.
type WalletType string

const (
	WalletTypeIndividual   WalletType = "BDI"
	WalletTypeGroup        WalletType = "BDG"
	WalletTypeExternal     WalletType = "EXTERNAL"
	WalletTypeExternalBank WalletType = "EXTERNAL_BANK"
)

// TransactionType classifies the intent that produced an event record.
type TransactionType string

const (
	TransactionTypeDeposit      TransactionType = "DEPOSIT"
	TransactionTypeTransfer     TransactionType = "TRANSFER"
	TransactionTypeContribution TransactionType = "CONTRIBUTION"
	TransactionTypeP2PSent      TransactionType = "P2P_SENT"
	TransactionTypeP2PReceived  TransactionType = "P2P_RECEIVED"
)

// TransactionStatus is the lifecycle state of a transaction. PENDING is the
// only non-terminal state; every terminal state is absorbing.
type TransactionStatus string

const (
	StatusPending             TransactionStatus = "PENDING"
	StatusCompleted           TransactionStatus = "COMPLETED"
	StatusFailedFunds         TransactionStatus = "FAILED_FUNDS"
	StatusFailedAccount       TransactionStatus = "FAILED_ACCOUNT"
	StatusFailedBalanceSvc    TransactionStatus = "FAILED_BALANCE_SVC"
	StatusFailedNetwork       TransactionStatus = "FAILED_NETWORK"
	StatusFailedUnknown       TransactionStatus = "FAILED_UNKNOWN"
	StatusPendingConfirmation TransactionStatus = "PENDING_CONFIRMATION"

	// StatusFailedDebitPostConfirmation marks the one state where value was
	// promised externally but not captured locally. It is never compensated
	// automatically.
	StatusFailedDebitPostConfirmation TransactionStatus = "FAILED_DEBIT_POST_CONFIRMATION"
)

const (
	revertedSuffix     = "_REVERTED"
	revertFailedSuffix = "_REVERT_FAILED"
)

// FailedRemoteStatus builds the terminal status for a peer rejection that
// carried no structured error code.
func FailedRemoteStatus(httpCode int) TransactionStatus {
	return TransactionStatus(fmt.Sprintf("FAILED_REMOTE_%d", httpCode))
}

// Reverted marks a failure status whose compensation succeeded.
func (s TransactionStatus) Reverted() TransactionStatus {
	return s + revertedSuffix
}

// RevertFailed marks a failure status whose compensation also failed; the
// record requires manual reconciliation.
func (s TransactionStatus) RevertFailed() TransactionStatus {
	return s + revertFailedSuffix
}

// IsTerminal reports whether the status may never be rewritten.
func (s TransactionStatus) IsTerminal() bool {
	return s != StatusPending
}

// NeedsReconciliation reports whether operators must look at the record:
// the bookkeeping and the real money movement may disagree.
func (s TransactionStatus) NeedsReconciliation() bool {
	return s == StatusPendingConfirmation ||
		s == StatusFailedDebitPostConfirmation ||
		strings.HasSuffix(string(s), revertFailedSuffix)
}

// CanTransitionTo enforces the monotonic state machine: the only legal move
// is PENDING to a terminal state.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return s == StatusPending && next.IsTerminal()
}

// Transaction is one event record in the ledger. Immutable once terminal.
type Transaction struct {
	ID                    uuid.UUID         `json:"id"`
	UserID                string            `json:"user_id"`
	SourceWalletType      WalletType        `json:"source_wallet_type"`
	SourceWalletID        string            `json:"source_wallet_id"`
	DestinationWalletType WalletType        `json:"destination_wallet_type"`
	DestinationWalletID   string            `json:"destination_wallet_id"`
	Type                  TransactionType   `json:"type"`
	Amount                decimal.Decimal   `json:"amount"`
	Currency              string            `json:"currency"`
	Status                TransactionStatus `json:"status"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	Metadata              string            `json:"metadata"`
}

// EncodeMetadata renders free-form metadata the way the store keeps it: a
// JSON document as text.
func EncodeMetadata(m map[string]interface{}) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// DecodeMetadata parses a stored metadata document. Malformed or empty
// documents decode to an empty map.
func DecodeMetadata(s string) map[string]interface{} {
	m := map[string]interface{}{}
	if s == "" {
		return m
	}
	_ = json.Unmarshal([]byte(s), &m)
	return m
}

// DepositRequest funds an individual wallet from an external source.
type DepositRequest struct {
	UserID string          `json:"user_id" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// P2PTransferRequest moves funds between two individual wallets in-house.
// The recipient is addressed by phone number and resolved via the user
// directory.
type P2PTransferRequest struct {
	UserID                 string          `json:"user_id" validate:"required"`
	DestinationPhoneNumber string          `json:"destination_phone_number" validate:"required,min=9,max=15"`
	Amount                 decimal.Decimal `json:"amount" validate:"required"`
}

// ContributionRequest moves funds from an individual wallet into a group
// wallet.
type ContributionRequest struct {
	UserID  string          `json:"user_id" validate:"required"`
	GroupID string          `json:"group_id" validate:"required"`
	Amount  decimal.Decimal `json:"amount" validate:"required"`
}

// InterbankTransferRequest sends funds to an account at a peer institution.
type InterbankTransferRequest struct {
	UserID                 string          `json:"user_id" validate:"required"`
	ToBank                 string          `json:"to_bank" validate:"required"`
	DestinationPhoneNumber string          `json:"destination_phone_number" validate:"required,min=9,max=15"`
	Amount                 decimal.Decimal `json:"amount" validate:"required"`
}

// ErrorResponse is the error envelope returned by every handler.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
