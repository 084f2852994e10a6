// Package ledger implements the transaction orchestrator. Each operation
// is a sequential saga over the balance authority, the recipient
// directory and the interbank gateway, with every outcome recorded as a
// terminal status in the event store.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pixel-money/pixel-money/internal/adapters/interbank"
	"github.com/pixel-money/pixel-money/internal/domain/entities"
	domainerrors "github.com/pixel-money/pixel-money/internal/domain/errors"
	"github.com/pixel-money/pixel-money/internal/infrastructure/eventstore"
	"github.com/pixel-money/pixel-money/pkg/logger"
	"github.com/pixel-money/pixel-money/pkg/metrics"
)

// EventStore is the persistence surface the orchestrator needs.
type EventStore interface {
	Insert(ctx context.Context, tx *entities.Transaction) error
	UpdateStatus(ctx context.Context, tx *entities.Transaction, status entities.TransactionStatus) error
	Commit(ctx context.Context, tx *entities.Transaction, status entities.TransactionStatus, key uuid.UUID, companions ...*entities.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error)
	LookupIdempotencyKey(ctx context.Context, key uuid.UUID) (uuid.UUID, error)
	BindIdempotencyKey(ctx context.Context, key, txID uuid.UUID) error
}

// BalanceClient is the balance authority surface. CheckFunds returns
// ErrInsufficientFunds when the balance does not cover the amount.
type BalanceClient interface {
	CheckFunds(ctx context.Context, userID string, amount decimal.Decimal) error
	Credit(ctx context.Context, userID string, amount decimal.Decimal) error
	Debit(ctx context.Context, userID string, amount decimal.Decimal) error
	CreditGroup(ctx context.Context, groupID string, amount decimal.Decimal) error
	DebitGroup(ctx context.Context, groupID string, amount decimal.Decimal) error
}

// RecipientDirectory resolves phone numbers to user ids.
type RecipientDirectory interface {
	ResolvePhone(ctx context.Context, phone string) (string, error)
}

// InterbankGateway submits outbound transfers to peer institutions.
type InterbankGateway interface {
	SendTransfer(ctx context.Context, txID uuid.UUID, originAccountID, toBank, phone string, amount decimal.Decimal, currency string) (string, error)
}

// Config carries the orchestrator's business settings.
type Config struct {
	Currency       string
	SupportedBanks []string
	HistoryLimit   int
}

// Service orchestrates wallet transactions.
type Service struct {
	store     EventStore
	balance   BalanceClient
	directory RecipientDirectory
	interbank InterbankGateway
	cfg       Config
	logger    *logger.Logger
}

func NewService(store EventStore, balance BalanceClient, directory RecipientDirectory, gateway InterbankGateway, cfg Config, log *logger.Logger) *Service {
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 50
	}
	return &Service{
		store:     store,
		balance:   balance,
		directory: directory,
		interbank: gateway,
		cfg:       cfg,
		logger:    log,
	}
}

func validateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domainerrors.ValidationError("amount", "amount must be positive")
	}
	return nil
}

func (s *Service) newTransaction(userID string, txType entities.TransactionType, src entities.WalletType, srcID string, dst entities.WalletType, dstID string, amount decimal.Decimal, metadata map[string]interface{}) *entities.Transaction {
	now := time.Now().UTC()
	return &entities.Transaction{
		ID:                    uuid.New(),
		UserID:                userID,
		SourceWalletType:      src,
		SourceWalletID:        srcID,
		DestinationWalletType: dst,
		DestinationWalletID:   dstID,
		Type:                  txType,
		Amount:                amount,
		Currency:              s.cfg.Currency,
		Status:                entities.StatusPending,
		CreatedAt:             now,
		UpdatedAt:             now,
		Metadata:              entities.EncodeMetadata(metadata),
	}
}

// begin runs the idempotency preamble. The key lookup always runs first:
// a key hit replays the bound record even when a collaborator the fresh
// intent would need is unreachable. Only a miss invokes build and
// persists the resulting PENDING record. A key bound to a missing record
// is an inconsistency the service cannot repair.
func (s *Service) begin(ctx context.Context, key uuid.UUID, build func() (*entities.Transaction, error)) (*entities.Transaction, bool, error) {
	boundID, err := s.store.LookupIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		existing, err := s.store.GetByID(ctx, boundID)
		if err != nil {
			if errors.Is(err, eventstore.ErrNotFound) {
				s.logger.Error("Idempotency key bound to missing transaction",
					"idempotency_key", key,
					"transaction_id", boundID,
					"requires_reconciliation", true)
				return nil, false, domainerrors.InternalError("idempotency binding is inconsistent", nil)
			}
			return nil, false, domainerrors.ServiceUnavailableError("event store", err)
		}
		s.logger.Info("Idempotent replay",
			"idempotency_key", key,
			"transaction_id", existing.ID)
		return existing, true, nil
	case errors.Is(err, eventstore.ErrNotFound):
		tx, err := build()
		if err != nil {
			return nil, false, err
		}
		if err := s.store.Insert(ctx, tx); err != nil {
			return nil, false, domainerrors.ServiceUnavailableError("event store", err)
		}
		return tx, false, nil
	default:
		return nil, false, domainerrors.ServiceUnavailableError("event store", err)
	}
}

// fail moves the record to a terminal failure status and returns the
// causing error decorated with the record's identity. The status write is
// best-effort; the saga outcome does not change if it fails.
func (s *Service) fail(ctx context.Context, tx *entities.Transaction, status entities.TransactionStatus, cause error) error {
	if err := s.store.UpdateStatus(ctx, tx, status); err != nil {
		s.logger.Error("Failed to record terminal status",
			"transaction_id", tx.ID,
			"status", status,
			"error", err)
		tx.Status = status
	}
	return withRecord(cause, tx)
}

// commit finalizes a saga whose money movement succeeded. If the final
// batch fails the side effects are still real, so the record degrades to
// PENDING_CONFIRMATION instead of surfacing an error, and the key is
// bound anyway: a retry must replay this record, not move money twice.
func (s *Service) commit(ctx context.Context, tx *entities.Transaction, key uuid.UUID, companions ...*entities.Transaction) {
	if err := s.store.Commit(ctx, tx, entities.StatusCompleted, key, companions...); err != nil {
		s.logger.Error("Final status write failed after successful money movement",
			"transaction_id", tx.ID,
			"idempotency_key", key,
			"error", err,
			"requires_reconciliation", true)
		if uerr := s.store.UpdateStatus(ctx, tx, entities.StatusPendingConfirmation); uerr != nil {
			s.logger.Error("Could not record PENDING_CONFIRMATION",
				"transaction_id", tx.ID,
				"error", uerr)
			tx.Status = entities.StatusPendingConfirmation
		}
		if berr := s.store.BindIdempotencyKey(ctx, key, tx.ID); berr != nil {
			s.logger.Error("Could not bind idempotency key after degraded commit",
				"transaction_id", tx.ID,
				"idempotency_key", key,
				"error", berr,
				"requires_reconciliation", true)
		}
	}
}

func withRecord(err error, tx *entities.Transaction) error {
	var de *domainerrors.DomainError
	if errors.As(err, &de) {
		details := map[string]interface{}{}
		for k, v := range de.Details {
			details[k] = v
		}
		details["transaction_id"] = tx.ID.String()
		details["status"] = string(tx.Status)
		de.Details = details
	}
	return err
}

// classifyBalanceError maps a balance client error to the terminal status
// of the step that hit it.
func classifyBalanceError(err error) entities.TransactionStatus {
	switch {
	case domainerrors.IsInsufficientFunds(err):
		return entities.StatusFailedFunds
	case domainerrors.IsNotFound(err):
		return entities.StatusFailedAccount
	case domainerrors.IsServiceUnavailable(err):
		return entities.StatusFailedBalanceSvc
	default:
		return entities.StatusFailedUnknown
	}
}

func (s *Service) addMetadata(tx *entities.Transaction, key string, value interface{}) {
	m := entities.DecodeMetadata(tx.Metadata)
	m[key] = value
	tx.Metadata = entities.EncodeMetadata(m)
}

// Deposit funds an individual wallet from an external source.
func (s *Service) Deposit(ctx context.Context, key uuid.UUID, req *entities.DepositRequest) (*entities.Transaction, bool, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, false, err
	}

	tx, replay, err := s.begin(ctx, key, func() (*entities.Transaction, error) {
		return s.newTransaction(
			req.UserID, entities.TransactionTypeDeposit,
			entities.WalletTypeExternal, "external",
			entities.WalletTypeIndividual, req.UserID,
			req.Amount, nil), nil
	})
	if err != nil || replay {
		return tx, replay, err
	}

	// The saga must reach a terminal state even if the caller hangs up.
	sctx := context.WithoutCancel(ctx)

	if err := s.balance.Credit(sctx, req.UserID, req.Amount); err != nil {
		// Whatever the cause, the balance service did not apply the
		// credit; there is no finer state for the single-step saga.
		return nil, false, s.fail(sctx, tx, entities.StatusFailedBalanceSvc, err)
	}

	metrics.DepositCount.Inc()
	s.commit(sctx, tx, key)
	return tx, false, nil
}

// P2PTransfer moves funds between two individual wallets. Debit before
// credit: a failed credit is recoverable by crediting the sender back,
// while the inverse ordering could create money.
func (s *Service) P2PTransfer(ctx context.Context, key uuid.UUID, req *entities.P2PTransferRequest) (*entities.Transaction, bool, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, false, err
	}

	var recipientID string
	tx, replay, err := s.begin(ctx, key, func() (*entities.Transaction, error) {
		// Resolution only runs on a key miss; a replay never depends on
		// the directory being up or the number still resolving the same.
		id, err := s.directory.ResolvePhone(ctx, req.DestinationPhoneNumber)
		if err != nil {
			return nil, err
		}
		if id == req.UserID {
			return nil, domainerrors.ValidationError("destination_phone_number",
				"cannot transfer to yourself")
		}
		recipientID = id
		return s.newTransaction(
			req.UserID, entities.TransactionTypeP2PSent,
			entities.WalletTypeIndividual, req.UserID,
			entities.WalletTypeIndividual, recipientID,
			req.Amount, map[string]interface{}{
				"destination_phone_number": req.DestinationPhoneNumber,
			}), nil
	})
	if err != nil || replay {
		return tx, replay, err
	}

	sctx := context.WithoutCancel(ctx)

	if err := s.balance.CheckFunds(sctx, req.UserID, req.Amount); err != nil {
		return nil, false, s.fail(sctx, tx, classifyBalanceError(err), err)
	}

	if err := s.balance.Debit(sctx, req.UserID, req.Amount); err != nil {
		return nil, false, s.fail(sctx, tx, classifyBalanceError(err), err)
	}

	if err := s.balance.Credit(sctx, recipientID, req.Amount); err != nil {
		return nil, false, s.compensateP2P(sctx, tx, req, err)
	}

	received := s.newTransaction(
		recipientID, entities.TransactionTypeP2PReceived,
		entities.WalletTypeIndividual, req.UserID,
		entities.WalletTypeIndividual, recipientID,
		req.Amount, map[string]interface{}{
			"sender_transaction_id": tx.ID.String(),
		})
	received.Status = entities.StatusCompleted

	metrics.P2PTransferCount.Inc()
	s.commit(sctx, tx, key, received)
	return tx, false, nil
}

// compensateP2P restores the sender after a failed recipient credit. The
// compensation is a credit, the exact inverse of the debit that preceded
// it.
func (s *Service) compensateP2P(ctx context.Context, tx *entities.Transaction, req *entities.P2PTransferRequest, cause error) error {
	base := classifyBalanceError(cause)
	s.logger.Warn("Recipient credit failed, compensating sender",
		"transaction_id", tx.ID,
		"error", cause)

	if err := s.balance.Credit(ctx, req.UserID, req.Amount); err != nil {
		s.logger.Error("Compensation failed, funds left in limbo",
			"transaction_id", tx.ID,
			"user_id", req.UserID,
			"amount", req.Amount.String(),
			"error", err,
			"requires_reconciliation", true)
		return s.fail(ctx, tx, base.RevertFailed(), cause)
	}
	return s.fail(ctx, tx, base.Reverted(), cause)
}

// Contribute moves funds from an individual wallet into a group wallet.
func (s *Service) Contribute(ctx context.Context, key uuid.UUID, req *entities.ContributionRequest) (*entities.Transaction, bool, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, false, err
	}

	tx, replay, err := s.begin(ctx, key, func() (*entities.Transaction, error) {
		return s.newTransaction(
			req.UserID, entities.TransactionTypeContribution,
			entities.WalletTypeIndividual, req.UserID,
			entities.WalletTypeGroup, req.GroupID,
			req.Amount, nil), nil
	})
	if err != nil || replay {
		return tx, replay, err
	}

	sctx := context.WithoutCancel(ctx)

	if err := s.balance.CheckFunds(sctx, req.UserID, req.Amount); err != nil {
		// Pre-debit rejection: nothing moved, nothing to compensate.
		return nil, false, s.fail(sctx, tx, classifyBalanceError(err), err)
	}

	if err := s.balance.Debit(sctx, req.UserID, req.Amount); err != nil {
		return nil, false, s.fail(sctx, tx, classifyBalanceError(err), err)
	}

	if err := s.balance.CreditGroup(sctx, req.GroupID, req.Amount); err != nil {
		base := classifyBalanceError(err)
		s.logger.Warn("Group credit failed, compensating contributor",
			"transaction_id", tx.ID,
			"group_id", req.GroupID,
			"error", err)
		if cerr := s.balance.Credit(sctx, req.UserID, req.Amount); cerr != nil {
			s.logger.Error("Compensation failed, funds left in limbo",
				"transaction_id", tx.ID,
				"user_id", req.UserID,
				"amount", req.Amount.String(),
				"error", cerr,
				"requires_reconciliation", true)
			return nil, false, s.fail(sctx, tx, base.RevertFailed(), err)
		}
		return nil, false, s.fail(sctx, tx, base.Reverted(), err)
	}

	metrics.ContributionCount.Inc()
	s.commit(sctx, tx, key)
	return tx, false, nil
}

// InterbankTransfer sends funds to an account at a peer institution. The
// peer confirms before the debit so that a debit only ever runs against a
// confirmed external acceptance.
func (s *Service) InterbankTransfer(ctx context.Context, key uuid.UUID, req *entities.InterbankTransferRequest) (*entities.Transaction, bool, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, false, err
	}
	if !s.bankSupported(req.ToBank) {
		return nil, false, domainerrors.ValidationError("to_bank",
			"destination bank is not supported")
	}

	tx, replay, err := s.begin(ctx, key, func() (*entities.Transaction, error) {
		return s.newTransaction(
			req.UserID, entities.TransactionTypeTransfer,
			entities.WalletTypeIndividual, req.UserID,
			entities.WalletTypeExternalBank, req.DestinationPhoneNumber,
			req.Amount, map[string]interface{}{
				"destination_bank": req.ToBank,
			}), nil
	})
	if err != nil || replay {
		return tx, replay, err
	}

	sctx := context.WithoutCancel(ctx)

	if err := s.balance.CheckFunds(sctx, req.UserID, req.Amount); err != nil {
		return nil, false, s.fail(sctx, tx, classifyBalanceError(err), err)
	}

	remoteID, err := s.interbank.SendTransfer(sctx, tx.ID, req.UserID, req.ToBank,
		req.DestinationPhoneNumber, req.Amount, s.cfg.Currency)
	if err != nil {
		return nil, false, s.failInterbank(sctx, tx, err)
	}
	s.addMetadata(tx, "remote_transaction_id", remoteID)

	if err := s.balance.Debit(sctx, req.UserID, req.Amount); err != nil {
		// Value promised externally but not captured locally. Never
		// compensated automatically: reversing the external side is a
		// manual operation.
		s.logger.Error("Debit failed after external confirmation",
			"transaction_id", tx.ID,
			"remote_transaction_id", remoteID,
			"user_id", req.UserID,
			"amount", req.Amount.String(),
			"error", err,
			"requires_reconciliation", true)
		return nil, false, s.fail(sctx, tx, entities.StatusFailedDebitPostConfirmation,
			domainerrors.InternalError("debit failed after the peer confirmed the transfer", err))
	}

	metrics.TransferCount.Inc()
	s.commit(sctx, tx, key)
	return tx, false, nil
}

func (s *Service) failInterbank(ctx context.Context, tx *entities.Transaction, err error) error {
	var rejection *interbank.RejectionError
	if errors.As(err, &rejection) {
		status := rejection.Status()
		if rejection.StatusCode >= 500 {
			return s.fail(ctx, tx, status,
				domainerrors.ServiceUnavailableError("interbank", err))
		}
		cause := &domainerrors.DomainError{
			Err:     domainerrors.ErrInvalidInput,
			Code:    rejection.ErrorCode,
			Message: rejection.Message,
		}
		if cause.Code == "" {
			cause.Code = "REMOTE_REJECTED"
		}
		if cause.Message == "" {
			cause.Message = "transfer rejected by the destination bank"
		}
		return s.fail(ctx, tx, status, cause)
	}
	if errors.Is(err, interbank.ErrNetwork) {
		return s.fail(ctx, tx, entities.StatusFailedNetwork,
			domainerrors.ServiceUnavailableError("interbank", err))
	}
	return s.fail(ctx, tx, entities.StatusFailedUnknown,
		domainerrors.InternalError("interbank transfer failed", err))
}

func (s *Service) bankSupported(bank string) bool {
	for _, b := range s.cfg.SupportedBanks {
		if b == bank {
			return true
		}
	}
	return false
}

// History returns the caller's most recent transactions, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]*entities.Transaction, error) {
	txs, err := s.store.ListByUser(ctx, userID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, domainerrors.ServiceUnavailableError("event store", err)
	}
	return txs, nil
}
