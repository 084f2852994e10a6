package eventstore

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/inf.v0"

	"github.com/pixel-money/pixel-money/internal/domain/entities"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

// ErrNotFound is returned when a transaction or idempotency binding does
// not exist.
var ErrNotFound = errors.New("eventstore: not found")

// TransactionStore persists transaction events and idempotency bindings.
// Every event is written twice: keyed by id for direct lookup, and keyed
// by (user_id, created_at DESC) for history scans. The two writes always
// travel in one logged batch.
type TransactionStore struct {
	session  *gocql.Session
	keyspace string
	logger   *logger.Logger
}

func NewTransactionStore(session *gocql.Session, keyspace string, log *logger.Logger) *TransactionStore {
	return &TransactionStore{
		session:  session,
		keyspace: keyspace,
		logger:   log,
	}
}

func toInfDec(d decimal.Decimal) *inf.Dec {
	return inf.NewDecBig(d.Coefficient(), inf.Scale(-d.Exponent()))
}

func fromInfDec(d *inf.Dec) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	unscaled := new(big.Int).Set(d.UnscaledBig())
	return decimal.NewFromBigInt(unscaled, -int32(d.Scale()))
}

func (s *TransactionStore) insertByIDCQL() string {
	return fmt.Sprintf(`INSERT INTO %s.transactions (
		id, user_id, source_wallet_type, source_wallet_id,
		destination_wallet_type, destination_wallet_id, type, amount,
		currency, status, created_at, updated_at, metadata
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.keyspace)
}

func (s *TransactionStore) insertByUserCQL() string {
	return fmt.Sprintf(`INSERT INTO %s.transactions_by_user (
		user_id, created_at, id, source_wallet_type, source_wallet_id,
		destination_wallet_type, destination_wallet_id, type, amount,
		currency, status, updated_at, metadata
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.keyspace)
}

func (s *TransactionStore) appendInsert(batch *gocql.Batch, tx *entities.Transaction) {
	batch.Query(s.insertByIDCQL(),
		gocql.UUID(tx.ID), tx.UserID,
		string(tx.SourceWalletType), tx.SourceWalletID,
		string(tx.DestinationWalletType), tx.DestinationWalletID,
		string(tx.Type), toInfDec(tx.Amount), tx.Currency,
		string(tx.Status), tx.CreatedAt, tx.UpdatedAt, tx.Metadata)
	batch.Query(s.insertByUserCQL(),
		tx.UserID, tx.CreatedAt, gocql.UUID(tx.ID),
		string(tx.SourceWalletType), tx.SourceWalletID,
		string(tx.DestinationWalletType), tx.DestinationWalletID,
		string(tx.Type), toInfDec(tx.Amount), tx.Currency,
		string(tx.Status), tx.UpdatedAt, tx.Metadata)
}

// Insert writes a new event record to both tables atomically.
func (s *TransactionStore) Insert(ctx context.Context, tx *entities.Transaction) error {
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	s.appendInsert(batch, tx)
	if err := s.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	return nil
}

// UpdateStatus moves a transaction to a new status in both tables and
// refreshes metadata. The caller is responsible for only moving forward
// through the state machine; the store does not re-read before writing.
func (s *TransactionStore) UpdateStatus(ctx context.Context, tx *entities.Transaction, status entities.TransactionStatus) error {
	now := time.Now().UTC()
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(fmt.Sprintf(
		`UPDATE %s.transactions SET status = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		s.keyspace),
		string(status), tx.Metadata, now, gocql.UUID(tx.ID))
	batch.Query(fmt.Sprintf(
		`UPDATE %s.transactions_by_user SET status = ?, metadata = ?, updated_at = ?
		 WHERE user_id = ? AND created_at = ? AND id = ?`,
		s.keyspace),
		string(status), tx.Metadata, now, tx.UserID, tx.CreatedAt, gocql.UUID(tx.ID))
	if err := s.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("update transaction %s to %s: %w", tx.ID, status, err)
	}
	tx.Status = status
	tx.UpdatedAt = now
	return nil
}

// Commit finalizes a successful saga in one logged batch: the primary
// event moves to its terminal status, any companion events (the P2P credit
// side) are inserted, and the idempotency key is bound to the primary
// transaction id. The binding travels in the same batch as the status
// write because the binding is what commits the decision.
func (s *TransactionStore) Commit(ctx context.Context, tx *entities.Transaction, status entities.TransactionStatus, key uuid.UUID, companions ...*entities.Transaction) error {
	now := time.Now().UTC()
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(fmt.Sprintf(
		`UPDATE %s.transactions SET status = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		s.keyspace),
		string(status), tx.Metadata, now, gocql.UUID(tx.ID))
	batch.Query(fmt.Sprintf(
		`UPDATE %s.transactions_by_user SET status = ?, metadata = ?, updated_at = ?
		 WHERE user_id = ? AND created_at = ? AND id = ?`,
		s.keyspace),
		string(status), tx.Metadata, now, tx.UserID, tx.CreatedAt, gocql.UUID(tx.ID))
	for _, companion := range companions {
		s.appendInsert(batch, companion)
	}
	batch.Query(fmt.Sprintf(
		`INSERT INTO %s.idempotency_keys (key, transaction_id) VALUES (?, ?)`,
		s.keyspace),
		gocql.UUID(key), gocql.UUID(tx.ID))
	if err := s.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("commit transaction %s: %w", tx.ID, err)
	}
	tx.Status = status
	tx.UpdatedAt = now
	return nil
}

const txColumns = `id, user_id, source_wallet_type, source_wallet_id,
	destination_wallet_type, destination_wallet_id, type, amount, currency,
	status, created_at, updated_at, metadata`

func (s *TransactionStore) scanTransaction(scan func(...interface{}) error) (*entities.Transaction, error) {
	var (
		id                  gocql.UUID
		tx                  entities.Transaction
		srcType, dstType    string
		txType, status      string
		amount              inf.Dec
	)
	err := scan(&id, &tx.UserID, &srcType, &tx.SourceWalletID,
		&dstType, &tx.DestinationWalletID, &txType, &amount, &tx.Currency,
		&status, &tx.CreatedAt, &tx.UpdatedAt, &tx.Metadata)
	if err != nil {
		return nil, err
	}
	tx.ID = uuid.UUID(id)
	tx.SourceWalletType = entities.WalletType(srcType)
	tx.DestinationWalletType = entities.WalletType(dstType)
	tx.Type = entities.TransactionType(txType)
	tx.Status = entities.TransactionStatus(status)
	tx.Amount = fromInfDec(&amount)
	return &tx, nil
}

// GetByID fetches one event record by transaction id.
func (s *TransactionStore) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	q := s.session.Query(fmt.Sprintf(
		`SELECT %s FROM %s.transactions WHERE id = ?`, txColumns, s.keyspace),
		gocql.UUID(id)).WithContext(ctx)
	tx, err := s.scanTransaction(q.Scan)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

// ListByUser returns the caller's history, newest first.
func (s *TransactionStore) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	iter := s.session.Query(fmt.Sprintf(
		`SELECT id, user_id, source_wallet_type, source_wallet_id,
			destination_wallet_type, destination_wallet_id, type, amount,
			currency, status, created_at, updated_at, metadata
		 FROM %s.transactions_by_user WHERE user_id = ? LIMIT ?`, s.keyspace),
		userID, limit).WithContext(ctx).Iter()

	var out []*entities.Transaction
	for {
		var (
			id               gocql.UUID
			tx               entities.Transaction
			srcType, dstType string
			txType, status   string
			amount           inf.Dec
		)
		if !iter.Scan(&id, &tx.UserID, &srcType, &tx.SourceWalletID,
			&dstType, &tx.DestinationWalletID, &txType, &amount, &tx.Currency,
			&status, &tx.CreatedAt, &tx.UpdatedAt, &tx.Metadata) {
			break
		}
		tx.ID = uuid.UUID(id)
		tx.SourceWalletType = entities.WalletType(srcType)
		tx.DestinationWalletType = entities.WalletType(dstType)
		tx.Type = entities.TransactionType(txType)
		tx.Status = entities.TransactionStatus(status)
		tx.Amount = fromInfDec(&amount)
		cp := tx
		out = append(out, &cp)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list transactions for user %s: %w", userID, err)
	}
	return out, nil
}

// ListByStatus returns transactions currently in the given status. Served
// by the secondary index; used only by the reconciliation sweeper, never
// on the request path.
func (s *TransactionStore) ListByStatus(ctx context.Context, status entities.TransactionStatus, limit int) ([]*entities.Transaction, error) {
	iter := s.session.Query(fmt.Sprintf(
		`SELECT %s FROM %s.transactions WHERE status = ? LIMIT ?`, txColumns, s.keyspace),
		string(status), limit).WithContext(ctx).Iter()

	var out []*entities.Transaction
	for {
		var (
			id               gocql.UUID
			tx               entities.Transaction
			srcType, dstType string
			txType, st       string
			amount           inf.Dec
		)
		if !iter.Scan(&id, &tx.UserID, &srcType, &tx.SourceWalletID,
			&dstType, &tx.DestinationWalletID, &txType, &amount, &tx.Currency,
			&st, &tx.CreatedAt, &tx.UpdatedAt, &tx.Metadata) {
			break
		}
		tx.ID = uuid.UUID(id)
		tx.SourceWalletType = entities.WalletType(srcType)
		tx.DestinationWalletType = entities.WalletType(dstType)
		tx.Type = entities.TransactionType(txType)
		tx.Status = entities.TransactionStatus(st)
		tx.Amount = fromInfDec(&amount)
		cp := tx
		out = append(out, &cp)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list transactions with status %s: %w", status, err)
	}
	return out, nil
}

// LookupIdempotencyKey resolves a caller key to the transaction id it
// bound to. Returns ErrNotFound when the key was never committed.
func (s *TransactionStore) LookupIdempotencyKey(ctx context.Context, key uuid.UUID) (uuid.UUID, error) {
	var txID gocql.UUID
	err := s.session.Query(fmt.Sprintf(
		`SELECT transaction_id FROM %s.idempotency_keys WHERE key = ?`, s.keyspace),
		gocql.UUID(key)).WithContext(ctx).Scan(&txID)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("lookup idempotency key %s: %w", key, err)
	}
	return uuid.UUID(txID), nil
}

// BindIdempotencyKey records the key→transaction binding outside of a
// commit batch. Used when the saga outcome is ambiguous but the record
// must still be findable by key.
func (s *TransactionStore) BindIdempotencyKey(ctx context.Context, key, txID uuid.UUID) error {
	err := s.session.Query(fmt.Sprintf(
		`INSERT INTO %s.idempotency_keys (key, transaction_id) VALUES (?, ?)`, s.keyspace),
		gocql.UUID(key), gocql.UUID(txID)).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("bind idempotency key %s: %w", key, err)
	}
	return nil
}

// HealthCheck verifies the session can reach the cluster.
func (s *TransactionStore) HealthCheck(ctx context.Context) error {
	return s.session.Query(`SELECT now() FROM system.local`).WithContext(ctx).Exec()
}
