// Package repositories holds the Postgres persistence for the balance
// service. All mutations run inside a transaction holding a row lock; the
// repository is the only place that touches balance columns.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/pixel-money/pixel-money/internal/domain/entities"
	domainerrors "github.com/pixel-money/pixel-money/internal/domain/errors"
)

const uniqueViolation = "23505"

// AccountRepository manages individual and group wallet rows.
type AccountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateAccount inserts a zero-balance row for a new user.
func (r *AccountRepository) CreateAccount(ctx context.Context, userID, currency string) (*entities.Account, error) {
	var account entities.Account
	query := `
		INSERT INTO accounts (user_id, balance, currency, created_at, updated_at)
		VALUES ($1, 0, $2, NOW(), NOW())
		RETURNING id, user_id, balance, currency, created_at, updated_at`

	err := r.db.GetContext(ctx, &account, query, userID, currency)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, domainerrors.AlreadyExistsError("account")
		}
		return nil, fmt.Errorf("create account for user %s: %w", userID, err)
	}
	return &account, nil
}

// GetAccount fetches an individual wallet row without locking it.
func (r *AccountRepository) GetAccount(ctx context.Context, userID string) (*entities.Account, error) {
	var account entities.Account
	query := `SELECT id, user_id, balance, currency, created_at, updated_at
		FROM accounts WHERE user_id = $1`

	err := r.db.GetContext(ctx, &account, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NotFoundError("account")
		}
		return nil, fmt.Errorf("get account for user %s: %w", userID, err)
	}
	return &account, nil
}

// CreditAccount adds funds to an individual wallet under a row lock and
// returns the resulting row.
func (r *AccountRepository) CreditAccount(ctx context.Context, userID string, amount decimal.Decimal) (*entities.Account, error) {
	return r.updateAccount(ctx, userID, amount, false)
}

// DebitAccount removes funds from an individual wallet. The funds check
// runs under the same row lock as the update; it is the only check that
// counts.
func (r *AccountRepository) DebitAccount(ctx context.Context, userID string, amount decimal.Decimal) (*entities.Account, error) {
	return r.updateAccount(ctx, userID, amount, true)
}

func (r *AccountRepository) updateAccount(ctx context.Context, userID string, amount decimal.Decimal, debit bool) (*entities.Account, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin balance update: %w", err)
	}
	defer tx.Rollback()

	var account entities.Account
	err = tx.GetContext(ctx, &account, `
		SELECT id, user_id, balance, currency, created_at, updated_at
		FROM accounts WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NotFoundError("account")
		}
		return nil, fmt.Errorf("lock account for user %s: %w", userID, err)
	}

	newBalance := account.Balance.Add(amount)
	if debit {
		if account.Balance.LessThan(amount) {
			return nil, domainerrors.InsufficientFundsError(
				fmt.Sprintf("balance %s does not cover %s", account.Balance, amount))
		}
		newBalance = account.Balance.Sub(amount)
	}

	err = tx.GetContext(ctx, &account, `
		UPDATE accounts SET balance = $1, updated_at = NOW()
		WHERE user_id = $2
		RETURNING id, user_id, balance, currency, created_at, updated_at`,
		newBalance, userID)
	if err != nil {
		return nil, fmt.Errorf("update balance for user %s: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit balance update: %w", err)
	}
	return &account, nil
}

// CreateGroupAccount inserts a zero-balance row for a new group.
func (r *AccountRepository) CreateGroupAccount(ctx context.Context, groupID, currency string) (*entities.GroupAccount, error) {
	var account entities.GroupAccount
	query := `
		INSERT INTO group_accounts (group_id, balance, currency, version, created_at, updated_at)
		VALUES ($1, 0, $2, 1, NOW(), NOW())
		RETURNING id, group_id, balance, currency, version, created_at, updated_at`

	err := r.db.GetContext(ctx, &account, query, groupID, currency)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, domainerrors.AlreadyExistsError("group account")
		}
		return nil, fmt.Errorf("create group account %s: %w", groupID, err)
	}
	return &account, nil
}

// GetGroupAccount fetches a group wallet row without locking it.
func (r *AccountRepository) GetGroupAccount(ctx context.Context, groupID string) (*entities.GroupAccount, error) {
	var account entities.GroupAccount
	query := `SELECT id, group_id, balance, currency, version, created_at, updated_at
		FROM group_accounts WHERE group_id = $1`

	err := r.db.GetContext(ctx, &account, query, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NotFoundError("group account")
		}
		return nil, fmt.Errorf("get group account %s: %w", groupID, err)
	}
	return &account, nil
}

// CreditGroupAccount adds funds to a group wallet. Bumps the version row
// counter alongside the balance.
func (r *AccountRepository) CreditGroupAccount(ctx context.Context, groupID string, amount decimal.Decimal) (*entities.GroupAccount, error) {
	return r.updateGroupAccount(ctx, groupID, amount, false)
}

// DebitGroupAccount removes funds from a group wallet.
func (r *AccountRepository) DebitGroupAccount(ctx context.Context, groupID string, amount decimal.Decimal) (*entities.GroupAccount, error) {
	return r.updateGroupAccount(ctx, groupID, amount, true)
}

func (r *AccountRepository) updateGroupAccount(ctx context.Context, groupID string, amount decimal.Decimal, debit bool) (*entities.GroupAccount, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin group balance update: %w", err)
	}
	defer tx.Rollback()

	var account entities.GroupAccount
	err = tx.GetContext(ctx, &account, `
		SELECT id, group_id, balance, currency, version, created_at, updated_at
		FROM group_accounts WHERE group_id = $1 FOR UPDATE`, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NotFoundError("group account")
		}
		return nil, fmt.Errorf("lock group account %s: %w", groupID, err)
	}

	newBalance := account.Balance.Add(amount)
	if debit {
		if account.Balance.LessThan(amount) {
			return nil, domainerrors.InsufficientFundsError(
				fmt.Sprintf("balance %s does not cover %s", account.Balance, amount))
		}
		newBalance = account.Balance.Sub(amount)
	}

	err = tx.GetContext(ctx, &account, `
		UPDATE group_accounts SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE group_id = $2
		RETURNING id, group_id, balance, currency, version, created_at, updated_at`,
		newBalance, groupID)
	if err != nil {
		return nil, fmt.Errorf("update group balance %s: %w", groupID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit group balance update: %w", err)
	}
	return &account, nil
}
