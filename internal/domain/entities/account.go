package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the balance of an individual wallet (BDI). One per user,
// created when the user registers, never deleted.
type Account struct {
	ID        int64           `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"user_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Currency  string          `db:"currency" json:"currency"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// GroupAccount holds the balance of a group wallet (BDG). The version
// column is bumped on every mutation as a conflict tripwire on top of the
// row lock.
type GroupAccount struct {
	ID        int64           `db:"id" json:"id"`
	GroupID   string          `db:"group_id" json:"group_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Currency  string          `db:"currency" json:"currency"`
	Version   int64           `db:"version" json:"version"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// CreateAccountRequest registers a balance row for a new user.
type CreateAccountRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// CreateGroupAccountRequest registers a balance row for a new group.
type CreateGroupAccountRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

// BalanceUpdateRequest credits or debits an individual wallet.
type BalanceUpdateRequest struct {
	UserID string          `json:"user_id" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// BalanceCheckRequest asks whether an individual wallet covers an amount.
// Advisory only; the authoritative check runs under the row lock.
type BalanceCheckRequest struct {
	UserID string          `json:"user_id" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// GroupBalanceUpdateRequest credits or debits a group wallet.
type GroupBalanceUpdateRequest struct {
	GroupID string          `json:"group_id" validate:"required"`
	Amount  decimal.Decimal `json:"amount" validate:"required"`
}
