// Package balance implements the balance authority: the single writer for
// wallet balances. Every mutation is validated here and serialized by a
// row lock in the repository below it.
package balance

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/pixel-money/pixel-money/internal/domain/entities"
	domainerrors "github.com/pixel-money/pixel-money/internal/domain/errors"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

// AccountStore is the persistence surface the service needs.
type AccountStore interface {
	CreateAccount(ctx context.Context, userID, currency string) (*entities.Account, error)
	GetAccount(ctx context.Context, userID string) (*entities.Account, error)
	CreditAccount(ctx context.Context, userID string, amount decimal.Decimal) (*entities.Account, error)
	DebitAccount(ctx context.Context, userID string, amount decimal.Decimal) (*entities.Account, error)
	CreateGroupAccount(ctx context.Context, groupID, currency string) (*entities.GroupAccount, error)
	GetGroupAccount(ctx context.Context, groupID string) (*entities.GroupAccount, error)
	CreditGroupAccount(ctx context.Context, groupID string, amount decimal.Decimal) (*entities.GroupAccount, error)
	DebitGroupAccount(ctx context.Context, groupID string, amount decimal.Decimal) (*entities.GroupAccount, error)
}

// Service is the balance authority business layer.
type Service struct {
	store    AccountStore
	currency string
	logger   *logger.Logger
}

func NewService(store AccountStore, currency string, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		currency: currency,
		logger:   log,
	}
}

func validateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domainerrors.ValidationError("amount", "amount must be positive")
	}
	return nil
}

// CreateAccount registers a zero-balance individual wallet.
func (s *Service) CreateAccount(ctx context.Context, userID string) (*entities.Account, error) {
	account, err := s.store.CreateAccount(ctx, userID, s.currency)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Account created", "user_id", userID)
	return account, nil
}

// GetBalance returns the current individual wallet row.
func (s *Service) GetBalance(ctx context.Context, userID string) (*entities.Account, error) {
	return s.store.GetAccount(ctx, userID)
}

// CheckFunds reports whether the wallet currently covers the amount. The
// answer is advisory; a debit can still fail after a positive check.
func (s *Service) CheckFunds(ctx context.Context, userID string, amount decimal.Decimal) (bool, error) {
	if err := validateAmount(amount); err != nil {
		return false, err
	}
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return false, err
	}
	return account.Balance.GreaterThanOrEqual(amount), nil
}

// Credit adds funds to an individual wallet.
func (s *Service) Credit(ctx context.Context, userID string, amount decimal.Decimal) (*entities.Account, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	account, err := s.store.CreditAccount(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Account credited", "user_id", userID, "amount", amount.String())
	return account, nil
}

// Debit removes funds from an individual wallet. Fails with an
// insufficient funds error when the locked balance does not cover the
// amount.
func (s *Service) Debit(ctx context.Context, userID string, amount decimal.Decimal) (*entities.Account, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	account, err := s.store.DebitAccount(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Account debited", "user_id", userID, "amount", amount.String())
	return account, nil
}

// CreateGroupAccount registers a zero-balance group wallet.
func (s *Service) CreateGroupAccount(ctx context.Context, groupID string) (*entities.GroupAccount, error) {
	account, err := s.store.CreateGroupAccount(ctx, groupID, s.currency)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Group account created", "group_id", groupID)
	return account, nil
}

// GetGroupBalance returns the current group wallet row.
func (s *Service) GetGroupBalance(ctx context.Context, groupID string) (*entities.GroupAccount, error) {
	return s.store.GetGroupAccount(ctx, groupID)
}

// CreditGroup adds funds to a group wallet.
func (s *Service) CreditGroup(ctx context.Context, groupID string, amount decimal.Decimal) (*entities.GroupAccount, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	account, err := s.store.CreditGroupAccount(ctx, groupID, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Group account credited", "group_id", groupID, "amount", amount.String())
	return account, nil
}

// DebitGroup removes funds from a group wallet.
func (s *Service) DebitGroup(ctx context.Context, groupID string, amount decimal.Decimal) (*entities.GroupAccount, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	account, err := s.store.DebitGroupAccount(ctx, groupID, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Group account debited", "group_id", groupID, "amount", amount.String())
	return account, nil
}
