package balance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixel-money/pixel-money/internal/domain/entities"
	domainerrors "github.com/pixel-money/pixel-money/internal/domain/errors"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

// fakeStore mirrors the repository's locking discipline in memory: every
// mutation holds the store lock for the whole read-check-write cycle.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]*entities.Account
	groups   map[string]*entities.GroupAccount
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]*entities.Account),
		groups:   make(map[string]*entities.GroupAccount),
	}
}

func (s *fakeStore) CreateAccount(ctx context.Context, userID, currency string) (*entities.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[userID]; ok {
		return nil, domainerrors.AlreadyExistsError("account")
	}
	account := &entities.Account{
		ID:        int64(len(s.accounts) + 1),
		UserID:    userID,
		Balance:   decimal.Zero,
		Currency:  currency,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.accounts[userID] = account
	copy := *account
	return &copy, nil
}

func (s *fakeStore) GetAccount(ctx context.Context, userID string) (*entities.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[userID]
	if !ok {
		return nil, domainerrors.NotFoundError("account")
	}
	copy := *account
	return &copy, nil
}

func (s *fakeStore) CreditAccount(ctx context.Context, userID string, amount decimal.Decimal) (*entities.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[userID]
	if !ok {
		return nil, domainerrors.NotFoundError("account")
	}
	account.Balance = account.Balance.Add(amount)
	copy := *account
	return &copy, nil
}

func (s *fakeStore) DebitAccount(ctx context.Context, userID string, amount decimal.Decimal) (*entities.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[userID]
	if !ok {
		return nil, domainerrors.NotFoundError("account")
	}
	if account.Balance.LessThan(amount) {
		return nil, domainerrors.InsufficientFundsError("balance does not cover amount")
	}
	account.Balance = account.Balance.Sub(amount)
	copy := *account
	return &copy, nil
}

func (s *fakeStore) CreateGroupAccount(ctx context.Context, groupID, currency string) (*entities.GroupAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; ok {
		return nil, domainerrors.AlreadyExistsError("group account")
	}
	account := &entities.GroupAccount{
		ID:       int64(len(s.groups) + 1),
		GroupID:  groupID,
		Balance:  decimal.Zero,
		Currency: currency,
		Version:  1,
	}
	s.groups[groupID] = account
	copy := *account
	return &copy, nil
}

func (s *fakeStore) GetGroupAccount(ctx context.Context, groupID string) (*entities.GroupAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.groups[groupID]
	if !ok {
		return nil, domainerrors.NotFoundError("group account")
	}
	copy := *account
	return &copy, nil
}

func (s *fakeStore) CreditGroupAccount(ctx context.Context, groupID string, amount decimal.Decimal) (*entities.GroupAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.groups[groupID]
	if !ok {
		return nil, domainerrors.NotFoundError("group account")
	}
	account.Balance = account.Balance.Add(amount)
	account.Version++
	copy := *account
	return &copy, nil
}

func (s *fakeStore) DebitGroupAccount(ctx context.Context, groupID string, amount decimal.Decimal) (*entities.GroupAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.groups[groupID]
	if !ok {
		return nil, domainerrors.NotFoundError("group account")
	}
	if account.Balance.LessThan(amount) {
		return nil, domainerrors.InsufficientFundsError("balance does not cover amount")
	}
	account.Balance = account.Balance.Sub(amount)
	account.Version++
	copy := *account
	return &copy, nil
}

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	return NewService(store, "PEN", logger.NewNop()), store
}

func fundAccount(t *testing.T, svc *Service, userID, balance string) {
	t.Helper()
	_, err := svc.CreateAccount(context.Background(), userID)
	require.NoError(t, err)
	if balance != "0" {
		_, err = svc.Credit(context.Background(), userID, amount(balance))
		require.NoError(t, err)
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateAccount(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = svc.CreateAccount(context.Background(), "user-1")
	assert.True(t, domainerrors.IsAlreadyExists(err))
}

func TestDebitExactBalanceSucceeds(t *testing.T) {
	svc, _ := newTestService(t)
	fundAccount(t, svc, "user-1", "100.00")

	account, err := svc.Debit(context.Background(), "user-1", amount("100.00"))

	require.NoError(t, err)
	assert.True(t, account.Balance.IsZero())
}

func TestDebitOneCentOverBalanceFails(t *testing.T) {
	svc, _ := newTestService(t)
	fundAccount(t, svc, "user-1", "100.00")

	_, err := svc.Debit(context.Background(), "user-1", amount("100.01"))

	assert.True(t, domainerrors.IsInsufficientFunds(err))

	account, err := svc.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(amount("100.00")))
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newTestService(t)
	fundAccount(t, svc, "user-1", "100.00")

	_, err := svc.Debit(context.Background(), "user-1", amount("-5"))
	assert.True(t, domainerrors.IsInvalidInput(err))

	_, err = svc.Debit(context.Background(), "user-1", decimal.Zero)
	assert.True(t, domainerrors.IsInvalidInput(err))
}

func TestDebitMissingAccount(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Debit(context.Background(), "nobody", amount("1.00"))
	assert.True(t, domainerrors.IsNotFound(err))
}

func TestCheckFundsIsAdvisory(t *testing.T) {
	svc, _ := newTestService(t)
	fundAccount(t, svc, "user-1", "10.00")

	sufficient, err := svc.CheckFunds(context.Background(), "user-1", amount("10.00"))
	require.NoError(t, err)
	assert.True(t, sufficient)

	sufficient, err = svc.CheckFunds(context.Background(), "user-1", amount("10.01"))
	require.NoError(t, err)
	assert.False(t, sufficient)

	// The check changes nothing.
	account, err := svc.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(amount("10.00")))
}

func TestConcurrentDebitsAdmitExactlyOneWinner(t *testing.T) {
	svc, _ := newTestService(t)
	fundAccount(t, svc, "user-1", "100.00")

	// Each debit is half the balance plus one cent: both cannot fit.
	debit := amount("50.01")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Debit(context.Background(), "user-1", debit)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, domainerrors.IsInsufficientFunds(err))
		}
	}
	assert.Equal(t, 1, succeeded)

	account, err := svc.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(amount("49.99")))
}

func TestConcurrentMutationsSerialize(t *testing.T) {
	svc, _ := newTestService(t)
	fundAccount(t, svc, "user-1", "1000.00")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Credit(context.Background(), "user-1", amount("1.00"))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Debit(context.Background(), "user-1", amount("1.00"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	account, err := svc.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(amount("1000.00")))
}

func TestGroupContributionFlow(t *testing.T) {
	svc, _ := newTestService(t)
	fundAccount(t, svc, "user-1", "200.00")
	_, err := svc.CreateGroupAccount(context.Background(), "group-1")
	require.NoError(t, err)

	_, err = svc.Debit(context.Background(), "user-1", amount("75.50"))
	require.NoError(t, err)
	group, err := svc.CreditGroup(context.Background(), "group-1", amount("75.50"))
	require.NoError(t, err)

	assert.True(t, group.Balance.Equal(amount("75.50")))
	assert.Equal(t, int64(2), group.Version)

	account, err := svc.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(amount("124.50")))
}

func TestGroupDebitInsufficient(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateGroupAccount(context.Background(), "group-1")
	require.NoError(t, err)

	_, err = svc.DebitGroup(context.Background(), "group-1", amount("0.01"))
	assert.True(t, domainerrors.IsInsufficientFunds(err))
}
