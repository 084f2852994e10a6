package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pixel-money/pixel-money/internal/domain/entities"
	domainerrors "github.com/pixel-money/pixel-money/internal/domain/errors"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

type MockBalanceService struct {
	mock.Mock
}

func (m *MockBalanceService) CreateAccount(ctx context.Context, userID string) (*entities.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockBalanceService) GetBalance(ctx context.Context, userID string) (*entities.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockBalanceService) CheckFunds(ctx context.Context, userID string, amount decimal.Decimal) (bool, error) {
	args := m.Called(ctx, userID, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockBalanceService) Credit(ctx context.Context, userID string, amount decimal.Decimal) (*entities.Account, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockBalanceService) Debit(ctx context.Context, userID string, amount decimal.Decimal) (*entities.Account, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockBalanceService) CreateGroupAccount(ctx context.Context, groupID string) (*entities.GroupAccount, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GroupAccount), args.Error(1)
}

func (m *MockBalanceService) GetGroupBalance(ctx context.Context, groupID string) (*entities.GroupAccount, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GroupAccount), args.Error(1)
}

func (m *MockBalanceService) CreditGroup(ctx context.Context, groupID string, amount decimal.Decimal) (*entities.GroupAccount, error) {
	args := m.Called(ctx, groupID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GroupAccount), args.Error(1)
}

func (m *MockBalanceService) DebitGroup(ctx context.Context, groupID string, amount decimal.Decimal) (*entities.GroupAccount, error) {
	args := m.Called(ctx, groupID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GroupAccount), args.Error(1)
}

func newBalanceRouter(service BalanceService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewBalanceHandler(service, logger.NewNop())
	router := gin.New()
	router.POST("/accounts", handler.CreateAccount)
	router.GET("/balance/:user_id", handler.GetBalance)
	router.POST("/balance/check", handler.CheckFunds)
	router.POST("/balance/debit", handler.Debit)
	return router
}

func postBody(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAccountDuplicateMapsTo409(t *testing.T) {
	service := new(MockBalanceService)
	router := newBalanceRouter(service)
	service.On("CreateAccount", mock.Anything, "user-1").
		Return(nil, domainerrors.AlreadyExistsError("account"))

	w := postBody(t, router, "/accounts", map[string]string{"user_id": "user-1"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateAccountReturns201(t *testing.T) {
	service := new(MockBalanceService)
	router := newBalanceRouter(service)
	service.On("CreateAccount", mock.Anything, "user-1").
		Return(&entities.Account{ID: 1, UserID: "user-1", Balance: decimal.Zero}, nil)

	w := postBody(t, router, "/accounts", map[string]string{"user_id": "user-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestGetBalanceUnknownUserMapsTo404(t *testing.T) {
	service := new(MockBalanceService)
	router := newBalanceRouter(service)
	service.On("GetBalance", mock.Anything, "nobody").
		Return(nil, domainerrors.NotFoundError("account"))

	req := httptest.NewRequest(http.MethodGet, "/balance/nobody", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDebitInsufficientFundsMapsTo400(t *testing.T) {
	service := new(MockBalanceService)
	router := newBalanceRouter(service)
	service.On("Debit", mock.Anything, "user-1", mock.Anything).
		Return(nil, domainerrors.InsufficientFundsError("balance does not cover amount"))

	w := postBody(t, router, "/balance/debit",
		map[string]interface{}{"user_id": "user-1", "amount": "10.00"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var out entities.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "INSUFFICIENT_FUNDS", out.Code)
}

func TestCheckFundsCoveredReturns200(t *testing.T) {
	service := new(MockBalanceService)
	router := newBalanceRouter(service)
	service.On("CheckFunds", mock.Anything, "user-1", mock.Anything).Return(true, nil)

	w := postBody(t, router, "/balance/check",
		map[string]interface{}{"user_id": "user-1", "amount": "10.00"})

	assert.Equal(t, http.StatusOK, w.Code)
	var out map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out["sufficient"])
}

func TestCheckFundsUncoveredMapsTo400(t *testing.T) {
	service := new(MockBalanceService)
	router := newBalanceRouter(service)
	service.On("CheckFunds", mock.Anything, "user-1", mock.Anything).Return(false, nil)

	w := postBody(t, router, "/balance/check",
		map[string]interface{}{"user_id": "user-1", "amount": "10.00"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var out entities.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "INSUFFICIENT_FUNDS", out.Code)
}
