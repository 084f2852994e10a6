package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/pixel-money/pixel-money/internal/domain/entities"
	domainerrors "github.com/pixel-money/pixel-money/internal/domain/errors"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

// BalanceService is the balance authority surface the handlers call into.
type BalanceService interface {
	CreateAccount(ctx context.Context, userID string) (*entities.Account, error)
	GetBalance(ctx context.Context, userID string) (*entities.Account, error)
	CheckFunds(ctx context.Context, userID string, amount decimal.Decimal) (bool, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal) (*entities.Account, error)
	Debit(ctx context.Context, userID string, amount decimal.Decimal) (*entities.Account, error)
	CreateGroupAccount(ctx context.Context, groupID string) (*entities.GroupAccount, error)
	GetGroupBalance(ctx context.Context, groupID string) (*entities.GroupAccount, error)
	CreditGroup(ctx context.Context, groupID string, amount decimal.Decimal) (*entities.GroupAccount, error)
	DebitGroup(ctx context.Context, groupID string, amount decimal.Decimal) (*entities.GroupAccount, error)
}

// BalanceHandler exposes the balance authority over HTTP.
type BalanceHandler struct {
	service BalanceService
	logger  *logger.Logger
}

func NewBalanceHandler(service BalanceService, log *logger.Logger) *BalanceHandler {
	return &BalanceHandler{
		service: service,
		logger:  log,
	}
}

// CreateAccount handles POST /accounts
func (h *BalanceHandler) CreateAccount(c *gin.Context) {
	var req entities.CreateAccountRequest
	if !bindRequest(c, &req) {
		return
	}

	account, err := h.service.CreateAccount(c.Request.Context(), req.UserID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

// GetBalance handles GET /balance/:user_id
func (h *BalanceHandler) GetBalance(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		respondBadRequest(c, "user_id is required")
		return
	}

	account, err := h.service.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// CheckFunds handles POST /balance/check. An uncovered balance is a 400,
// the same shape a debit rejection takes; callers treat the two
// identically.
func (h *BalanceHandler) CheckFunds(c *gin.Context) {
	var req entities.BalanceCheckRequest
	if !bindRequest(c, &req) {
		return
	}

	sufficient, err := h.service.CheckFunds(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if !sufficient {
		respondDomainError(c, domainerrors.InsufficientFundsError(
			"balance does not cover the requested amount"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sufficient": true})
}

// Credit handles POST /balance/credit
func (h *BalanceHandler) Credit(c *gin.Context) {
	var req entities.BalanceUpdateRequest
	if !bindRequest(c, &req) {
		return
	}

	account, err := h.service.Credit(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// Debit handles POST /balance/debit
func (h *BalanceHandler) Debit(c *gin.Context) {
	var req entities.BalanceUpdateRequest
	if !bindRequest(c, &req) {
		return
	}

	account, err := h.service.Debit(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// CreateGroupAccount handles POST /group_accounts
func (h *BalanceHandler) CreateGroupAccount(c *gin.Context) {
	var req entities.CreateGroupAccountRequest
	if !bindRequest(c, &req) {
		return
	}

	account, err := h.service.CreateGroupAccount(c.Request.Context(), req.GroupID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

// GetGroupBalance handles GET /group_balance/:group_id
func (h *BalanceHandler) GetGroupBalance(c *gin.Context) {
	groupID := c.Param("group_id")
	if groupID == "" {
		respondBadRequest(c, "group_id is required")
		return
	}

	account, err := h.service.GetGroupBalance(c.Request.Context(), groupID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// CreditGroup handles POST /group_balance/credit
func (h *BalanceHandler) CreditGroup(c *gin.Context) {
	var req entities.GroupBalanceUpdateRequest
	if !bindRequest(c, &req) {
		return
	}

	account, err := h.service.CreditGroup(c.Request.Context(), req.GroupID, req.Amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// DebitGroup handles POST /group_balance/debit
func (h *BalanceHandler) DebitGroup(c *gin.Context) {
	var req entities.GroupBalanceUpdateRequest
	if !bindRequest(c, &req) {
		return
	}

	account, err := h.service.DebitGroup(c.Request.Context(), req.GroupID, req.Amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}
