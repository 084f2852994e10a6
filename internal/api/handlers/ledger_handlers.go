package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pixel-money/pixel-money/internal/domain/entities"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

var validate = validator.New()

// LedgerService is the orchestrator surface the handlers call into.
type LedgerService interface {
	Deposit(ctx context.Context, key uuid.UUID, req *entities.DepositRequest) (*entities.Transaction, bool, error)
	P2PTransfer(ctx context.Context, key uuid.UUID, req *entities.P2PTransferRequest) (*entities.Transaction, bool, error)
	Contribute(ctx context.Context, key uuid.UUID, req *entities.ContributionRequest) (*entities.Transaction, bool, error)
	InterbankTransfer(ctx context.Context, key uuid.UUID, req *entities.InterbankTransferRequest) (*entities.Transaction, bool, error)
	History(ctx context.Context, userID string) ([]*entities.Transaction, error)
}

// LedgerHandler exposes the transaction orchestrator over HTTP.
type LedgerHandler struct {
	service LedgerService
	logger  *logger.Logger
}

func NewLedgerHandler(service LedgerService, log *logger.Logger) *LedgerHandler {
	return &LedgerHandler{
		service: service,
		logger:  log,
	}
}

// Deposit handles POST /deposit
func (h *LedgerHandler) Deposit(c *gin.Context) {
	var req entities.DepositRequest
	if !bindRequest(c, &req) {
		return
	}
	key, err := getIdempotencyKey(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	tx, replay, err := h.service.Deposit(c.Request.Context(), key, &req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	h.respondRecord(c, tx, replay)
}

// P2PTransfer handles POST /transfer/p2p
func (h *LedgerHandler) P2PTransfer(c *gin.Context) {
	var req entities.P2PTransferRequest
	if !bindRequest(c, &req) {
		return
	}
	key, err := getIdempotencyKey(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	tx, replay, err := h.service.P2PTransfer(c.Request.Context(), key, &req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	h.respondRecord(c, tx, replay)
}

// Contribute handles POST /contribute
func (h *LedgerHandler) Contribute(c *gin.Context) {
	var req entities.ContributionRequest
	if !bindRequest(c, &req) {
		return
	}
	key, err := getIdempotencyKey(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	tx, replay, err := h.service.Contribute(c.Request.Context(), key, &req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	h.respondRecord(c, tx, replay)
}

// InterbankTransfer handles POST /transfer
func (h *LedgerHandler) InterbankTransfer(c *gin.Context) {
	var req entities.InterbankTransferRequest
	if !bindRequest(c, &req) {
		return
	}
	key, err := getIdempotencyKey(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	tx, replay, err := h.service.InterbankTransfer(c.Request.Context(), key, &req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	h.respondRecord(c, tx, replay)
}

// History handles GET /transactions/me
func (h *LedgerHandler) History(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	txs, err := h.service.History(c.Request.Context(), userID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if txs == nil {
		txs = []*entities.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// respondRecord writes the transaction record. A replayed key returns the
// originally bound record with the same status code as the first call.
func (h *LedgerHandler) respondRecord(c *gin.Context, tx *entities.Transaction, replay bool) {
	if replay {
		c.Header("Idempotent-Replay", "true")
	}
	c.JSON(http.StatusCreated, tx)
}

// bindRequest decodes and validates a JSON body. Returns false after
// writing the 400 response when the body is unusable.
func bindRequest(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondBadRequest(c, "invalid request body")
		return false
	}
	if err := validate.Struct(req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error(), nil)
		return false
	}
	return true
}
