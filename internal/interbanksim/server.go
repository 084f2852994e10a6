// Package interbanksim is a stand-in for the Happy Money peer bank. It
// implements the interbank transfer contract with deterministic accept
// and reject rules so local stacks and end-to-end tests can exercise
// every branch of the outbound transfer saga.
package interbanksim

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pixel-money/pixel-money/internal/api/middleware"
	"github.com/pixel-money/pixel-money/pkg/logger"
	"github.com/pixel-money/pixel-money/pkg/metrics"
)

// Config carries the simulator's rules.
type Config struct {
	ExpectedAPIKey string
	BankCode       string
	TransferLimit  decimal.Decimal
}

// Handler implements the peer bank's transfer endpoint.
type Handler struct {
	cfg    Config
	logger *logger.Logger
}

func NewHandler(cfg Config, log *logger.Logger) *Handler {
	return &Handler{
		cfg:    cfg,
		logger: log,
	}
}

type transferRequest struct {
	OriginBank             string          `json:"origin_bank"`
	OriginAccountID        string          `json:"origin_account_id"`
	DestinationBank        string          `json:"destination_bank"`
	DestinationPhoneNumber string          `json:"destination_phone_number"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency"`
	TransactionID          string          `json:"transaction_id"`
	Description            string          `json:"description"`
}

func reject(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"status":     "REJECTED",
		"error_code": code,
		"message":    message,
	})
}

// Transfer handles POST /interbank/transfers.
func (h *Handler) Transfer(c *gin.Context) {
	if c.GetHeader("X-API-Key") != h.cfg.ExpectedAPIKey {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":     "REJECTED",
			"error_code": "INVALID_API_KEY",
			"message":    "invalid or missing API key",
		})
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		reject(c, http.StatusBadRequest, "INVALID_REQUEST", "malformed transfer request")
		return
	}

	if req.DestinationBank != h.cfg.BankCode {
		reject(c, http.StatusBadRequest, "INVALID_DESTINATION_BANK",
			"this institution only settles transfers addressed to "+h.cfg.BankCode)
		return
	}
	if req.Amount.GreaterThan(h.cfg.TransferLimit) {
		reject(c, http.StatusBadRequest, "AMOUNT_LIMIT_EXCEEDED",
			"amount exceeds the per-transfer limit of "+h.cfg.TransferLimit.String())
		return
	}
	if strings.HasPrefix(req.DestinationPhoneNumber, "999") {
		reject(c, http.StatusNotFound, "ACCOUNT_NOT_FOUND",
			"no account is registered for the destination phone number")
		return
	}
	if strings.HasPrefix(req.DestinationPhoneNumber, "988") {
		reject(c, http.StatusForbidden, "ACCOUNT_BLOCKED",
			"the destination account cannot receive transfers")
		return
	}

	remoteID := "HAPPY-" + uuid.New().String()
	h.logger.Info("Transfer accepted",
		"remote_transaction_id", remoteID,
		"correlation_id", req.TransactionID,
		"origin_bank", req.OriginBank,
		"amount", req.Amount.String())

	c.JSON(http.StatusCreated, gin.H{
		"status":                "ACCEPTED",
		"remote_transaction_id": remoteID,
	})
}

// SetupRoutes builds the simulator's HTTP surface.
func SetupRoutes(handler *Handler, log *logger.Logger) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(metrics.Middleware("interbanksim"))
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "interbanksim", "status": "healthy"})
	})
	router.GET("/metrics", metrics.Handler())
	router.POST("/interbank/transfers", handler.Transfer)

	return router
}
