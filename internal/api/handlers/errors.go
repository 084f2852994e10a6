package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/pixel-money/pixel-money/internal/domain/errors"
)

// Error codes as constants for consistent error responses across handlers
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationError    = "VALIDATION_ERROR"
	ErrCodeInvalidAmount      = "INVALID_AMOUNT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAlreadyExists      = "ALREADY_EXISTS"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// respondDomainError maps a domain error category to its HTTP status and
// writes the standard error envelope. Unrecognized errors become 500s.
func respondDomainError(c *gin.Context, err error) {
	code := domainerrors.GetErrorCode(err)
	details := domainerrors.GetErrorDetails(err)

	status := http.StatusInternalServerError
	switch {
	case domainerrors.IsInvalidInput(err), domainerrors.IsInsufficientFunds(err):
		status = http.StatusBadRequest
	case domainerrors.IsNotFound(err):
		status = http.StatusNotFound
	case domainerrors.IsAlreadyExists(err), domainerrors.IsConflict(err):
		status = http.StatusConflict
	case domainerrors.IsServiceUnavailable(err):
		status = http.StatusServiceUnavailable
	}

	respondError(c, status, code, err.Error(), details)
}
