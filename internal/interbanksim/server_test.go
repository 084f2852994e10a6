package interbanksim

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixel-money/pixel-money/pkg/logger"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler := NewHandler(Config{
		ExpectedAPIKey: "secret-key",
		BankCode:       "HAPPY_MONEY",
		TransferLimit:  decimal.NewFromInt(10000),
	}, logger.NewNop())
	return SetupRoutes(handler, logger.NewNop())
}

func postTransfer(t *testing.T, router *gin.Engine, apiKey string, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/interbank/transfers", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func validTransfer() map[string]interface{} {
	return map[string]interface{}{
		"origin_bank":              "PIXEL_MONEY",
		"origin_account_id":        "user-1",
		"destination_bank":         "HAPPY_MONEY",
		"destination_phone_number": "987654321",
		"amount":                   "40.00",
		"currency":                 "PEN",
		"transaction_id":           "11111111-1111-1111-1111-111111111111",
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestTransferAccepted(t *testing.T) {
	router := newTestRouter(t)

	w := postTransfer(t, router, "secret-key", validTransfer())

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ACCEPTED", body["status"])
	assert.True(t, strings.HasPrefix(body["remote_transaction_id"].(string), "HAPPY-"))
}

func TestTransferRejectsBadAPIKey(t *testing.T) {
	router := newTestRouter(t)

	w := postTransfer(t, router, "wrong-key", validTransfer())
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postTransfer(t, router, "", validTransfer())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransferRejectsWrongBank(t *testing.T) {
	router := newTestRouter(t)
	body := validTransfer()
	body["destination_bank"] = "SAD_MONEY"

	w := postTransfer(t, router, "secret-key", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_DESTINATION_BANK", decodeBody(t, w)["error_code"])
}

func TestTransferRejectsOverLimit(t *testing.T) {
	router := newTestRouter(t)
	body := validTransfer()
	body["amount"] = "10000.01"

	w := postTransfer(t, router, "secret-key", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "AMOUNT_LIMIT_EXCEEDED", decodeBody(t, w)["error_code"])
}

func TestTransferAcceptsExactLimit(t *testing.T) {
	router := newTestRouter(t)
	body := validTransfer()
	body["amount"] = "10000"

	w := postTransfer(t, router, "secret-key", body)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestTransferUnknownAccount(t *testing.T) {
	router := newTestRouter(t)
	body := validTransfer()
	body["destination_phone_number"] = "999654321"

	w := postTransfer(t, router, "secret-key", body)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ACCOUNT_NOT_FOUND", decodeBody(t, w)["error_code"])
}

func TestTransferBlockedAccount(t *testing.T) {
	router := newTestRouter(t)
	body := validTransfer()
	body["destination_phone_number"] = "988654321"

	w := postTransfer(t, router, "secret-key", body)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ACCOUNT_BLOCKED", decodeBody(t, w)["error_code"])
}
