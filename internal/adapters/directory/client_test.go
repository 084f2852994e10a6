package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/pixel-money/pixel-money/internal/domain/errors"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, 2*time.Second, nil, time.Minute, logger.NewNop())
}

func TestResolvePhoneReturnsUserID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/by-phone/999111222", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"user_id": "user-42"})
	})

	userID, err := client.ResolvePhone(context.Background(), "999111222")

	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestResolvePhoneUnknownNumber(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.ResolvePhone(context.Background(), "999000000")

	assert.True(t, domainerrors.IsNotFound(err))
}

func TestResolvePhoneEmptyUserIDIsAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"user_id": ""})
	})

	_, err := client.ResolvePhone(context.Background(), "999111222")

	assert.True(t, domainerrors.IsInternal(err))
}

func TestResolvePhoneDirectoryDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()
	client := NewClient(server.URL, time.Second, nil, time.Minute, logger.NewNop())

	_, err := client.ResolvePhone(context.Background(), "999111222")

	assert.True(t, domainerrors.IsServiceUnavailable(err))
}
