// Package directory resolves recipient phone numbers to user ids against
// the user directory service, with an optional Redis read-through cache in
// front of it. The lookup always runs before any money moves.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	domainerrors "github.com/pixel-money/pixel-money/internal/domain/errors"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

// Client looks up users by phone number.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     *logger.Logger
}

// NewClient builds a directory client. cache may be nil, which disables
// the read-through layer.
func NewClient(baseURL string, timeout time.Duration, cache *redis.Client, cacheTTL time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log,
	}
}

type userResponse struct {
	UserID string `json:"user_id"`
}

func cacheKey(phone string) string {
	return "directory:phone:" + phone
}

// ResolvePhone returns the user id registered for a phone number. A
// missing number maps to a not-found domain error; cache failures degrade
// to a direct lookup.
func (c *Client) ResolvePhone(ctx context.Context, phone string) (string, error) {
	if c.cache != nil {
		cached, err := c.cache.Get(ctx, cacheKey(phone)).Result()
		if err == nil && cached != "" {
			return cached, nil
		}
		if err != nil && err != redis.Nil {
			c.logger.Warn("Recipient cache read failed", "error", err)
		}
	}

	userID, err := c.lookup(ctx, phone)
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey(phone), userID, c.cacheTTL).Err(); err != nil {
			c.logger.Warn("Recipient cache write failed", "error", err)
		}
	}
	return userID, nil
}

func (c *Client) lookup(ctx context.Context, phone string) (string, error) {
	endpoint := c.baseURL + "/users/by-phone/" + url.PathEscape(phone)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", domainerrors.InternalError("build directory request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domainerrors.ServiceUnavailableError("directory", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var out userResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", domainerrors.InternalError("decode directory response", err)
		}
		if out.UserID == "" {
			return "", domainerrors.InternalError("directory returned empty user id", nil)
		}
		return out.UserID, nil
	case resp.StatusCode == http.StatusNotFound:
		return "", domainerrors.NotFoundError("recipient")
	default:
		return "", domainerrors.ServiceUnavailableError("directory",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}
