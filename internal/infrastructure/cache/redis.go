// Package cache provides the optional Redis connection used for the
// recipient lookup cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pixel-money/pixel-money/internal/infrastructure/config"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

// Connect opens and verifies a Redis connection.
func Connect(cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Connected to Redis", "host", cfg.Host, "port", cfg.Port)
	return rdb, nil
}

// ClientCloser adapts a redis client to the graceful.Shutdowner interface.
type ClientCloser struct {
	Client *redis.Client
}

func (c ClientCloser) Shutdown(time.Duration) error {
	return c.Client.Close()
}
