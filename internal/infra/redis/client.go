package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bohdanPatriot/polska-jednostka-online/internal/config"
)

// Client wraps the shared connection used by the Redis limiter.
// A nil *Client means Redis is disabled; every method tolerates it.
type Client struct {
	Redis *redis.Client
}

func New(cfg config.RedisConfig) *Client {
	if !cfg.Enabled {
		return nil
	}
	cli := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	return &Client{Redis: cli}
}

func (c *Client) Raw() *redis.Client {
	if c == nil {
		return nil
	}
	return c.Redis
}

func (c *Client) Ping(ctx context.Context, logger *slog.Logger) bool {
	if c == nil || c.Redis == nil {
		return false
	}
	if err := c.Redis.Ping(ctx).Err(); err != nil {
		if logger != nil {
			logger.Warn("redis ping failed", "err", err)
		}
		return false
	}
	return true
}

func (c *Client) Close() error {
	if c == nil || c.Redis == nil {
		return nil
	}
	return c.Redis.Close()
}
