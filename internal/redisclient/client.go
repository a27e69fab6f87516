package redisclient

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geocoder89/propertypro/internal/config"
)

type Client struct {
	redisdb *redis.Client
}

// New returns nil when no address is configured; callers fall back to the
// in-process limiter.
func New(cfg config.RedisConfig) *Client {
	if cfg.Addr == "" {
		return nil
	}

	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb}
}

func Wrap(rdb *redis.Client) *Client {
	return &Client{redisdb: rdb}
}

// Ping checks redis connectivity. It backs the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.redisdb.Close()
}

// Raw exposes the client for the shared rate limiter.
func (c *Client) Raw() *redis.Client {
	return c.redisdb
}
