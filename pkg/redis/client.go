// Package redis connects the console to the Redis instance shared by its replicas.
package redis

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client is a go-redis client that logs when the shared instance goes away and comes back.
type Client struct {
	*redis.Client
	addr      string
	logger    *zap.Logger
	unhealthy atomic.Bool
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	logger.Info("redis connected", zap.String("addr", addr), zap.Int("db", db))
	return wrap(rdb, addr, logger), nil
}

func wrap(rdb *redis.Client, addr string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{Client: rdb, addr: addr, logger: logger.With(zap.String("addr", addr))}
}

// Check pings Redis. Only the first failure and the recovery after it are logged.
func (c *Client) Check(ctx context.Context) error {
	err := c.Ping(ctx).Err()
	switch {
	case err != nil && !c.unhealthy.Swap(true):
		c.logger.Warn("redis unreachable, change relay and room relay are degraded", zap.Error(err))
	case err == nil && c.unhealthy.Swap(false):
		c.logger.Info("redis reachable again")
	}
	return err
}

// Close closes the connection pool.
func (c *Client) Close() error {
	err := c.Client.Close()
	c.logger.Info("redis client closed", zap.Error(err))
	return err
}
