// Package rediscache implements a prediction cache shared between
// processes through a Redis hash.
package rediscache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/discochess/chessllm/internal/cache"
)

// DefaultKey is the Redis hash holding the cache.
const DefaultKey = "chessllm:moves"

// Compile-time check that Cache implements cache.Cache.
var _ cache.Cache = (*Cache)(nil)

// Cache stores moves as fields of a single Redis hash. Writes are applied
// immediately with HSETNX, so the first writer across all processes wins.
type Cache struct {
	rdb    redis.UniversalClient
	key    string
	owned  bool
	logger *zap.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithKey sets the hash key. The default is DefaultKey.
func WithKey(key string) Option {
	return func(c *Cache) { c.key = key }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New wraps an existing client. The caller keeps ownership of rdb.
func New(rdb redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{
		rdb:    rdb,
		key:    DefaultKey,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to the Redis server at url (redis://host:port/db) and
// verifies the connection. The returned cache closes the client on Close.
func Dial(ctx context.Context, url string, opts ...Option) (*Cache, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(ropts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	c := New(rdb, opts...)
	c.owned = true
	c.logger.Info("connected to redis cache", zap.String("addr", ropts.Addr), zap.String("key", c.key))
	return c, nil
}

// Get returns the move stored for key.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	move, err := c.rdb.HGet(ctx, c.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget: %w", err)
	}
	return move, true, nil
}

// Put stores move for key unless key already has a move.
func (c *Cache) Put(ctx context.Context, key, move string) error {
	if err := c.rdb.HSetNX(ctx, c.key, key, move).Err(); err != nil {
		return fmt.Errorf("redis hsetnx: %w", err)
	}
	return nil
}

// Flush is a no-op; every Put is already durable in Redis.
func (c *Cache) Flush(ctx context.Context) error {
	return nil
}

// Len returns the number of entries in the hash.
func (c *Cache) Len(ctx context.Context) (int, error) {
	n, err := c.rdb.HLen(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hlen: %w", err)
	}
	return int(n), nil
}

// Close closes the client if it was created by Dial.
func (c *Cache) Close() error {
	if !c.owned {
		return nil
	}
	return c.rdb.Close()
}
