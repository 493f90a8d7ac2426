// Package tieredcache puts a bounded in-process LRU in front of another
// cache, typically a shared Redis cache.
package tieredcache

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/discochess/chessllm/internal/cache"
)

// DefaultSize is the front tier capacity used when size <= 0.
const DefaultSize = 4096

// Compile-time check that Cache implements cache.Cache.
var _ cache.Cache = (*Cache)(nil)

// Cache serves reads from an LRU and falls through to the backing cache on
// a miss. Writes always go to the backing cache, which decides the winner.
type Cache struct {
	front   *lru.Cache[string, string]
	backing cache.Cache

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a tiered cache over backing with an LRU of the given size.
func New(backing cache.Cache, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	front, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Cache{front: front, backing: backing}, nil
}

// Get returns the move for key from the front tier, or from the backing
// cache on a front miss.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if move, ok := c.front.Get(key); ok {
		c.hits.Add(1)
		return move, true, nil
	}
	c.misses.Add(1)

	move, ok, err := c.backing.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	c.front.Add(key, move)
	return move, true, nil
}

// Put writes through to the backing cache. The front tier is filled on the
// next Get so it only ever holds the move the backing cache kept.
func (c *Cache) Put(ctx context.Context, key, move string) error {
	if c.front.Contains(key) {
		return nil
	}
	return c.backing.Put(ctx, key, move)
}

// Flush flushes the backing cache.
func (c *Cache) Flush(ctx context.Context) error {
	return c.backing.Flush(ctx)
}

// Len returns the number of entries in the backing cache.
func (c *Cache) Len(ctx context.Context) (int, error) {
	return c.backing.Len(ctx)
}

// Close closes the backing cache.
func (c *Cache) Close() error {
	return c.backing.Close()
}

// Stats returns front tier statistics.
func (c *Cache) Stats() cache.Stats {
	return cache.Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.front.Len(),
	}
}
