// Package snapshotcache implements a prediction cache held entirely in
// memory and persisted as a single JSON snapshot in a store.Store.
package snapshotcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/discochess/chessllm/internal/cache"
	"github.com/discochess/chessllm/internal/stats"
	"github.com/discochess/chessllm/internal/store"
)

// DefaultName is the object name of the snapshot in its store.
const DefaultName = "cache.json"

// Compile-time check that Cache implements cache.Cache.
var _ cache.Cache = (*Cache)(nil)

// Cache is a snapshot-backed prediction cache. The whole mapping is read at
// Open and rewritten on Flush when it has changed.
type Cache struct {
	store     store.Store
	name      string
	logger    *zap.Logger
	collector stats.Collector

	mu      sync.RWMutex
	entries map[string]string
	dirty   bool
	closed  bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithName sets the snapshot object name. The default is DefaultName.
func WithName(name string) Option {
	return func(c *Cache) { c.name = name }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithStats sets the metrics collector.
func WithStats(sc stats.Collector) Option {
	return func(c *Cache) { c.collector = sc }
}

// Open loads the snapshot from s. A missing snapshot yields an empty cache.
// The cache owns s and closes it on Close.
func Open(ctx context.Context, s store.Store, opts ...Option) (*Cache, error) {
	c := &Cache{
		store:     s,
		name:      DefaultName,
		logger:    zap.NewNop(),
		collector: stats.NewNoop(),
		entries:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}

	data, err := s.Get(ctx, c.name)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("loading cache snapshot: %w", err)
	default:
		if err := json.Unmarshal(data, &c.entries); err != nil {
			return nil, fmt.Errorf("decoding cache snapshot: %w", err)
		}
		if c.entries == nil {
			c.entries = make(map[string]string)
		}
	}

	c.logger.Info("loaded cache", zap.String("name", c.name), zap.Int("entries", len(c.entries)))
	c.collector.SetGauge(stats.MetricCacheSize, int64(len(c.entries)))
	return c, nil
}

// Get returns the move stored for key.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return "", false, cache.ErrClosed
	}
	move, ok := c.entries[key]
	return move, ok, nil
}

// Put stores move for key unless key already has a move.
func (c *Cache) Put(ctx context.Context, key, move string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cache.ErrClosed
	}
	if _, ok := c.entries[key]; ok {
		return nil
	}
	c.entries[key] = move
	c.dirty = true
	c.collector.SetGauge(stats.MetricCacheSize, int64(len(c.entries)))
	return nil
}

// Flush rewrites the snapshot if any entry was added since the last flush.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cache.ErrClosed
	}
	return c.flushLocked(ctx)
}

func (c *Cache) flushLocked(ctx context.Context) error {
	if !c.dirty {
		return nil
	}
	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("encoding cache snapshot: %w", err)
	}
	if err := c.store.Put(ctx, c.name, data); err != nil {
		return fmt.Errorf("writing cache snapshot: %w", err)
	}
	c.dirty = false
	c.logger.Debug("flushed cache", zap.Int("entries", len(c.entries)))
	return nil
}

// Len returns the number of entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// Close flushes pending entries and closes the store.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	flushErr := c.flushLocked(context.Background())
	return errors.Join(flushErr, c.store.Close())
}
