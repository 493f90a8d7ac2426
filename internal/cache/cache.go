// Package cache defines the prediction cache: a mapping from a canonical
// position key to the single move chosen (or predicted) from that position.
package cache

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache: closed")

// Cache maps position keys to moves in standard algebraic notation.
//
// Entries are never contradicted: Put on a key that already holds a move
// keeps the existing move. Implementations are safe for concurrent use.
type Cache interface {
	// Get returns the move stored for key.
	Get(ctx context.Context, key string) (move string, ok bool, err error)

	// Put stores move for key unless key already has a move.
	Put(ctx context.Context, key, move string) error

	// Flush persists pending entries to durable storage.
	Flush(ctx context.Context) error

	// Len returns the number of entries.
	Len(ctx context.Context) (int, error)

	// Close flushes and releases resources.
	Close() error
}

// Stats contains cache statistics.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int // Current number of entries
}

// HitRate returns the cache hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}
