// Package store defines the blob storage interface used to persist move
// cache snapshots and dataset artifacts.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an object does not exist in the store.
var ErrNotFound = errors.New("store: object not found")

// Store reads and writes named objects.
// Implementations apply their codec and handle key layout internally.
type Store interface {
	// Get reads and decompresses the named object.
	Get(ctx context.Context, name string) ([]byte, error)

	// Put compresses and writes the named object, replacing any previous
	// content.
	Put(ctx context.Context, name string, data []byte) error

	// Close releases any resources held by the store.
	Close() error
}

// NormalizePrefix returns prefix with exactly one trailing slash, or the
// empty string.
func NormalizePrefix(prefix string) string {
	for len(prefix) > 0 && prefix[len(prefix)-1] == '/' {
		prefix = prefix[:len(prefix)-1]
	}
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
