package tieredcache

import (
	"context"
	"testing"

	"github.com/discochess/chessllm/internal/cache/snapshotcache"
	"github.com/discochess/chessllm/internal/store/memstore"
)

// countingCache records how often the backing tier is read.
type countingCache struct {
	*snapshotcache.Cache
	gets int
}

func (c *countingCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.gets++
	return c.Cache.Get(ctx, key)
}

func newBacking(t *testing.T) *countingCache {
	t.Helper()
	sc, err := snapshotcache.Open(context.Background(), memstore.New())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return &countingCache{Cache: sc}
}

func TestCache_FrontServesRepeatReads(t *testing.T) {
	ctx := context.Background()
	backing := newBacking(t)
	c, err := New(backing, 8)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := c.Put(ctx, "k", "e4"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		move, ok, err := c.Get(ctx, "k")
		if err != nil || !ok || move != "e4" {
			t.Fatalf("Get() = %q, %v, %v; want e4", move, ok, err)
		}
	}

	if backing.gets != 1 {
		t.Errorf("backing gets = %d, want 1", backing.gets)
	}
	st := c.Stats()
	if st.Hits != 2 || st.Misses != 1 || st.Size != 1 {
		t.Errorf("Stats() = %+v, want 2 hits, 1 miss, size 1", st)
	}
}

func TestCache_PutKeepsBackingWinner(t *testing.T) {
	ctx := context.Background()
	backing := newBacking(t)
	backing.Put(ctx, "k", "d4")

	c, err := New(backing, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.Put(ctx, "k", "e4")

	move, _, _ := c.Get(ctx, "k")
	if move != "d4" {
		t.Errorf("Get() = %q, want d4", move)
	}
	if n, _ := c.Len(ctx); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}

func TestCache_Miss(t *testing.T) {
	c, err := New(newBacking(t), 2)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok, err := c.Get(context.Background(), "absent"); ok || err != nil {
		t.Errorf("Get() = %v, %v; want miss", ok, err)
	}
}
