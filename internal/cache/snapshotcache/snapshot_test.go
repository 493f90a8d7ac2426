package snapshotcache

import (
	"context"
	"errors"
	"testing"

	"github.com/discochess/chessllm/internal/cache"
	"github.com/discochess/chessllm/internal/codec/zstdcodec"
	"github.com/discochess/chessllm/internal/store/diskstore"
	"github.com/discochess/chessllm/internal/store/memstore"
)

const startKey = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -"

func TestOpen_Empty(t *testing.T) {
	c, err := Open(context.Background(), memstore.New())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	n, _ := c.Len(context.Background())
	if n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
}

func TestCache_FirstWriteWins(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, memstore.New())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := c.Put(ctx, startKey, "e4"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Put(ctx, startKey, "d4"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	move, ok, err := c.Get(ctx, startKey)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || move != "e4" {
		t.Errorf("Get() = %q, %v; want e4, true", move, ok)
	}
}

func TestCache_FlushAndReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := diskstore.New(dir, zstdcodec.New())
	if err != nil {
		t.Fatalf("diskstore.New() error = %v", err)
	}
	c, err := Open(ctx, s)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	c.Put(ctx, startKey, "e4")
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s2, err := diskstore.New(dir, zstdcodec.New())
	if err != nil {
		t.Fatalf("diskstore.New() error = %v", err)
	}
	reopened, err := Open(ctx, s2)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reopened.Close()

	move, ok, _ := reopened.Get(ctx, startKey)
	if !ok || move != "e4" {
		t.Errorf("Get() after reopen = %q, %v; want e4, true", move, ok)
	}
}

func TestCache_CloseFlushes(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	c, err := Open(ctx, s, WithName("moves.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	c.Put(ctx, startKey, "Nf3")
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := s.Get(ctx, "moves.json")
	if err != nil {
		t.Fatalf("store Get() error = %v", err)
	}
	want := `{"` + startKey + `":"Nf3"}`
	if string(data) != want {
		t.Errorf("snapshot = %s, want %s", data, want)
	}

	if _, _, err := c.Get(ctx, startKey); !errors.Is(err, cache.ErrClosed) {
		t.Errorf("Get() after Close error = %v, want ErrClosed", err)
	}
}

func TestOpen_CorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	s.Put(ctx, DefaultName, []byte("not json"))

	if _, err := Open(ctx, s); err == nil {
		t.Error("Open() with corrupt snapshot should return error")
	}
}
