package micro

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/notnil/chess"
	"github.com/redis/go-redis/v9"

	"github.com/discochess/chessllm"
	"github.com/discochess/chessllm/internal/cache"
	"github.com/discochess/chessllm/internal/cache/rediscache"
	"github.com/discochess/chessllm/internal/cache/snapshotcache"
	"github.com/discochess/chessllm/internal/cache/tieredcache"
	"github.com/discochess/chessllm/internal/codec/zstdcodec"
	"github.com/discochess/chessllm/internal/completion"
	"github.com/discochess/chessllm/internal/store/diskstore"
	"github.com/discochess/chessllm/internal/store/memstore"
)

const startKey = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -"

func newSnapshot(b *testing.B) *snapshotcache.Cache {
	b.Helper()
	c, err := snapshotcache.Open(context.Background(), memstore.New())
	if err != nil {
		b.Fatalf("opening cache: %v", err)
	}
	b.Cleanup(func() { c.Close() })
	return c
}

func fill(b *testing.B, c cache.Cache, n int) {
	b.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if err := c.Put(ctx, fmt.Sprintf("key-%d", i), "e4"); err != nil {
			b.Fatalf("Put: %v", err)
		}
	}
}

// BenchmarkResolve_CacheHit measures a resolution served from the cache.
func BenchmarkResolve_CacheHit(b *testing.B) {
	completer := completion.Func(func(ctx context.Context, req completion.Request) (string, error) {
		return " e4 e5", nil
	})
	client, err := chessllm.New(chessllm.WithCompleter(completer))
	if err != nil {
		b.Fatalf("creating client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	g := chess.NewGame()
	if _, err := client.BestMove(ctx, g); err != nil {
		b.Fatalf("warming cache: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := client.BestMove(ctx, g); err != nil {
			b.Fatalf("BestMove: %v", err)
		}
	}
}

// BenchmarkSnapshot_Get measures an in-memory snapshot lookup.
func BenchmarkSnapshot_Get(b *testing.B) {
	c := newSnapshot(b)
	fill(b, c, 10000)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := c.Get(ctx, "key-5000"); err != nil {
			b.Fatalf("Get: %v", err)
		}
	}
}

// BenchmarkSnapshot_FlushDisk measures writing a 10000-entry snapshot to
// disk with zstd.
func BenchmarkSnapshot_FlushDisk(b *testing.B) {
	st, err := diskstore.New(b.TempDir(), zstdcodec.New())
	if err != nil {
		b.Fatalf("creating store: %v", err)
	}
	c, err := snapshotcache.Open(context.Background(), st)
	if err != nil {
		b.Fatalf("opening cache: %v", err)
	}
	defer c.Close()
	fill(b, c, 10000)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Each new key marks the snapshot dirty so Flush writes.
		if err := c.Put(ctx, fmt.Sprintf("extra-%d", i), "d4"); err != nil {
			b.Fatalf("Put: %v", err)
		}
		if err := c.Flush(ctx); err != nil {
			b.Fatalf("Flush: %v", err)
		}
	}
}

// BenchmarkRedis_Get compares a Redis lookup with and without the LRU
// front tier.
func BenchmarkRedis_Get(b *testing.B) {
	mr := miniredis.RunT(b)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rc := rediscache.New(client)
	ctx := context.Background()
	if err := rc.Put(ctx, startKey, "e4"); err != nil {
		b.Fatalf("Put: %v", err)
	}

	tiered, err := tieredcache.New(rc, 1024)
	if err != nil {
		b.Fatalf("creating tiered cache: %v", err)
	}

	for _, bc := range []struct {
		name string
		c    cache.Cache
	}{
		{"direct", rc},
		{"tiered", tiered},
	} {
		b.Run(bc.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, ok, err := bc.c.Get(ctx, startKey); err != nil || !ok {
					b.Fatalf("Get: ok=%v err=%v", ok, err)
				}
			}
		})
	}
}
