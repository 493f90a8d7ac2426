package builder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/discochess/chessllm/internal/store"
	"github.com/discochess/chessllm/internal/store/memstore"
)

func TestBuildIndex(t *testing.T) {
	idx, err := BuildIndex(context.Background(), strings.NewReader(testGames), nil)
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}

	want := map[string]int64{
		"abcd1234": int64(strings.Index(testGames, `[Site "https://lichess.org/abcd1234"]`)),
		"wxyz9876": int64(strings.Index(testGames, `[Site "https://lichess.org/wxyz9876"]`)),
	}
	if len(idx) != len(want) {
		t.Fatalf("BuildIndex() = %v, want %v", idx, want)
	}
	for id, off := range want {
		if idx[id] != off {
			t.Errorf("idx[%s] = %d, want %d", id, idx[id], off)
		}
	}
}

func TestBuildIndex_NoTrailingNewline(t *testing.T) {
	text := "[Event \"x\"]\n[Site \"https://lichess.org/last0001\"]"
	idx, err := BuildIndex(context.Background(), strings.NewReader(text), nil)
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	if off, ok := idx["last0001"]; !ok || off != 12 {
		t.Errorf("idx = %v", idx)
	}
}

func TestFetchGame(t *testing.T) {
	r := strings.NewReader(testGames)
	idx, err := BuildIndex(context.Background(), strings.NewReader(testGames), nil)
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}

	first, err := FetchGame(r, idx["abcd1234"])
	if err != nil {
		t.Fatalf("FetchGame() error = %v", err)
	}
	if !strings.HasPrefix(first, `[Site "https://lichess.org/abcd1234"]`) {
		t.Errorf("FetchGame() = %q", first)
	}
	if strings.Contains(first, "[Event") || strings.Contains(first, "wxyz9876") {
		t.Errorf("FetchGame() ran into the next game: %q", first)
	}

	last, err := FetchGame(r, idx["wxyz9876"])
	if err != nil {
		t.Fatalf("FetchGame() error = %v", err)
	}
	if !strings.Contains(last, "Qh4# 0-1") {
		t.Errorf("FetchGame() = %q", last)
	}
}

func TestSaveLoadIndex(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	if _, err := LoadIndex(ctx, s); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("LoadIndex() on empty store error = %v, want ErrNotFound", err)
	}

	if err := SaveIndex(ctx, s, Index{"abcd1234": 42}); err != nil {
		t.Fatalf("SaveIndex() error = %v", err)
	}
	idx, err := LoadIndex(ctx, s)
	if err != nil {
		t.Fatalf("LoadIndex() error = %v", err)
	}
	if idx["abcd1234"] != 42 {
		t.Errorf("LoadIndex() = %v", idx)
	}
}

func TestLoadIndex_Corrupt(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	if err := s.Put(ctx, IndexName, []byte("{not json")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := LoadIndex(ctx, s); err == nil {
		t.Error("LoadIndex() on corrupt data should return error")
	}
}
