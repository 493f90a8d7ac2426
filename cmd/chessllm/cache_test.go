package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/notnil/chess"
	"github.com/spf13/cobra"

	"github.com/discochess/chessllm"
	"github.com/discochess/chessllm/internal/config"
	"github.com/discochess/chessllm/internal/fen"
)

// seedFileCache writes a file-backed cache under a temp dir holding one
// entry for the initial position and points configPath at it.
func seedFileCache(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	t.Setenv("CHESSLLM_CACHE_BACKEND", "")
	t.Setenv("CHESSLLM_CACHE_PATH", "")

	cfg := config.Default()
	cfg.Cache.Path = dir
	c, err := chessllm.OpenCache(ctx, cfg.Cache, nil, nil)
	if err != nil {
		t.Fatalf("OpenCache() error = %v", err)
	}
	key := fen.Key(chess.NewGame().Position())
	if err := c.Put(ctx, key, "e4"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	path := filepath.Join(dir, "config.json")
	data := fmt.Sprintf(`{"cache": {"backend": "file", "path": %q, "compression": "zstd"}}`, dir)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	configPath = path
	t.Cleanup(func() { configPath = "" })
	return dir
}

func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(&out)
	return cmd, &out
}

func TestRunCacheStats(t *testing.T) {
	seedFileCache(t)
	cmd, out := newTestCmd()

	if err := runCacheStats(cmd, nil); err != nil {
		t.Fatalf("runCacheStats() error = %v", err)
	}
	for _, want := range []string{"Backend:   file", "Positions: 1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output = %q, want %q", out.String(), want)
		}
	}
}

func TestRunCacheLookup(t *testing.T) {
	seedFileCache(t)

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "cached", want: "e4\n"},
		{name: "not cached", args: []string{"1. d4"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, out := newTestCmd()
			err := runCacheLookup(cmd, tt.args)
			if tt.wantErr {
				if err == nil {
					t.Error("runCacheLookup() should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("runCacheLookup() error = %v", err)
			}
			if out.String() != tt.want {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}
