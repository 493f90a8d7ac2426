package filechessllmfx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/discochess/chessllm"
)

func TestModule_PersistsOnStop(t *testing.T) {
	dir := t.TempDir()
	var client *chessllm.Client

	app := fxtest.New(t,
		fx.Supply(Config{CacheDir: dir, APIKey: "test-key", FrontSize: 16}),
		fx.Provide(zap.NewNop),
		Module,
		fx.Populate(&client),
	)
	app.RequireStart()

	ctx := context.Background()
	if err := client.Cache().Put(ctx, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -", "e4"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	app.RequireStop()

	if _, err := os.Stat(filepath.Join(dir, "cache.json.zst")); err != nil {
		t.Errorf("snapshot not written on stop: %v", err)
	}
}

func TestModule_InvalidCompression(t *testing.T) {
	var client *chessllm.Client
	app := fx.New(
		fx.Supply(Config{CacheDir: t.TempDir(), Compression: "lz4"}),
		fx.Provide(zap.NewNop),
		Module,
		fx.Populate(&client),
		fx.NopLogger,
	)
	if app.Err() == nil {
		t.Error("unknown compression should fail the app")
	}
}
