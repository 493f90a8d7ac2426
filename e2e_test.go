//go:build e2e

package chessllm_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/notnil/chess"

	"github.com/discochess/chessllm"
	"github.com/discochess/chessllm/internal/config"
	"github.com/discochess/chessllm/internal/decode"
	"github.com/discochess/chessllm/internal/puzzle"
	"github.com/discochess/chessllm/internal/stats"
	"github.com/discochess/chessllm/internal/stats/logger"
)

func newRealClient(t *testing.T) (*chessllm.Client, *logger.Collector) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	key, err := cfg.ResolveAPIKey()
	if err != nil || key == "" {
		t.Skip("Skipping: no OPENAI_API_KEY")
	}
	cfg.Cache = config.CacheConfig{Backend: config.BackendFile, Path: t.TempDir(), Compression: "zstd"}

	collector := logger.New(nil)
	ctx := context.Background()
	withCfg, err := chessllm.WithConfig(ctx, cfg, chessllm.WithStats(collector))
	if err != nil {
		t.Fatalf("WithConfig() error = %v", err)
	}
	client, err := chessllm.New(chessllm.WithStats(collector), withCfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, collector
}

func TestE2E_RealModel(t *testing.T) {
	client, collector := newRealClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	positions := []string{"", "1. e4", "1. e4 e5 2. Nf3 Nc6 3. Bb5"}
	for _, movetext := range positions {
		g, err := puzzle.Replay(movetext)
		if err != nil {
			t.Fatalf("Replay(%q) error = %v", movetext, err)
		}

		start := time.Now()
		move, err := client.BestMove(ctx, g)
		if err != nil {
			t.Fatalf("BestMove(%q) error = %v", movetext, err)
		}
		if err := decode.Apply(g.Clone(), move); err != nil {
			t.Errorf("BestMove(%q) = %q is not legal: %v", movetext, move, err)
		}
		t.Logf("%-30q -> %s (%v)", movetext, move, time.Since(start))
	}

	// 1. e4 was resolved above, so its move is cached.
	before := collector.Counter(stats.MetricCompletions)
	g, _ := puzzle.Replay("1. e4")
	if _, err := client.BestMove(ctx, g); err != nil {
		t.Fatalf("BestMove() error = %v", err)
	}
	if collector.Counter(stats.MetricCompletions) != before {
		t.Error("repeated position should be served from the cache")
	}
}

func TestE2E_Puzzles(t *testing.T) {
	client, _ := newRealClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	const batch = "mate1,800,1. e4 e5 2. Bc4 Nc6 3. Qh5,Nf6 Qxf7#\n" +
		"mate2,600,1. f3,e5 g4 Qh4#\n"
	puzzles, err := puzzle.ReadCSV(strings.NewReader(batch))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	report, err := puzzle.NewHarness(client).Run(ctx, puzzles)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Attempted() != 2 {
		t.Errorf("Attempted() = %d, want 2", report.Attempted())
	}
	t.Logf("accuracy %.2f", report.Accuracy())
}

func TestE2E_GameOver(t *testing.T) {
	client, _ := newRealClient(t)
	g, _ := puzzle.Replay("1. f3 e5 2. g4 Qh4#")
	if g.Outcome() == chess.NoOutcome {
		t.Fatal("fool's mate should be over")
	}
	if _, err := client.BestMove(context.Background(), g); err == nil {
		t.Error("BestMove() on a finished game should return error")
	}
}
