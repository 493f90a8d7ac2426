// Package memorychessllmfx provides an fx module for a chessllm client with
// an in-memory prediction cache. Useful for testing.
package memorychessllmfx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/chessllm"
	"github.com/discochess/chessllm/internal/cache"
	"github.com/discochess/chessllm/internal/cache/snapshotcache"
	"github.com/discochess/chessllm/internal/completion"
	"github.com/discochess/chessllm/internal/stats"
	"github.com/discochess/chessllm/internal/stats/logger"
	"github.com/discochess/chessllm/internal/store/memstore"
)

// Module provides an in-memory chessllm client.
// Requires a completion.Completer and a *zap.Logger to be provided.
var Module = fx.Module("memorychessllm",
	fx.Provide(
		newStatsCollector,
		newCache,
		newClient,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("chessllm.stats"))
}

func newCache(log *zap.Logger, collector stats.Collector) (cache.Cache, error) {
	return snapshotcache.Open(context.Background(), memstore.New(),
		snapshotcache.WithLogger(log),
		snapshotcache.WithStats(collector),
	)
}

// Params holds dependencies for creating the client.
type Params struct {
	fx.In

	Completer completion.Completer
	Cache     cache.Cache // Exposed for test setup
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided client.
type Result struct {
	fx.Out

	Client *chessllm.Client
}

func newClient(p Params) (Result, error) {
	client, err := chessllm.New(
		chessllm.WithCompleter(p.Completer),
		chessllm.WithCache(p.Cache),
		chessllm.WithStats(p.Collector),
		chessllm.WithLogger(p.Logger.Named("chessllm")),
	)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return Result{Client: client}, nil
}
