// Package filechessllmfx provides an fx module for a chessllm client with a
// file-backed prediction cache and an OpenAI-compatible completer.
package filechessllmfx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/chessllm"
	"github.com/discochess/chessllm/internal/config"
	"github.com/discochess/chessllm/internal/stats"
	"github.com/discochess/chessllm/internal/stats/logger"
)

// Config holds configuration for the file-backed client.
type Config struct {
	// CacheDir is the directory holding the cache snapshot.
	CacheDir string

	// Compression is the snapshot codec: "none", "gzip" or "zstd".
	// Default is "zstd".
	Compression string

	// FrontSize enables an in-process LRU in front of the snapshot.
	FrontSize int

	// Model defaults to config.DefaultModel.
	Model string

	APIKey  string
	BaseURL string
}

// Module provides a file-backed chessllm client.
// Requires a Config and a *zap.Logger to be provided.
var Module = fx.Module("filechessllm",
	fx.Provide(
		newStatsCollector,
		newClient,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("chessllm.stats"))
}

// Params holds dependencies for creating the client.
type Params struct {
	fx.In

	Config    Config
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
	cfg := config.Default()
	cfg.APIKey = p.Config.APIKey
	cfg.BaseURL = p.Config.BaseURL
	if p.Config.Model != "" {
		cfg.Model = p.Config.Model
	}
	cfg.Cache = config.CacheConfig{
		Backend:     config.BackendFile,
		Path:        p.Config.CacheDir,
		Compression: p.Config.Compression,
		FrontSize:   p.Config.FrontSize,
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	log := p.Logger.Named("chessllm")
	withCfg, err := chessllm.WithConfig(context.Background(), cfg,
		chessllm.WithLogger(log),
		chessllm.WithStats(p.Collector),
	)
	if err != nil {
		return Result{}, err
	}

	client, err := chessllm.New(
		chessllm.WithLogger(log),
		chessllm.WithStats(p.Collector),
		withCfg,
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
