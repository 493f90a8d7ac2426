package chessllm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/chessllm/internal/cache"
	"github.com/discochess/chessllm/internal/cache/rediscache"
	"github.com/discochess/chessllm/internal/cache/snapshotcache"
	"github.com/discochess/chessllm/internal/cache/tieredcache"
	"github.com/discochess/chessllm/internal/completion"
	"github.com/discochess/chessllm/internal/completion/openai"
	"github.com/discochess/chessllm/internal/config"
	"github.com/discochess/chessllm/internal/stats"
	"github.com/discochess/chessllm/internal/store"
	"github.com/discochess/chessllm/internal/store/diskstore"
	"github.com/discochess/chessllm/internal/store/gcsstore"
	"github.com/discochess/chessllm/internal/store/memstore"
	"github.com/discochess/chessllm/internal/store/s3store"
)

// Option configures a Client.
type Option interface {
	apply(*options)
}

// options holds the client configuration.
type options struct {
	completer   completion.Completer
	cache       cache.Cache
	model       string
	temperature float64
	tokens      int
	stats       stats.Collector
	logger      *zap.Logger
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		model:  config.DefaultModel,
		tokens: config.DefaultLookaheadTokens,
		stats:  stats.NewNoop(),
		logger: zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithCompleter sets the language model backend. Required.
func WithCompleter(c completion.Completer) Option {
	return optionFunc(func(o *options) {
		o.completer = c
	})
}

// WithCache sets the prediction cache. The client takes ownership and
// closes it on Close. If not set, an in-memory cache is used.
func WithCache(c cache.Cache) Option {
	return optionFunc(func(o *options) {
		o.cache = c
	})
}

// WithModel sets the completion model name.
func WithModel(model string) Option {
	return optionFunc(func(o *options) {
		o.model = model
	})
}

// WithTemperature sets the sampling temperature. Default is 0.
func WithTemperature(t float64) Option {
	return optionFunc(func(o *options) {
		o.temperature = t
	})
}

// WithLookaheadTokens sets the completion token budget.
// Values below MinLookaheadTokens make New fail.
func WithLookaheadTokens(n int) Option {
	return optionFunc(func(o *options) {
		o.tokens = n
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithConfig configures the client from a loaded configuration: an
// OpenAI-compatible completer, the model settings and the configured cache.
// Logger and stats options should precede it so the cache can use them.
func WithConfig(ctx context.Context, cfg *config.Config, opts ...Option) (Option, error) {
	base := defaultOptions()
	for _, opt := range opts {
		opt.apply(&base)
	}

	apiKey, err := cfg.ResolveAPIKey()
	if err != nil {
		return nil, err
	}

	var clientOpts []openai.Option
	clientOpts = append(clientOpts, openai.WithLogger(base.logger))
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.TimeoutSeconds > 0 {
		clientOpts = append(clientOpts, openai.WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
	}
	completer := openai.New(apiKey, clientOpts...)

	c, err := OpenCache(ctx, cfg.Cache, base.logger, base.stats)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	return optionFunc(func(o *options) {
		o.completer = completer
		o.cache = c
		o.model = cfg.Model
		o.temperature = cfg.Temperature
		o.tokens = cfg.LookaheadTokens
	}), nil
}

// OpenCache builds the cache described by cfg.
func OpenCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger, collector stats.Collector) (cache.Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = stats.NewNoop()
	}

	var c cache.Cache
	if cfg.Backend == config.BackendRedis {
		var opts []rediscache.Option
		opts = append(opts, rediscache.WithLogger(logger))
		if cfg.RedisKey != "" {
			opts = append(opts, rediscache.WithKey(cfg.RedisKey))
		}
		rc, err := rediscache.Dial(ctx, cfg.RedisURL, opts...)
		if err != nil {
			return nil, err
		}
		c = rc
	} else {
		s, err := openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts := []snapshotcache.Option{
			snapshotcache.WithLogger(logger),
			snapshotcache.WithStats(collector),
		}
		if cfg.Name != "" {
			opts = append(opts, snapshotcache.WithName(cfg.Name))
		}
		sc, err := snapshotcache.Open(ctx, s, opts...)
		if err != nil {
			s.Close()
			return nil, err
		}
		c = sc
	}

	if cfg.FrontSize > 0 {
		tc, err := tieredcache.New(c, cfg.FrontSize)
		if err != nil {
			c.Close()
			return nil, err
		}
		c = tc
	}
	return c, nil
}

// openStore creates the snapshot store for a non-Redis backend.
func openStore(ctx context.Context, cfg config.CacheConfig) (store.Store, error) {
	if cfg.Backend == config.BackendMemory {
		return memstore.New(), nil
	}

	cd, err := config.NewCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendFile, "":
		path := cfg.Path
		if path == "" {
			path = config.DefaultCachePath
		}
		return diskstore.New(path, cd)
	case config.BackendS3:
		var opts []s3store.Option
		if cfg.Prefix != "" {
			opts = append(opts, s3store.WithPrefix(cfg.Prefix))
		}
		if cfg.Region != "" {
			opts = append(opts, s3store.WithRegion(cfg.Region))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(cfg.Endpoint))
		}
		return s3store.New(ctx, cfg.Bucket, cd, opts...)
	case config.BackendGCS:
		var opts []gcsstore.Option
		if cfg.Prefix != "" {
			opts = append(opts, gcsstore.WithPrefix(cfg.Prefix))
		}
		return gcsstore.New(ctx, cfg.Bucket, cd, opts...)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// newMemoryCache returns a non-durable cache for clients built without one.
func newMemoryCache(logger *zap.Logger, collector stats.Collector) (cache.Cache, error) {
	return snapshotcache.Open(context.Background(), memstore.New(),
		snapshotcache.WithLogger(logger),
		snapshotcache.WithStats(collector),
	)
}
