package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/discochess/chessllm"
	"github.com/discochess/chessllm/internal/config"
	"github.com/discochess/chessllm/internal/stats"
	"github.com/discochess/chessllm/internal/stats/logger"
	promstats "github.com/discochess/chessllm/internal/stats/prometheus"
)

var (
	// Global flags.
	configPath  string
	verbose     bool
	logFile     string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "chessllm",
	Short: "Play chess by asking a language model to continue a PGN",
	Long: `chessllm formats a chess position as a PGN transcript, asks a
text-completion model to continue it and plays the first legal move of the
reply. Every predicted move is cached per position.

Examples:
  # Run as a UCI engine
  chessllm uci

  # Ask for one move
  chessllm move "1. e4 e5 2. Nf3"

  # Build and solve a puzzle batch
  chessllm puzzles build --work-dir ./data
  chessllm puzzles solve pgn_puzzles.csv`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (JSON or YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

// newLogger builds the process logger. Logs never go to stdout, which
// carries UCI and command output.
func newLogger() (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var core zapcore.Core
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level)
	}
	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// runtimeEnv holds what every model-backed command needs.
type runtimeEnv struct {
	cfg    *config.Config
	log    *zap.Logger
	stats  *logger.Collector
	client *chessllm.Client

	// collector fans out to stats and, with --metrics-addr, Prometheus.
	collector stats.Collector

	metrics *http.Server
}

// setup loads the configuration and builds the client. The caller must
// call close.
func setup(ctx context.Context) (*runtimeEnv, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Sync()
		return nil, err
	}

	env := &runtimeEnv{cfg: cfg, log: log, stats: logger.New(log)}
	collectors := []stats.Collector{env.stats}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collectors = append(collectors, promstats.New(reg))
		env.metrics = serveMetrics(log, reg)
	}
	collector := stats.Multi(collectors...)
	env.collector = collector

	withCfg, err := chessllm.WithConfig(ctx, cfg,
		chessllm.WithLogger(log),
		chessllm.WithStats(collector),
	)
	if err != nil {
		env.close()
		return nil, err
	}
	env.client, err = chessllm.New(
		chessllm.WithLogger(log),
		chessllm.WithStats(collector),
		withCfg,
	)
	if err != nil {
		env.close()
		return nil, err
	}
	return env, nil
}

func serveMetrics(log *zap.Logger, reg *prometheus.Registry) *http.Server {
	srv := &http.Server{
		Addr:              metricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", metricsAddr))
	return srv
}

func (e *runtimeEnv) close() error {
	var err error
	if e.client != nil {
		err = e.client.Close()
	}
	if e.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		e.metrics.Shutdown(ctx)
		cancel()
	}
	e.stats.LogSummary("session stats")
	e.log.Sync()
	return err
}
