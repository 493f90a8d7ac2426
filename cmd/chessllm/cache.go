package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discochess/chessllm"
	"github.com/discochess/chessllm/internal/cache"
	"github.com/discochess/chessllm/internal/cache/tieredcache"
	"github.com/discochess/chessllm/internal/config"
	"github.com/discochess/chessllm/internal/fen"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the prediction cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of cached positions",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheLookupCmd = &cobra.Command{
	Use:   "lookup [movetext]",
	Short: "Show the cached move for a position",
	Long: `Look up the cached move for the position after the given SAN
movetext, or the position given with --fen. The model is never queried.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCacheLookup,
}

var lookupFEN string

func init() {
	cacheLookupCmd.Flags().StringVar(&lookupFEN, "fen", "", "look up this FEN instead of movetext")
	cacheCmd.AddCommand(cacheStatsCmd, cacheLookupCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	c, cfg, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.Len(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backend:   %s\n", cfg.Cache.Backend)
	fmt.Fprintf(out, "Positions: %d\n", n)
	return nil
}

func runCacheLookup(cmd *cobra.Command, args []string) error {
	g, err := gameFromArgs(lookupFEN, args)
	if err != nil {
		return err
	}
	c, _, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	key := fen.Key(g.Position())
	move, ok, err := c.Get(cmd.Context(), key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("position %q is not cached", key)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, move)

	if tc, ok := c.(*tieredcache.Cache); ok && verbose {
		s := tc.Stats()
		fmt.Fprintf(out, "front tier: %d hits, %d misses (%.0f%%)\n", s.Hits, s.Misses, s.HitRate())
	}
	return nil
}

// openCache opens the configured cache without building a completer.
func openCache(cmd *cobra.Command) (cache.Cache, *config.Config, error) {
	log, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	c, err := chessllm.OpenCache(cmd.Context(), cfg.Cache, log, nil)
	if err != nil {
		return nil, nil, err
	}
	return c, cfg, nil
}
