package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/discochess/chessllm/internal/strategy"
	"github.com/discochess/chessllm/internal/uci"
)

var uciCmd = &cobra.Command{
	Use:   "uci",
	Short: "Run as a UCI engine on stdin/stdout",
	Long: `Speak the UCI protocol on stdin and stdout so chessllm can be used
from any chess GUI or bot framework. Moves come from the configured model
unless another strategy is selected; if the strategy fails a random legal
move is played.

Strategies: llm, random, alphabetical, first_move, combo.`,
	Args: cobra.NoArgs,
	RunE: runUCI,
}

var uciStrategy string

func init() {
	uciCmd.Flags().StringVar(&uciStrategy, "strategy", "llm", "move strategy")
	rootCmd.AddCommand(uciCmd)
}

func runUCI(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, err := setup(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	s, err := strategy.ByName(uciStrategy, env.client)
	if err != nil {
		return err
	}

	engine := uci.New(s, os.Stdout,
		uci.WithName(fmt.Sprintf("chess-llm-with-%s", env.client.Model())),
		uci.WithAuthor(env.cfg.Author),
		uci.WithLogger(env.log),
	)
	return engine.Run(ctx, os.Stdin)
}
