package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/notnil/chess"
	"github.com/spf13/cobra"

	"github.com/discochess/chessllm"
	"github.com/discochess/chessllm/internal/decode"
	"github.com/discochess/chessllm/internal/puzzle"
)

var moveCmd = &cobra.Command{
	Use:   "move [movetext]",
	Short: "Ask the model for the next move",
	Long: `Resolve the move to play after the given SAN movetext, or in the
position given with --fen. Without either, the initial position is used.

Examples:
  chessllm move "1. e4 e5 2. Nf3"
  chessllm move --fen "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMove,
}

var (
	moveFEN    string
	moveTokens int
	moveJSON   bool
	moveChat   bool
)

func init() {
	moveCmd.Flags().StringVar(&moveFEN, "fen", "", "start from this FEN instead of movetext")
	moveCmd.Flags().IntVar(&moveTokens, "tokens", 0, "override the lookahead token budget")
	moveCmd.Flags().BoolVar(&moveJSON, "json", false, "output result as JSON")
	moveCmd.Flags().BoolVar(&moveChat, "chat", false, "print conversation messages to stderr")
	rootCmd.AddCommand(moveCmd)
}

type moveResult struct {
	FEN  string `json:"fen"`
	Move string `json:"move"`
	UCI  string `json:"uci"`
}

func runMove(cmd *cobra.Command, args []string) error {
	g, err := gameFromArgs(moveFEN, args)
	if err != nil {
		return err
	}

	env, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	req := chessllm.Request{Tokens: moveTokens}
	if moveChat {
		req.Conversation = chessllm.ConversationFunc(func(room, text string) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", room, text)
		})
	}

	san, err := env.client.Resolve(cmd.Context(), g, req)
	if err != nil {
		return err
	}

	if !moveJSON {
		fmt.Println(san)
		return nil
	}

	m, err := decode.Parse(g.Position(), san)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(moveResult{FEN: g.Position().String(), Move: san, UCI: m.String()})
}

// gameFromArgs builds the game from a FEN flag or a movetext argument.
func gameFromArgs(fenStr string, args []string) (*chess.Game, error) {
	if fenStr != "" {
		opt, err := chess.FEN(fenStr)
		if err != nil {
			return nil, fmt.Errorf("parsing FEN: %w", err)
		}
		return chess.NewGame(opt), nil
	}
	if len(args) == 0 {
		return chess.NewGame(), nil
	}
	return puzzle.Replay(args[0])
}
