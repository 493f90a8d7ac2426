// Package puzzle reads puzzle batches and measures how often a move chooser
// finds the recorded solution.
package puzzle

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/notnil/chess"

	"github.com/discochess/chessllm"
	"github.com/discochess/chessllm/internal/decode"
)

// ErrMalformed is returned for records that cannot be parsed or replayed.
var ErrMalformed = errors.New("puzzle: malformed record")

// Puzzle is one row of a puzzle batch.
type Puzzle struct {
	ID     string
	Rating int

	// MoveText is the game up to the puzzle position, e.g. "1. e4 e5 2. Nf3".
	MoveText string

	// Solution alternates the opponent's move and the expected reply,
	// starting with the opponent, in SAN.
	Solution []string
}

// ReadCSV reads puzzles with columns id, rating, movetext, solution.
// There is no header row.
func ReadCSV(r io.Reader) ([]Puzzle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4

	var puzzles []Puzzle
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return puzzles, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading puzzles: %w", err)
		}
		rating, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: rating %q", ErrMalformed, line, rec[1])
		}
		puzzles = append(puzzles, Puzzle{
			ID:       rec[0],
			Rating:   rating,
			MoveText: rec[2],
			Solution: strings.Fields(rec[3]),
		})
	}
}

// WriteCSV writes puzzles in the format read by ReadCSV.
func WriteCSV(w io.Writer, puzzles []Puzzle) error {
	cw := csv.NewWriter(w)
	for _, p := range puzzles {
		if err := cw.Write([]string{p.ID, strconv.Itoa(p.Rating), p.MoveText, strings.Join(p.Solution, " ")}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Replay plays movetext from the initial position. Move numbers and
// result tokens are skipped; any other token must be a legal SAN move.
func Replay(movetext string) (*chess.Game, error) {
	g := chess.NewGame()
	for _, tok := range strings.Fields(movetext) {
		if strings.Contains(tok, ".") || isResult(tok) {
			continue
		}
		if err := decode.Apply(g, tok); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}
	return g, nil
}

func isResult(tok string) bool {
	switch tok {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	}
	return false
}

// Guesser proposes the SAN move to play in a game.
type Guesser interface {
	BestMove(ctx context.Context, g *chess.Game) (string, error)
}

// Solve plays solution on a copy of g, asking guesser for every second move.
// A guess that differs from the recorded move is still correct if it mates
// immediately. A guesser that finds no valid move (chessllm.ErrNoValidMove)
// answers wrongly; other guesser errors are returned.
func Solve(ctx context.Context, g *chess.Game, solution []string, guesser Guesser) (bool, error) {
	board := g.Clone()
	for len(solution) > 0 {
		opponent := solution[0]
		solution = solution[1:]
		if err := decode.Apply(board, opponent); err != nil {
			return false, fmt.Errorf("%w: opponent move: %w", ErrMalformed, err)
		}
		if len(solution) == 0 {
			break
		}

		guess, err := guesser.BestMove(ctx, board)
		if err != nil {
			if errors.Is(err, chessllm.ErrNoValidMove) {
				return false, nil
			}
			return false, err
		}

		want := solution[0]
		solution = solution[1:]
		if guess != want {
			return decode.Apply(board, guess) == nil && isCheckmate(board), nil
		}
		if err := decode.Apply(board, guess); err != nil {
			return false, fmt.Errorf("%w: solution move: %w", ErrMalformed, err)
		}
	}
	return true, nil
}

func isCheckmate(g *chess.Game) bool {
	return g.Method() == chess.Checkmate
}
