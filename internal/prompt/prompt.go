// Package prompt renders a chess game as a PGN transcript that a text
// completion model can continue.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"github.com/discochess/chessllm/internal/fen"
)

// ErrGameOver is returned when the game already has an outcome.
var ErrGameOver = errors.New("prompt: game is over")

// Header is prepended to every prompt. The names and ratings bias the model
// toward strong, decisive play.
const Header = `[White "Magnus Carlsen"]
[Black "Garry Kasparov"]
[WhiteElo "2900"]
[BlackElo "2800"]

`

// Build returns the prompt for the side to move in g.
//
// With White to move the prompt ends in the move number ("1." on the first
// move, " 12." later); with Black to move it ends right after White's move.
func Build(g *chess.Game) (string, error) {
	if g.Outcome() != chess.NoOutcome {
		return "", ErrGameOver
	}

	pos := g.Position()
	number, err := fen.FullmoveNumber(pos.String())
	if err != nil {
		return "", fmt.Errorf("reading move number: %w", err)
	}

	body := MoveText(g)
	switch {
	case pos.Turn() == chess.White && body == "":
		body = fmt.Sprintf("%d.", number)
	case pos.Turn() == chess.White:
		body += fmt.Sprintf(" %d.", number)
	case body == "":
		// Game set up from a position with Black to move.
		body = fmt.Sprintf("%d...", number)
	}

	return Header + body, nil
}

// MoveText returns the SAN movetext of g without result or line wrapping,
// e.g. "1. e4 e5 2. Nf3". A game that starts with Black to move opens with
// "N... move".
func MoveText(g *chess.Game) string {
	moves := g.Moves()
	if len(moves) == 0 {
		return ""
	}
	positions := g.Positions()

	number, err := fen.FullmoveNumber(positions[0].String())
	if err != nil {
		number = 1
	}

	var sb strings.Builder
	for i, m := range moves {
		pos := positions[i]
		san := chess.AlgebraicNotation{}.Encode(pos, m)
		if i > 0 {
			sb.WriteByte(' ')
		}
		switch {
		case pos.Turn() == chess.White:
			fmt.Fprintf(&sb, "%d. %s", number, san)
		case i == 0:
			fmt.Fprintf(&sb, "%d... %s", number, san)
		default:
			sb.WriteString(san)
		}
		if pos.Turn() == chess.Black {
			number++
		}
	}
	return sb.String()
}

// Tail returns at most n trailing characters of the prompt's movetext, for
// progress messages.
func Tail(prompt string, n int) string {
	if i := strings.LastIndex(prompt, "]"); i >= 0 {
		prompt = prompt[i+1:]
	}
	if len(prompt) > n {
		prompt = prompt[len(prompt)-n:]
	}
	return prompt
}
