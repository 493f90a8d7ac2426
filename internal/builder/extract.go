package builder

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/notnil/chess"
	"go.uber.org/zap"

	"github.com/discochess/chessllm/internal/prompt"
	"github.com/discochess/chessllm/internal/puzzle"
)

// Columns of the lichess puzzle CSV.
const (
	colID      = 0
	colMoves   = 2
	colRating  = 3
	colGameURL = 8
)

// ExtractResult summarizes a puzzle extraction.
type ExtractResult struct {
	Puzzles []puzzle.Puzzle

	// Read is the number of puzzle rows seen.
	Read int

	// Unindexed counts rows whose game is not in the archive.
	Unindexed int

	// Skipped counts rows that could not be replayed.
	Skipped int
}

// Extract reads the lichess puzzle CSV (with header) and rebuilds each
// puzzle whose source game is in idx: the game is replayed up to the
// puzzle ply and the UCI solution is converted to SAN.
func Extract(ctx context.Context, puzzles io.Reader, games io.ReaderAt, idx Index, log *zap.Logger, progress ProgressFunc) (*ExtractResult, error) {
	if log == nil {
		log = zap.NewNop()
	}

	cr := csv.NewReader(puzzles)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("reading puzzle header: %w", err)
	}

	res := &ExtractResult{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("reading puzzles: %w", err)
		}
		res.Read++
		if res.Read%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if progress != nil {
				progress(Progress{Phase: PhaseExtract, PuzzlesRead: res.Read, PuzzlesWritten: len(res.Puzzles), Skipped: res.Skipped})
			}
		}

		p, err := extractRow(row, games, idx)
		switch {
		case errors.Is(err, ErrGameNotFound):
			res.Unindexed++
		case err != nil:
			log.Debug("skipping puzzle", zap.String("id", row[colID]), zap.Error(err))
			res.Skipped++
		default:
			res.Puzzles = append(res.Puzzles, p)
		}
	}

	if progress != nil {
		progress(Progress{Phase: PhaseExtract, PuzzlesRead: res.Read, PuzzlesWritten: len(res.Puzzles), Skipped: res.Skipped})
	}
	return res, nil
}

func extractRow(row []string, games io.ReaderAt, idx Index) (puzzle.Puzzle, error) {
	if len(row) <= colGameURL {
		return puzzle.Puzzle{}, fmt.Errorf("%w: %d columns", puzzle.ErrMalformed, len(row))
	}
	id, ply, err := ParseGameURL(row[colGameURL])
	if err != nil {
		return puzzle.Puzzle{}, err
	}
	offset, ok := idx[id]
	if !ok {
		return puzzle.Puzzle{}, ErrGameNotFound
	}
	rating, err := strconv.Atoi(row[colRating])
	if err != nil {
		return puzzle.Puzzle{}, fmt.Errorf("%w: rating %q", puzzle.ErrMalformed, row[colRating])
	}

	pgn, err := FetchGame(games, offset)
	if err != nil {
		return puzzle.Puzzle{}, err
	}
	board, err := replayPGN(pgn, ply)
	if err != nil {
		return puzzle.Puzzle{}, err
	}
	solution, err := toSAN(board, strings.Fields(row[colMoves]))
	if err != nil {
		return puzzle.Puzzle{}, err
	}

	return puzzle.Puzzle{
		ID:       strings.Clone(row[colID]),
		Rating:   rating,
		MoveText: prompt.MoveText(board),
		Solution: solution,
	}, nil
}

// ParseGameURL splits a lichess puzzle GameUrl such as
// "https://lichess.org/787zsVup/black#48" into the game id and ply. Older
// dumps write the ply as "#Some(48)".
func ParseGameURL(url string) (id string, ply int, err error) {
	_, rest, ok := strings.Cut(url, ".org/")
	if !ok {
		return "", 0, fmt.Errorf("%w: game url %q", puzzle.ErrMalformed, url)
	}
	i := strings.LastIndexByte(rest, '#')
	if i < 0 {
		return "", 0, fmt.Errorf("%w: game url %q has no ply", puzzle.ErrMalformed, url)
	}
	id, frag := rest[:i], rest[i+1:]
	id, _, _ = strings.Cut(id, "/")

	if inner, ok := strings.CutPrefix(frag, "Some("); ok {
		frag = strings.TrimSuffix(inner, ")")
	}
	ply, err = strconv.Atoi(frag)
	if err != nil || id == "" || ply < 0 {
		return "", 0, fmt.Errorf("%w: game url %q", puzzle.ErrMalformed, url)
	}
	return id, ply, nil
}

// replayPGN parses a single game and replays its first ply moves on a fresh
// board. A ply past the end of the game stops at the last move.
func replayPGN(pgn string, ply int) (*chess.Game, error) {
	opt, err := chess.PGN(strings.NewReader(pgn))
	if err != nil {
		return nil, fmt.Errorf("%w: pgn: %w", puzzle.ErrMalformed, err)
	}
	moves := chess.NewGame(opt).Moves()
	if ply > len(moves) {
		ply = len(moves)
	}

	board := chess.NewGame()
	for _, m := range moves[:ply] {
		if err := playUCI(board, m.String()); err != nil {
			return nil, err
		}
	}
	return board, nil
}

// toSAN converts UCI moves played from g into SAN. g is not modified.
func toSAN(g *chess.Game, uci []string) ([]string, error) {
	if len(uci) == 0 {
		return nil, fmt.Errorf("%w: empty solution", puzzle.ErrMalformed)
	}
	board := g.Clone()
	san := make([]string, 0, len(uci))
	for _, s := range uci {
		m, err := findUCI(board, s)
		if err != nil {
			return nil, err
		}
		san = append(san, chess.AlgebraicNotation{}.Encode(board.Position(), m))
		if err := board.Move(m); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", puzzle.ErrMalformed, s, err)
		}
	}
	return san, nil
}

func playUCI(g *chess.Game, s string) error {
	m, err := findUCI(g, s)
	if err != nil {
		return err
	}
	return g.Move(m)
}

// findUCI returns the legal move of g written s in UCI notation.
func findUCI(g *chess.Game, s string) (*chess.Move, error) {
	for _, m := range g.ValidMoves() {
		if m.String() == s {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: illegal move %s", puzzle.ErrMalformed, s)
}
