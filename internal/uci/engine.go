// Package uci runs a move strategy behind the Universal Chess Interface
// line protocol.
package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/notnil/chess"
	"go.uber.org/zap"

	"github.com/discochess/chessllm/internal/strategy"
)

// NullMove is sent as the best move when the position has no legal moves.
const NullMove = "0000"

// Engine answers UCI commands read from an input stream. Protocol output
// goes to the writer given to New; diagnostics go to the logger only.
type Engine struct {
	name     string
	author   string
	strategy strategy.Strategy
	logger   *zap.Logger
	rng      *rand.Rand

	mu  sync.Mutex
	out *bufio.Writer

	game *chess.Game
}

// Option configures an Engine.
type Option func(*Engine)

// WithName sets the "id name" reply.
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// WithAuthor sets the "id author" reply.
func WithAuthor(author string) Option {
	return func(e *Engine) { e.author = author }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRand sets the source for fallback moves.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// New creates an engine that asks s for moves and writes replies to w.
func New(s strategy.Strategy, w io.Writer, opts ...Option) *Engine {
	e := &Engine{
		name:     "chessllm",
		author:   "chessllm",
		strategy: s,
		logger:   zap.NewNop(),
		out:      bufio.NewWriter(w),
		game:     chess.NewGame(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("session", uuid.NewString()))
	return e
}

// Run processes commands from r until "quit", end of input or ctx is done.
func (e *Engine) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		e.logger.Debug("got line", zap.String("line", line))
		if line == "" {
			continue
		}
		quit, err := e.Handle(ctx, line)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

// Handle processes one command line. It reports whether the engine should
// quit. Errors are only returned for output failures.
func (e *Engine) Handle(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "uci":
		return false, e.send(
			"id name "+e.name,
			"id author "+e.author,
			"uciok",
		)
	case "isready":
		return false, e.send("readyok")
	case "ucinewgame":
		e.game = chess.NewGame()
	case "position":
		e.position(fields[1:])
	case "go":
		return false, e.goSearch(ctx, fields[1:])
	case "stop":
		// Searches are synchronous; there is nothing to interrupt.
	case "quit":
		return true, nil
	default:
		e.logger.Debug("ignoring command", zap.String("command", fields[0]))
	}
	return false, nil
}

// position handles "startpos [moves ...]" and "fen <fen> [moves ...]".
// Moves after the first illegal one are ignored.
func (e *Engine) position(args []string) {
	setup, moves := args, []string(nil)
	for i, a := range args {
		if a == "moves" {
			setup, moves = args[:i], args[i+1:]
			break
		}
	}

	game := chess.NewGame()
	if len(setup) > 0 && setup[0] == "fen" {
		opt, err := chess.FEN(strings.Join(setup[1:], " "))
		if err != nil {
			e.logger.Warn("invalid position fen", zap.Strings("args", setup[1:]), zap.Error(err))
			return
		}
		game = chess.NewGame(opt)
	} else if len(setup) == 0 || setup[0] != "startpos" {
		e.logger.Warn("unsupported position command", zap.Strings("args", args))
		return
	}

	for _, s := range moves {
		m, err := chess.UCINotation{}.Decode(game.Position(), s)
		if err == nil {
			err = game.Move(m)
		}
		if err != nil {
			e.logger.Warn("invalid move in position", zap.String("move", s), zap.Error(err))
			break
		}
	}

	e.game = game
	e.logger.Debug("now position", zap.String("fen", game.Position().String()))
}

// goSearch asks the strategy for a move, falling back to a random legal
// move, and reports it.
func (e *Engine) goSearch(ctx context.Context, args []string) error {
	e.logger.Debug("starting search")

	legal := e.game.ValidMoves()
	if len(legal) == 0 {
		return e.send("bestmove " + NullMove)
	}

	move := e.search(ctx, legal, parseLimits(args))
	uciMove := chess.UCINotation{}.Encode(e.game.Position(), move)
	return e.send(
		"info pv "+uciMove,
		"bestmove "+uciMove,
	)
}

func (e *Engine) search(ctx context.Context, legal []*chess.Move, limits strategy.Limits) *chess.Move {
	res, err := e.strategy.Search(ctx, e.game, limits)
	switch {
	case err != nil:
		e.logger.Info("invalid move from strategy", zap.Error(err))
	case res.Move == nil:
		e.logger.Info("strategy returned no move")
	default:
		for _, m := range legal {
			if m.String() == res.Move.String() {
				e.logger.Debug("have move", zap.String("move", m.String()))
				return m
			}
		}
		e.logger.Info("strategy move is not legal", zap.String("move", res.Move.String()))
	}

	var i int
	if e.rng != nil {
		i = e.rng.IntN(len(legal))
	} else {
		i = rand.IntN(len(legal))
	}
	return legal[i]
}

// parseLimits reads the clock parameters of a "go" command. Times are in
// milliseconds; unknown or malformed parameters are ignored.
func parseLimits(args []string) strategy.Limits {
	var l strategy.Limits
	for i := 0; i+1 < len(args); i++ {
		var dst *time.Duration
		switch args[i] {
		case "wtime":
			dst = &l.WhiteTime
		case "btime":
			dst = &l.BlackTime
		case "winc":
			dst = &l.WhiteInc
		case "binc":
			dst = &l.BlackInc
		case "movetime":
			dst = &l.MoveTime
		default:
			continue
		}
		ms, err := strconv.Atoi(args[i+1])
		if err != nil {
			continue
		}
		*dst = time.Duration(ms) * time.Millisecond
		i++
	}
	return l
}

// Game returns the current position's game.
func (e *Engine) Game() *chess.Game {
	return e.game
}

func (e *Engine) send(lines ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, line := range lines {
		if _, err := fmt.Fprintln(e.out, line); err != nil {
			return err
		}
	}
	return e.out.Flush()
}
