// Package strategy provides interchangeable move choosers for bots and the
// UCI engine.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/notnil/chess"

	"github.com/discochess/chessllm"
	"github.com/discochess/chessllm/internal/decode"
)

// ErrNoMoves is returned when the position has no legal moves.
var ErrNoMoves = errors.New("strategy: no legal moves")

// ErrUnknown is returned by ByName for an unregistered strategy.
var ErrUnknown = errors.New("strategy: unknown strategy")

// Limits describes the search constraints for one move.
type Limits struct {
	// MoveTime is a fixed time for this move. When set it takes precedence
	// over the clocks.
	MoveTime time.Duration

	WhiteTime, BlackTime time.Duration
	WhiteInc, BlackInc   time.Duration

	// DrawOffered reports that the opponent offered a draw.
	DrawOffered bool

	// RootMoves restricts the choice to these moves when non-empty.
	RootMoves []*chess.Move

	// Conversation receives progress messages from strategies that send them.
	Conversation chessllm.Conversation
}

// clock returns the remaining time and increment of the side to move.
func (l Limits) clock(turn chess.Color) (remaining, inc time.Duration) {
	if l.MoveTime > 0 {
		return l.MoveTime, 0
	}
	if turn == chess.White {
		return l.WhiteTime, l.WhiteInc
	}
	return l.BlackTime, l.BlackInc
}

// Result is the chosen move.
type Result struct {
	Move   *chess.Move
	Ponder *chess.Move

	// DrawOffered accepts or offers a draw alongside the move.
	DrawOffered bool
}

// Strategy chooses a move for the side to move in g. Implementations must
// not modify g.
type Strategy interface {
	Search(ctx context.Context, g *chess.Game, limits Limits) (Result, error)
}

// Func adapts a function to Strategy.
type Func func(ctx context.Context, g *chess.Game, limits Limits) (Result, error)

// Search calls f.
func (f Func) Search(ctx context.Context, g *chess.Game, limits Limits) (Result, error) {
	return f(ctx, g, limits)
}

// Resolver resolves a SAN move for a game.
type Resolver interface {
	Resolve(ctx context.Context, g *chess.Game, req chessllm.Request) (string, error)
}

// Names lists the registered strategies.
var Names = []string{"llm", "random", "alphabetical", "first_move", "combo"}

// ByName returns the named strategy. The resolver is only needed for "llm".
func ByName(name string, r Resolver) (Strategy, error) {
	switch name {
	case "llm":
		if r == nil {
			return nil, fmt.Errorf("strategy llm: no resolver")
		}
		return NewLLM(r), nil
	case "random":
		return NewRandom(nil), nil
	case "alphabetical":
		return Alphabetical{}, nil
	case "first_move":
		return FirstMove{}, nil
	case "combo":
		return NewCombo(nil), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
}

// Random picks a uniformly random legal move.
type Random struct {
	rng *rand.Rand
}

// NewRandom returns a random strategy drawing from rng, or from the global
// source when rng is nil.
func NewRandom(rng *rand.Rand) *Random {
	return &Random{rng: rng}
}

// Search returns a random legal move.
func (s *Random) Search(ctx context.Context, g *chess.Game, limits Limits) (Result, error) {
	moves := candidates(g, limits)
	if len(moves) == 0 {
		return Result{}, ErrNoMoves
	}
	return Result{Move: moves[intn(s.rng, len(moves))]}, nil
}

// Alphabetical picks the first legal move when sorted by SAN.
type Alphabetical struct{}

// Search returns the first move by SAN.
func (Alphabetical) Search(ctx context.Context, g *chess.Game, limits Limits) (Result, error) {
	pos := g.Position()
	return firstBy(candidates(g, limits), func(m *chess.Move) string {
		return chess.AlgebraicNotation{}.Encode(pos, m)
	})
}

// FirstMove picks the first legal move when sorted by UCI.
type FirstMove struct{}

// Search returns the first move by UCI.
func (FirstMove) Search(ctx context.Context, g *chess.Game, limits Limits) (Result, error) {
	pos := g.Position()
	return firstBy(candidates(g, limits), func(m *chess.Move) string {
		return chess.UCINotation{}.Encode(pos, m)
	})
}

// Combo plays fast when it has time to spare: a random move when the
// clock in minutes plus the increment in seconds exceeds 10, otherwise the
// first move by UCI. It echoes draw offers.
type Combo struct {
	random *Random
}

// NewCombo returns a combo strategy drawing random moves from rng.
func NewCombo(rng *rand.Rand) *Combo {
	return &Combo{random: NewRandom(rng)}
}

// Search chooses by the remaining clock.
func (s *Combo) Search(ctx context.Context, g *chess.Game, limits Limits) (Result, error) {
	remaining, inc := limits.clock(g.Position().Turn())

	var (
		res Result
		err error
	)
	if remaining.Minutes()+inc.Seconds() > 10 {
		res, err = s.random.Search(ctx, g, limits)
	} else {
		res, err = FirstMove{}.Search(ctx, g, limits)
	}
	if err != nil {
		return Result{}, err
	}
	res.DrawOffered = limits.DrawOffered
	return res, nil
}

// LLM asks the language model resolver for the move.
type LLM struct {
	resolver Resolver
}

// NewLLM returns a strategy backed by r.
func NewLLM(r Resolver) *LLM {
	return &LLM{resolver: r}
}

// Search resolves the SAN move and converts it to a move on g's position.
func (s *LLM) Search(ctx context.Context, g *chess.Game, limits Limits) (Result, error) {
	san, err := s.resolver.Resolve(ctx, g, chessllm.Request{Conversation: limits.Conversation})
	if err != nil {
		return Result{}, err
	}
	m, err := decode.Parse(g.Position(), san)
	if err != nil {
		return Result{}, fmt.Errorf("resolver move %q: %w", san, err)
	}
	return Result{Move: m}, nil
}

// candidates returns the root moves if given, otherwise all legal moves.
func candidates(g *chess.Game, limits Limits) []*chess.Move {
	if len(limits.RootMoves) > 0 {
		return limits.RootMoves
	}
	return g.ValidMoves()
}

func firstBy(moves []*chess.Move, key func(*chess.Move) string) (Result, error) {
	if len(moves) == 0 {
		return Result{}, ErrNoMoves
	}
	sorted := make([]*chess.Move, len(moves))
	copy(sorted, moves)
	sort.SliceStable(sorted, func(i, j int) bool {
		return key(sorted[i]) < key(sorted[j])
	})
	return Result{Move: sorted[0]}, nil
}

func intn(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}
