package uci

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/notnil/chess"

	"github.com/discochess/chessllm"
	"github.com/discochess/chessllm/internal/completion"
	"github.com/discochess/chessllm/internal/strategy"
)

func run(t *testing.T, s strategy.Strategy, input string, opts ...Option) (string, *Engine) {
	t.Helper()
	var out bytes.Buffer
	e := New(s, &out, opts...)
	if err := e.Run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return out.String(), e
}

func bestMove(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "bestmove ") {
			return strings.TrimPrefix(line, "bestmove ")
		}
	}
	t.Fatalf("no bestmove in output %q", out)
	return ""
}

func isLegal(g *chess.Game, uciMove string) bool {
	for _, m := range g.ValidMoves() {
		if m.String() == uciMove {
			return true
		}
	}
	return false
}

func TestEngine_Handshake(t *testing.T) {
	out, _ := run(t, strategy.FirstMove{}, "uci\nisready\nquit\n",
		WithName("chess-llm-with-gpt-3.5-turbo-instruct"), WithAuthor("Nicholas Carlini"))

	want := "id name chess-llm-with-gpt-3.5-turbo-instruct\nid author Nicholas Carlini\nuciok\nreadyok\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestEngine_PositionMovesThenGo(t *testing.T) {
	out, e := run(t, strategy.FirstMove{}, "position startpos moves e2e4 e7e5\ngo\nquit\n")

	move := bestMove(t, out)
	if !isLegal(e.Game(), move) {
		t.Errorf("bestmove %s is not legal after 1. e4 e5", move)
	}
	if !strings.Contains(out, "info pv "+move+"\nbestmove "+move+"\n") {
		t.Errorf("output = %q, want info pv before bestmove", out)
	}
	if len(e.Game().Moves()) != 2 {
		t.Errorf("game has %d moves, want 2", len(e.Game().Moves()))
	}
}

func TestEngine_FallbackOnStrategyError(t *testing.T) {
	failing := strategy.Func(func(ctx context.Context, g *chess.Game, l strategy.Limits) (strategy.Result, error) {
		return strategy.Result{}, errors.New("no valid move")
	})

	out, e := run(t, failing, "position startpos moves e2e4 e7e5\ngo\nquit\n",
		WithRand(rand.New(rand.NewPCG(3, 4))))

	if move := bestMove(t, out); !isLegal(e.Game(), move) {
		t.Errorf("fallback bestmove %s is not legal", move)
	}
}

func TestEngine_FallbackOnIllegalMove(t *testing.T) {
	wrong := strategy.Func(func(ctx context.Context, g *chess.Game, l strategy.Limits) (strategy.Result, error) {
		// A Black move, illegal with White to move.
		other := chess.NewGame()
		if err := other.MoveStr("e4"); err != nil {
			return strategy.Result{}, err
		}
		return strategy.FirstMove{}.Search(ctx, other, l)
	})
	nilMove := strategy.Func(func(ctx context.Context, g *chess.Game, l strategy.Limits) (strategy.Result, error) {
		return strategy.Result{}, nil
	})

	for _, s := range []strategy.Strategy{wrong, nilMove} {
		out, e := run(t, s, "position startpos moves e2e4 e7e5 g1f3 a7a6\ngo\nquit\n")
		if move := bestMove(t, out); !isLegal(e.Game(), move) {
			t.Errorf("fallback bestmove %s is not legal", move)
		}
	}
}

func TestEngine_NoLegalMoves(t *testing.T) {
	out, _ := run(t, strategy.FirstMove{}, "position startpos moves f2f3 e7e5 g2g4 d8h4\ngo\n")
	if move := bestMove(t, out); move != NullMove {
		t.Errorf("bestmove = %s, want %s", move, NullMove)
	}
}

func TestEngine_PositionFEN(t *testing.T) {
	const fenStr = "4k3/8/8/8/8/8/4P3/4K3 w - - 0 1"
	out, e := run(t, strategy.FirstMove{}, "position fen "+fenStr+" moves e2e4\ngo\nquit\n")

	if e.Game().Position().Turn() != chess.Black {
		t.Error("expected Black to move after e2e4")
	}
	if move := bestMove(t, out); !isLegal(e.Game(), move) {
		t.Errorf("bestmove %s is not legal", move)
	}
}

func TestEngine_IllegalPositionMoveStops(t *testing.T) {
	_, e := run(t, strategy.FirstMove{}, "position startpos moves e2e4 e2e4 d7d5\nquit\n")
	if n := len(e.Game().Moves()); n != 1 {
		t.Errorf("game has %d moves, want 1", n)
	}
}

func TestEngine_UCINewGame(t *testing.T) {
	_, e := run(t, strategy.FirstMove{}, "position startpos moves d2d4\nucinewgame\nquit\n")
	if n := len(e.Game().Moves()); n != 0 {
		t.Errorf("game has %d moves after ucinewgame, want 0", n)
	}
}

func TestEngine_GoPassesClock(t *testing.T) {
	var got strategy.Limits
	capture := strategy.Func(func(ctx context.Context, g *chess.Game, l strategy.Limits) (strategy.Result, error) {
		got = l
		return strategy.FirstMove{}.Search(ctx, g, l)
	})

	run(t, capture, "position startpos\ngo wtime 300000 btime 290000 winc 2000 binc 2000\nquit\n")

	if got.WhiteTime != 5*time.Minute || got.BlackTime != 290*time.Second {
		t.Errorf("clock = %v / %v", got.WhiteTime, got.BlackTime)
	}
	if got.WhiteInc != 2*time.Second || got.BlackInc != 2*time.Second {
		t.Errorf("increment = %v / %v", got.WhiteInc, got.BlackInc)
	}
}

func TestEngine_UnknownCommandIgnored(t *testing.T) {
	out, _ := run(t, strategy.FirstMove{}, "debug on\nsetoption name Hash value 16\nisready\n")
	if out != "readyok\n" {
		t.Errorf("output = %q, want only readyok", out)
	}
}

func TestParseLimits(t *testing.T) {
	l := parseLimits([]string{"movetime", "1500", "wtime", "bogus", "depth", "5"})
	if l.MoveTime != 1500*time.Millisecond {
		t.Errorf("MoveTime = %v, want 1.5s", l.MoveTime)
	}
	if l.WhiteTime != 0 {
		t.Errorf("WhiteTime = %v, want 0 for malformed value", l.WhiteTime)
	}
}

func TestEngine_FallbackOnGarbageCompletion(t *testing.T) {
	garbage := completion.Func(func(ctx context.Context, req completion.Request) (string, error) {
		return "Z9", nil
	})
	client, err := chessllm.New(chessllm.WithCompleter(garbage))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	out, e := run(t, strategy.NewLLM(client), "position startpos moves e2e4 e7e5\ngo\nquit\n",
		WithRand(rand.New(rand.NewPCG(5, 6))))

	if move := bestMove(t, out); !isLegal(e.Game(), move) {
		t.Errorf("bestmove %s is not legal after 1. e4 e5", move)
	}
}
