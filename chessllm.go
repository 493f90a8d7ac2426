// Package chessllm chooses chess moves by asking a text-completion language
// model to continue a PGN transcript.
//
// Example usage:
//
//	client, err := chessllm.New(
//	    chessllm.WithCompleter(openai.New(apiKey)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	move, err := client.BestMove(ctx, chess.NewGame())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(move) // e.g. "e4"
package chessllm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/notnil/chess"
	"go.uber.org/zap"

	"github.com/discochess/chessllm/internal/cache"
	"github.com/discochess/chessllm/internal/completion"
	"github.com/discochess/chessllm/internal/config"
	"github.com/discochess/chessllm/internal/decode"
	"github.com/discochess/chessllm/internal/fen"
	"github.com/discochess/chessllm/internal/prompt"
	"github.com/discochess/chessllm/internal/stats"
)

// MinLookaheadTokens is the smallest accepted completion budget.
const MinLookaheadTokens = config.MinLookaheadTokens

// queryPreviewLen is how much of the prompt movetext is echoed to the
// conversation before a query.
const queryPreviewLen = 90

// Sentinel errors for well-defined error conditions.
var (
	// ErrNoValidMove indicates the completion contained no legal move.
	// It wraps the decoder's reason (decode.ErrIllegalMove,
	// decode.ErrUnparseable) when there is one.
	ErrNoValidMove = errors.New("chessllm: no valid move")

	// ErrTokenBudget indicates a lookahead budget below MinLookaheadTokens.
	ErrTokenBudget = errors.New("chessllm: token budget below minimum")

	// ErrNoCompleter indicates no completer was provided.
	ErrNoCompleter = errors.New("chessllm: no completer provided")

	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("chessllm: client closed")

	// ErrGameOver indicates the game already has an outcome.
	ErrGameOver = prompt.ErrGameOver
)

// Conversation rooms.
const (
	RoomPlayer    = "player"
	RoomSpectator = "spectator"
)

// Conversation receives progress messages while a move is resolved, such as
// a game chat with the opponent and spectators.
type Conversation interface {
	SendMessage(room, text string)
}

// ConversationFunc adapts a function to Conversation.
type ConversationFunc func(room, text string)

// SendMessage calls f(room, text).
func (f ConversationFunc) SendMessage(room, text string) { f(room, text) }

// Request holds per-call overrides for Resolve.
type Request struct {
	// Tokens overrides the client's lookahead budget when non-zero.
	Tokens int

	// Conversation, if set, receives progress messages.
	Conversation Conversation
}

// Client resolves the move to play in a position, consulting the prediction
// cache before the language model. A Client is safe for concurrent use;
// resolutions are serialized so cache updates never interleave.
type Client struct {
	completer   completion.Completer
	cache       cache.Cache
	model       string
	temperature float64
	tokens      int
	stats       stats.Collector
	logger      *zap.Logger

	mu     sync.Mutex
	closed atomic.Bool
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if cfg.completer == nil {
		return nil, ErrNoCompleter
	}
	if cfg.tokens < MinLookaheadTokens {
		return nil, fmt.Errorf("%w: %d < %d", ErrTokenBudget, cfg.tokens, MinLookaheadTokens)
	}
	if cfg.cache == nil {
		c, err := newMemoryCache(cfg.logger, cfg.stats)
		if err != nil {
			return nil, err
		}
		cfg.cache = c
	}

	c := &Client{
		completer:   cfg.completer,
		cache:       cfg.cache,
		model:       cfg.model,
		temperature: cfg.temperature,
		tokens:      cfg.tokens,
		stats:       cfg.stats,
		logger:      cfg.logger,
	}

	c.logger.Debug("client initialized",
		zap.String("model", c.model),
		zap.Float64("temperature", c.temperature),
		zap.Int("lookaheadTokens", c.tokens),
	)

	return c, nil
}

// BestMove returns the SAN move to play in g using the client's defaults.
func (c *Client) BestMove(ctx context.Context, g *chess.Game) (string, error) {
	return c.Resolve(ctx, g, Request{})
}

// Resolve returns the SAN move to play in g.
//
// A cached move for the position is returned without querying the model.
// Otherwise the model continues the game's PGN and every move it predicts
// that is legal, in order, is cached against the position it was played
// from. g is never modified. A cache write failure is logged and does not
// fail the call.
func (c *Client) Resolve(ctx context.Context, g *chess.Game, req Request) (string, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}

	tokens := req.Tokens
	if tokens == 0 {
		tokens = c.tokens
	}
	if tokens < MinLookaheadTokens {
		return "", fmt.Errorf("%w: %d < %d", ErrTokenBudget, tokens, MinLookaheadTokens)
	}

	conv := req.Conversation
	if conv == nil {
		conv = ConversationFunc(func(string, string) {})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.IncCounter(stats.MetricResolutions, 1)

	key := fen.Key(g.Position())
	cached, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("reading cache: %w", err)
	}
	if ok {
		c.stats.IncCounter(stats.MetricCacheHits, 1)
		c.logger.Debug("cache hit", zap.String("fen", key), zap.String("move", cached))
		if len(g.Moves()) > 0 {
			conv.SendMessage(RoomPlayer, fmt.Sprintf("You played a move already in my cache (because I predicted it or someone already played it)! Returning %s.", cached))
			conv.SendMessage(RoomSpectator, fmt.Sprintf("Player played a move already in my cache (because I predicted it or someone already played it). Returning %s.", cached))
		}
		return cached, nil
	}
	c.stats.IncCounter(stats.MetricCacheMisses, 1)

	query, err := prompt.Build(g)
	if err != nil {
		return "", err
	}

	preview := fmt.Sprintf("Querying %s with ... %s", c.model, prompt.Tail(query, queryPreviewLen))
	conv.SendMessage(RoomPlayer, preview)
	conv.SendMessage(RoomSpectator, preview)

	text, err := c.complete(ctx, query, tokens)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(text, "-O") {
		c.stats.IncCounter(stats.MetricCastlingRetries, 1)
		c.logger.Debug("retrying ambiguous castling fragment", zap.String("reply", text))
		if text, err = c.complete(ctx, query+" ", tokens); err != nil {
			return "", err
		}
	}

	conv.SendMessage(RoomSpectator, fmt.Sprintf("Received reply of '%s'", text))

	res := decode.Moves(g, text)
	if len(res.Moves) == 0 {
		c.stats.IncCounter(stats.MetricInvalidResponses, 1)
		c.logger.Info("no valid move in completion",
			zap.String("fen", key),
			zap.String("reply", text),
			zap.Error(res.Err),
		)
		conv.SendMessage(RoomPlayer, "Tried to make an invalid move.")
		conv.SendMessage(RoomSpectator, "Tried to make an invalid move.")
		if res.Err == nil {
			return "", fmt.Errorf("%w: empty completion", ErrNoValidMove)
		}
		return "", fmt.Errorf("%w: %w", ErrNoValidMove, res.Err)
	}

	conv.SendMessage(RoomPlayer, fmt.Sprintf("Received reply and making move %s.", res.Moves[0]))

	// A validated move is returned even if it cannot be cached.
	if err := c.record(ctx, g, res.Moves); err != nil {
		c.stats.IncCounter(stats.MetricCacheWriteErrors, 1)
		c.logger.Warn("failed to record predicted moves",
			zap.String("fen", key),
			zap.Error(err),
		)
	}

	c.logger.Debug("resolved move",
		zap.String("fen", key),
		zap.String("move", res.Moves[0]),
		zap.Strings("predicted", res.Moves[1:]),
	)
	return res.Moves[0], nil
}

// complete issues one completion request.
func (c *Client) complete(ctx context.Context, query string, tokens int) (string, error) {
	c.stats.IncCounter(stats.MetricCompletions, 1)
	start := time.Now()

	text, err := c.completer.Complete(ctx, completion.Request{
		Model:       c.model,
		Prompt:      query,
		Temperature: c.temperature,
		MaxTokens:   tokens,
	})
	stats.ObserveSince(c.stats, stats.MetricCompletionTime, start)
	if err != nil {
		c.stats.IncCounter(stats.MetricCompletionErrors, 1)
		return "", fmt.Errorf("completion: %w", err)
	}
	return text, nil
}

// record walks moves forward from a copy of g, caching each position
// against the move taken from it, then flushes the cache.
func (c *Client) record(ctx context.Context, g *chess.Game, moves []string) error {
	walk := g.Clone()
	for _, m := range moves {
		if err := c.cache.Put(ctx, fen.Key(walk.Position()), m); err != nil {
			return fmt.Errorf("writing cache: %w", err)
		}
		if err := decode.Apply(walk, m); err != nil {
			// Moves were validated on an identical copy.
			return fmt.Errorf("replaying %q: %w", m, err)
		}
	}
	c.stats.IncCounter(stats.MetricPredictedEntries, int64(len(moves)))

	if err := c.cache.Flush(ctx); err != nil {
		return fmt.Errorf("flushing cache: %w", err)
	}
	return nil
}

// Close flushes and closes the cache.
// After Close, the client should not be used.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.cache.Close(); err != nil {
		return fmt.Errorf("closing cache: %w", err)
	}
	return nil
}

// Cache returns the prediction cache used by this client.
func (c *Client) Cache() cache.Cache {
	return c.cache
}

// Model returns the completion model name.
func (c *Client) Model() string {
	return c.model
}
