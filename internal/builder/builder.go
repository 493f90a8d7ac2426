package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/discochess/chessllm/internal/codec/zstdcodec"
	"github.com/discochess/chessllm/internal/puzzle"
	"github.com/discochess/chessllm/internal/store"
	"github.com/discochess/chessllm/internal/store/diskstore"
)

const (
	// DefaultGamesURL is the lichess game archive the puzzles are drawn from.
	DefaultGamesURL = "https://database.lichess.org/standard/lichess_db_standard_rated_2016-02.pgn.zst"

	// DefaultPuzzlesURL is the lichess puzzle database.
	DefaultPuzzlesURL = "https://database.lichess.org/lichess_db_puzzle.csv.zst"

	// DefaultOutput is the file name of the generated puzzle batch.
	DefaultOutput = "pgn_puzzles.csv"
)

// Builder produces a puzzle batch from the lichess archives.
type Builder struct {
	gamesURL   string
	puzzlesURL string
	workDir    string
	output     string
	index      store.Store
	downloader *Downloader
	progress   ProgressFunc
	logger     *zap.Logger
}

// Option configures the Builder.
type Option func(*Builder)

// WithGamesURL sets the game archive URL.
func WithGamesURL(url string) Option {
	return func(b *Builder) { b.gamesURL = url }
}

// WithPuzzlesURL sets the puzzle database URL.
func WithPuzzlesURL(url string) Option {
	return func(b *Builder) { b.puzzlesURL = url }
}

// WithWorkDir sets the directory archives are downloaded to.
func WithWorkDir(dir string) Option {
	return func(b *Builder) { b.workDir = dir }
}

// WithOutput sets the path of the generated puzzle CSV. The manifest is
// written next to it.
func WithOutput(path string) Option {
	return func(b *Builder) { b.output = path }
}

// WithIndexStore sets where the game index is cached between runs.
// By default it is kept zstd-compressed in the work directory.
func WithIndexStore(s store.Store) Option {
	return func(b *Builder) { b.index = s }
}

// WithDownloader sets the downloader.
func WithDownloader(d *Downloader) Option {
	return func(b *Builder) { b.downloader = d }
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(b *Builder) { b.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a new Builder with the given options.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		gamesURL:   DefaultGamesURL,
		puzzlesURL: DefaultPuzzlesURL,
		workDir:    ".",
		output:     DefaultOutput,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.downloader == nil {
		b.downloader = NewDownloader()
	}
	return b
}

// Build downloads both archives concurrently and then builds the batch.
func (b *Builder) Build(ctx context.Context) (*Manifest, error) {
	if err := os.MkdirAll(b.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}

	var gamesPath, puzzlesPath string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		gamesPath, err = b.downloader.Fetch(gctx, b.gamesURL, b.workDir, b.progress)
		if err != nil {
			return fmt.Errorf("fetching games: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		puzzlesPath, err = b.downloader.Fetch(gctx, b.puzzlesURL, b.workDir, b.progress)
		if err != nil {
			return fmt.Errorf("fetching puzzles: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return b.BuildFromFiles(ctx, gamesPath, puzzlesPath)
}

// BuildFromFiles builds the batch from a decompressed PGN archive and
// puzzle CSV already on disk.
func (b *Builder) BuildFromFiles(ctx context.Context, gamesPath, puzzlesPath string) (*Manifest, error) {
	start := time.Now()

	games, err := os.Open(gamesPath)
	if err != nil {
		return nil, fmt.Errorf("opening games: %w", err)
	}
	defer games.Close()

	idx, err := b.loadIndex(ctx, games)
	if err != nil {
		return nil, err
	}

	puzzles, err := os.Open(puzzlesPath)
	if err != nil {
		return nil, fmt.Errorf("opening puzzles: %w", err)
	}
	defer puzzles.Close()

	res, err := Extract(ctx, puzzles, games, idx, b.logger, b.progress)
	if err != nil {
		return nil, err
	}

	if err := b.writeOutput(res.Puzzles); err != nil {
		return nil, err
	}

	m := &Manifest{
		Version:      1,
		GamesURL:     b.gamesURL,
		PuzzlesURL:   b.puzzlesURL,
		Output:       filepath.Base(b.output),
		IndexedGames: len(idx),
		PuzzlesRead:  res.Read,
		PuzzleCount:  len(res.Puzzles),
		Unindexed:    res.Unindexed,
		Skipped:      res.Skipped,
		BuiltAt:      time.Now().UTC(),
	}
	if err := WriteManifest(filepath.Dir(b.output), m); err != nil {
		return nil, err
	}

	b.logger.Info("built puzzle batch",
		zap.String("output", b.output),
		zap.Int("puzzles", m.PuzzleCount),
		zap.Int("skipped", m.Skipped),
		zap.Int("unindexed", m.Unindexed),
		zap.Duration("elapsed", time.Since(start)),
	)
	if b.progress != nil {
		b.progress(Progress{Phase: PhaseDone, PuzzlesRead: res.Read, PuzzlesWritten: m.PuzzleCount, Skipped: m.Skipped, StartTime: start})
	}
	return m, nil
}

// loadIndex returns the cached game index, building and saving it when the
// store has none.
func (b *Builder) loadIndex(ctx context.Context, games *os.File) (Index, error) {
	s := b.index
	if s == nil {
		ds, err := diskstore.New(b.workDir, zstdcodec.New())
		if err != nil {
			return nil, err
		}
		s = ds
		defer ds.Close()
	}

	idx, err := LoadIndex(ctx, s)
	if err == nil {
		b.logger.Info("loaded game index", zap.Int("games", len(idx)))
		return idx, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	idx, err = BuildIndex(ctx, games, b.progress)
	if err != nil {
		return nil, err
	}
	if err := SaveIndex(ctx, s, idx); err != nil {
		return nil, fmt.Errorf("saving index: %w", err)
	}
	return idx, nil
}

func (b *Builder) writeOutput(puzzles []puzzle.Puzzle) error {
	if dir := filepath.Dir(b.output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(b.output)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := puzzle.WriteCSV(f, puzzles); err != nil {
		f.Close()
		return fmt.Errorf("writing puzzles: %w", err)
	}
	return f.Close()
}
