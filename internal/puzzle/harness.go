package puzzle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/discochess/chessllm/internal/stats"
)

// Bucketing defaults.
const (
	DefaultBucketWidth = 200
	DefaultBuckets     = 30
	DefaultPerBucket   = 20
)

// Harness solves a batch of puzzles grouped into rating buckets.
type Harness struct {
	guesser     Guesser
	bucketWidth int
	buckets     int
	perBucket   int
	logger      *zap.Logger
	collector   stats.Collector
}

// HarnessOption configures a Harness.
type HarnessOption func(*Harness)

// WithPerBucket caps the number of puzzles solved per rating bucket.
func WithPerBucket(n int) HarnessOption {
	return func(h *Harness) { h.perBucket = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) HarnessOption {
	return func(h *Harness) { h.logger = l }
}

// WithStats sets the metrics collector.
func WithStats(c stats.Collector) HarnessOption {
	return func(h *Harness) { h.collector = c }
}

// NewHarness creates a harness asking g for moves.
func NewHarness(g Guesser, opts ...HarnessOption) *Harness {
	h := &Harness{
		guesser:     g,
		bucketWidth: DefaultBucketWidth,
		buckets:     DefaultBuckets,
		perBucket:   DefaultPerBucket,
		logger:      zap.NewNop(),
		collector:   stats.NewNoop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run solves puzzles in order, skipping those whose bucket is full, whose
// rating is outside the buckets, or that cannot be replayed. On a guesser
// error the partial report is returned with the error.
func (h *Harness) Run(ctx context.Context, puzzles []Puzzle) (*Report, error) {
	r := &Report{
		RunID:   uuid.New(),
		Started: time.Now(),
		Buckets: make([]Bucket, h.buckets),
	}
	for i := range r.Buckets {
		r.Buckets[i].Low = i * h.bucketWidth
		r.Buckets[i].High = (i + 1) * h.bucketWidth
	}
	log := h.logger.With(zap.String("run", r.RunID.String()))

	for _, p := range puzzles {
		if err := ctx.Err(); err != nil {
			return r, err
		}

		i := p.Rating / h.bucketWidth
		if p.Rating < 0 || i >= h.buckets {
			r.Skipped++
			continue
		}
		b := &r.Buckets[i]
		if len(b.Results) >= h.perBucket {
			continue
		}

		g, err := Replay(p.MoveText)
		if err != nil {
			log.Debug("skipping puzzle", zap.String("id", p.ID), zap.Error(err))
			r.Skipped++
			continue
		}

		ok, err := Solve(ctx, g, p.Solution, h.guesser)
		if errors.Is(err, ErrMalformed) {
			log.Debug("skipping puzzle", zap.String("id", p.ID), zap.Error(err))
			r.Skipped++
			continue
		}
		if err != nil {
			return r, fmt.Errorf("puzzle %s: %w", p.ID, err)
		}

		b.Results = append(b.Results, ok)
		if ok {
			h.collector.IncCounter(stats.MetricPuzzlesSolved, 1)
		} else {
			h.collector.IncCounter(stats.MetricPuzzlesFailed, 1)
		}
		log.Debug("solved puzzle", zap.String("id", p.ID), zap.Int("rating", p.Rating), zap.Bool("correct", ok))
	}

	r.Elapsed = time.Since(r.Started)
	log.Info("puzzle run finished",
		zap.Int("attempted", r.Attempted()),
		zap.Float64("accuracy", r.Accuracy()),
		zap.Int("skipped", r.Skipped),
		zap.Duration("elapsed", r.Elapsed),
	)
	return r, nil
}

// Bucket holds the results for one rating range [Low, High).
type Bucket struct {
	Low, High int
	Results   []bool
}

// Accuracy returns the fraction of correct answers, or NaN for an empty
// bucket.
func (b Bucket) Accuracy() float64 {
	if len(b.Results) == 0 {
		return math.NaN()
	}
	return stat.Mean(toFloats(b.Results), nil)
}

// Report is the outcome of a harness run.
type Report struct {
	RunID   uuid.UUID
	Started time.Time
	Elapsed time.Duration
	Buckets []Bucket
	Skipped int
}

// Attempted returns the number of puzzles scored.
func (r *Report) Attempted() int {
	n := 0
	for _, b := range r.Buckets {
		n += len(b.Results)
	}
	return n
}

// Accuracy returns the overall fraction correct, or NaN if nothing was
// scored.
func (r *Report) Accuracy() float64 {
	var all []bool
	for _, b := range r.Buckets {
		all = append(all, b.Results...)
	}
	if len(all) == 0 {
		return math.NaN()
	}
	return stat.Mean(toFloats(all), nil)
}

// WriteText writes one "rating R acc A" line per bucket.
func (r *Report) WriteText(w io.Writer) error {
	for _, b := range r.Buckets {
		if _, err := fmt.Fprintf(w, "rating %d acc %s\n", b.Low, formatAcc(b.Accuracy())); err != nil {
			return err
		}
	}
	return nil
}

// WriteMarkdown writes a table of the non-empty buckets.
func (r *Report) WriteMarkdown(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "## Puzzle accuracy (run %s)\n\n| Rating | Puzzles | Accuracy |\n|---|---|---|\n", r.RunID); err != nil {
		return err
	}
	for _, b := range r.Buckets {
		if len(b.Results) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "| %d-%d | %d | %.1f%% |\n", b.Low, b.High, len(b.Results), b.Accuracy()*100); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\nOverall: %d puzzles, %s correct, %d skipped.\n",
		r.Attempted(), formatPercent(r.Accuracy()), r.Skipped)
	return err
}

func toFloats(results []bool) []float64 {
	xs := make([]float64, len(results))
	for i, ok := range results {
		if ok {
			xs[i] = 1
		}
	}
	return xs
}

func formatAcc(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.3f", v)
}

func formatPercent(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", v*100)
}
