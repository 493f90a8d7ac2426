// Package stats provides a unified interface for collecting metrics.
package stats

import "time"

// Metric names used throughout the module.
const (
	// Resolver metrics.
	MetricResolutions      = "chessllm_resolutions_total"
	MetricCompletions      = "chessllm_completions_total"
	MetricCompletionErrors = "chessllm_completion_errors_total"
	MetricCastlingRetries  = "chessllm_castling_retries_total"
	MetricInvalidResponses = "chessllm_invalid_responses_total"
	MetricPredictedEntries = "chessllm_predicted_entries_total"
	MetricCompletionTime   = "chessllm_completion_seconds"

	// Cache metrics.
	MetricCacheHits   = "chessllm_cache_hits_total"
	MetricCacheMisses = "chessllm_cache_misses_total"
	MetricCacheSize   = "chessllm_cache_size"

	MetricCacheWriteErrors = "chessllm_cache_write_errors_total"

	// Puzzle metrics.
	MetricPuzzlesSolved = "chessllm_puzzles_solved_total"
	MetricPuzzlesFailed = "chessllm_puzzles_failed_total"
)

var help = map[string]string{
	MetricResolutions:      "Best-move resolutions requested.",
	MetricCompletions:      "Completion requests sent to the language model.",
	MetricCompletionErrors: "Completion requests that failed in transport.",
	MetricCastlingRetries:  "Completions re-requested because they began with -O.",
	MetricInvalidResponses: "Completions whose first token was not a legal move.",
	MetricPredictedEntries: "Cache entries written from walking a completion forward.",
	MetricCompletionTime:   "Completion request latency in seconds.",
	MetricCacheHits:        "Move cache hits.",
	MetricCacheMisses:      "Move cache misses.",
	MetricCacheSize:        "Entries held by the move cache.",
	MetricCacheWriteErrors: "Predicted moves that could not be written to the move cache.",
	MetricPuzzlesSolved:    "Puzzles answered correctly.",
	MetricPuzzlesFailed:    "Puzzles answered incorrectly.",
}

// Help returns the description for a metric, or the name itself for
// metrics not declared here.
func Help(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}

// ObserveSince records the seconds elapsed since start.
func ObserveSince(c Collector, name string, start time.Time) {
	c.ObserveHistogram(name, time.Since(start).Seconds())
}
