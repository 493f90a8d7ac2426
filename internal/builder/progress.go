// Package builder downloads the lichess game and puzzle archives and turns
// them into a puzzle batch for the accuracy harness.
package builder

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// Build phases reported through ProgressFunc.
const (
	PhaseDownload   = "download"
	PhaseDecompress = "decompress"
	PhaseIndex      = "index"
	PhaseExtract    = "extract"
	PhaseDone       = "done"
)

// Progress tracks build progress.
type Progress struct {
	Phase           string
	File            string
	BytesDownloaded int64
	BytesTotal      int64
	GamesIndexed    int
	PuzzlesRead     int
	PuzzlesWritten  int
	Skipped         int
	StartTime       time.Time
}

// ProgressFunc is called periodically with progress updates.
// It may be called from several goroutines while archives download.
type ProgressFunc func(Progress)

// progressReader counts bytes read from r.
type progressReader struct {
	r    io.Reader
	read *atomic.Int64
}

func newProgressReader(r io.Reader, counter *atomic.Int64) *progressReader {
	return &progressReader{r: r, read: counter}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	pr.read.Add(int64(n))
	return n, err
}

// FormatBytes formats bytes as human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats duration as human-readable string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// TextProgress returns a ProgressFunc that writes one status line per
// update to w.
func TextProgress(w io.Writer) ProgressFunc {
	return func(p Progress) {
		switch p.Phase {
		case PhaseDownload:
			pct := float64(0)
			if p.BytesTotal > 0 {
				pct = float64(p.BytesDownloaded) / float64(p.BytesTotal) * 100
			}
			fmt.Fprintf(w, "[Download] %s %s / %s (%.1f%%)\n",
				p.File, FormatBytes(p.BytesDownloaded), FormatBytes(p.BytesTotal), pct)
		case PhaseDecompress:
			fmt.Fprintf(w, "[Decompress] %s %s\n", p.File, FormatBytes(p.BytesDownloaded))
		case PhaseIndex:
			fmt.Fprintf(w, "[Index] %d games\n", p.GamesIndexed)
		case PhaseExtract:
			fmt.Fprintf(w, "[Extract] %d puzzles read, %d kept, %d skipped\n",
				p.PuzzlesRead, p.PuzzlesWritten, p.Skipped)
		case PhaseDone:
			fmt.Fprintf(w, "[Done] %d puzzles (%s)\n",
				p.PuzzlesWritten, FormatDuration(time.Since(p.StartTime)))
		}
	}
}
