package builder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manifest describes a built puzzle batch.
type Manifest struct {
	Version      int       `json:"version"`
	GamesURL     string    `json:"games_url,omitempty"`
	PuzzlesURL   string    `json:"puzzles_url,omitempty"`
	Output       string    `json:"output"`
	IndexedGames int       `json:"indexed_games"`
	PuzzlesRead  int       `json:"puzzles_read"`
	PuzzleCount  int       `json:"puzzle_count"`
	Unindexed    int       `json:"unindexed"`
	Skipped      int       `json:"skipped"`
	BuiltAt      time.Time `json:"built_at"`
}

const manifestFilename = "manifest.json"

// WriteManifest writes the manifest to dir.
func WriteManifest(dir string, m *Manifest) error {
	path := filepath.Join(dir, manifestFilename)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest reads the manifest from dir.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, manifestFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}
