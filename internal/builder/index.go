package builder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/discochess/chessllm/internal/store"
)

// IndexName is the store object holding the game index.
const IndexName = "games-index.json"

// maxGameBytes caps how much text FetchGame reads for one game.
const maxGameBytes = 64 << 10

// ErrGameNotFound is returned when a game id is not in the index.
var ErrGameNotFound = errors.New("builder: game not indexed")

var sitePattern = regexp.MustCompile(`\[Site "https://lichess\.org/([a-zA-Z0-9]+)"\]`)

// Index maps a lichess game id to the byte offset of its [Site] tag line in
// the games archive.
type Index map[string]int64

// BuildIndex scans a PGN archive and records where each game's [Site] line
// starts. progress, if set, is called every 100000 games.
func BuildIndex(ctx context.Context, r io.Reader, progress ProgressFunc) (Index, error) {
	idx := make(Index)
	br := bufio.NewReaderSize(r, 1<<20)

	var offset int64
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if bytes.HasPrefix(line, []byte("[Site ")) {
				if m := sitePattern.FindSubmatch(line); m != nil {
					idx[string(m[1])] = offset
					if progress != nil && len(idx)%100000 == 0 {
						if err := ctx.Err(); err != nil {
							return nil, err
						}
						progress(Progress{Phase: PhaseIndex, GamesIndexed: len(idx)})
					}
				}
			}
			offset += int64(len(line))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading games: %w", err)
		}
	}

	if progress != nil {
		progress(Progress{Phase: PhaseIndex, GamesIndexed: len(idx)})
	}
	return idx, nil
}

// SaveIndex writes idx to s as JSON. The store's codec compresses it.
func SaveIndex(ctx context.Context, s store.Store, idx Index) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	return s.Put(ctx, IndexName, data)
}

// LoadIndex reads an index written by SaveIndex. It returns
// store.ErrNotFound when none was saved.
func LoadIndex(ctx context.Context, s store.Store) (Index, error) {
	data, err := s.Get(ctx, IndexName)
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	return idx, nil
}

// FetchGame returns the PGN text starting at offset and ending before the
// next game's [Event] tag.
func FetchGame(r io.ReaderAt, offset int64) (string, error) {
	buf := make([]byte, maxGameBytes)
	n, err := r.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading game at %d: %w", offset, err)
	}
	text := buf[:n]
	if i := bytes.Index(text, []byte("[Event")); i >= 0 {
		text = text[:i]
	}
	return string(text), nil
}
