// Package fen provides FEN (Forsyth-Edwards Notation) helpers used to key
// positions in the prediction cache.
package fen

import (
	"errors"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

// ErrInvalidFEN indicates the FEN string is malformed.
var ErrInvalidFEN = errors.New("invalid FEN notation")

// Normalize returns the first four FEN fields: piece placement, side to move,
// castling rights and en passant square. The halfmove clock and fullmove
// number are dropped so that transpositions share a key.
func Normalize(fen string) (string, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return "", ErrInvalidFEN
	}
	if !isValidPiecePlacement(parts[0]) {
		return "", ErrInvalidFEN
	}
	if parts[1] != "w" && parts[1] != "b" {
		return "", ErrInvalidFEN
	}
	return strings.Join(parts[:4], " "), nil
}

// Key returns the cache key for a position.
func Key(pos *chess.Position) string {
	s := pos.String()
	key, err := Normalize(s)
	if err != nil {
		// The chess library always renders well-formed FEN.
		return s
	}
	return key
}

// SideToMove returns "w" or "b" from a FEN string.
func SideToMove(fen string) (string, error) {
	parts := strings.Fields(fen)
	if len(parts) < 2 {
		return "", ErrInvalidFEN
	}
	if parts[1] != "w" && parts[1] != "b" {
		return "", ErrInvalidFEN
	}
	return parts[1], nil
}

// FullmoveNumber returns the sixth FEN field. Four-field FEN strings are
// treated as move 1.
func FullmoveNumber(fen string) (int, error) {
	parts := strings.Fields(fen)
	switch {
	case len(parts) < 4:
		return 0, ErrInvalidFEN
	case len(parts) < 6:
		return 1, nil
	}
	n, err := strconv.Atoi(parts[5])
	if err != nil || n < 1 {
		return 0, ErrInvalidFEN
	}
	return n, nil
}

func isValidPiecePlacement(placement string) bool {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return false
	}

	for _, rank := range ranks {
		squares := 0
		for _, ch := range rank {
			switch {
			case ch >= '1' && ch <= '8':
				squares += int(ch - '0')
			case strings.ContainsRune("PNBRQKpnbrqk", ch):
				squares++
			default:
				return false
			}
		}
		if squares != 8 {
			return false
		}
	}

	return true
}
