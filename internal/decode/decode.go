// Package decode turns free-form completion text into a validated sequence
// of SAN moves.
package decode

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/notnil/chess"
)

var (
	// ErrIllegalMove indicates a well-formed SAN token that is not legal in
	// the position reached so far.
	ErrIllegalMove = errors.New("decode: illegal move")

	// ErrUnparseable indicates a token that is not SAN at all.
	ErrUnparseable = errors.New("decode: unparseable move")

	// ErrGameOver indicates the moves decoded so far ended the game.
	ErrGameOver = errors.New("decode: game is over")
)

// sanPattern matches the shape of a SAN move, annotations included.
var sanPattern = regexp.MustCompile(`^(O-O(-O)?|[KQRBN][a-h]?[1-8]?x?[a-h][1-8]|[a-h](x[a-h])?[1-8](=?[QRBN])?)[+#]?[!?]*$`)

// sanParts splits a normalized non-castling SAN move into piece, from-file,
// from-rank, target square and promotion piece.
var sanParts = regexp.MustCompile(`^([KQRBN])?([a-h])?([1-8])?x?([a-h][1-8])(?:=?([QRBN]))?$`)

var pieceTypes = map[string]chess.PieceType{
	"":  chess.Pawn,
	"K": chess.King,
	"Q": chess.Queen,
	"R": chess.Rook,
	"B": chess.Bishop,
	"N": chess.Knight,
}

// Result is the outcome of decoding a completion.
type Result struct {
	// Moves holds the tokens that validated, in order.
	Moves []string

	// Err is why decoding stopped early, or nil if every token was used.
	Err error
}

// Moves splits text on whitespace, skips move-number tokens (anything with a
// "."), and applies the remaining tokens to a copy of g until one fails.
// The tokens before the first failure are returned verbatim.
func Moves(g *chess.Game, text string) Result {
	board := g.Clone()
	var res Result

	for _, tok := range strings.Fields(text) {
		if strings.Contains(tok, ".") {
			continue
		}
		if err := apply(board, tok); err != nil {
			res.Err = err
			break
		}
		res.Moves = append(res.Moves, tok)
	}

	return res
}

// Apply plays a single SAN token on g.
func Apply(g *chess.Game, san string) error {
	return apply(g, san)
}

func apply(g *chess.Game, tok string) error {
	if g.Outcome() != chess.NoOutcome {
		return fmt.Errorf("%w: %q", ErrGameOver, tok)
	}
	m, err := Parse(g.Position(), tok)
	if err != nil {
		return err
	}
	if err := g.Move(m); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrIllegalMove, tok, err)
	}
	return nil
}

// Parse finds the legal move in pos that the SAN token san denotes.
// Check and mate suffixes, annotations, zero-castling ("0-0") and redundant
// disambiguation ("Ngf3", "Ng1f3") are accepted. A token matching more than
// one legal move is an illegal move.
func Parse(pos *chess.Position, san string) (*chess.Move, error) {
	norm := normalize(san)
	if m, err := (chess.AlgebraicNotation{}).Decode(pos, norm); err == nil {
		return m, nil
	}

	parts := sanParts.FindStringSubmatch(norm)
	if parts == nil {
		return nil, classify(norm)
	}
	piece, fromFile, fromRank, target, promo := parts[1], parts[2], parts[3], parts[4], parts[5]

	var found *chess.Move
	for _, m := range pos.ValidMoves() {
		if pos.Board().Piece(m.S1()).Type() != pieceTypes[piece] ||
			m.S2().String() != target ||
			(fromFile != "" && m.S1().File().String() != fromFile) ||
			(fromRank != "" && m.S1().Rank().String() != fromRank) ||
			m.Promo() != promoType(promo) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %q is ambiguous", ErrIllegalMove, san)
		}
		found = m
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrIllegalMove, san)
	}
	return found, nil
}

func normalize(tok string) string {
	tok = strings.TrimRight(tok, "!?+#")
	switch tok {
	case "0-0":
		return "O-O"
	case "0-0-0":
		return "O-O-O"
	}
	return tok
}

func promoType(p string) chess.PieceType {
	if p == "" {
		return chess.NoPieceType
	}
	return pieceTypes[p]
}

func classify(tok string) error {
	if sanPattern.MatchString(tok) {
		return fmt.Errorf("%w: %q", ErrIllegalMove, tok)
	}
	return fmt.Errorf("%w: %q", ErrUnparseable, tok)
}
