// Package chessboard adapts github.com/corentings/chess/v2 to the game.Board
// contract.
package chessboard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
	"github.com/AdamBeresnev/llm-chess-arena/internal/game"
	chess "github.com/corentings/chess/v2"
)

var (
	uciRe = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)
	sanRe = regexp.MustCompile(`^([KQRBN])?([a-h])?([1-8])?x?([a-h][1-8])(?:=?([QRBNqrbn]))?$`)
)

var pieceLetters = map[string]chess.PieceType{
	"K": chess.King,
	"Q": chess.Queen,
	"R": chess.Rook,
	"B": chess.Bishop,
	"N": chess.Knight,
}

type Board struct {
	game      *chess.Game
	history   []string
	lastCheck bool
}

// New returns a board at the standard starting position.
func New() *Board {
	return &Board{game: chess.NewGame()}
}

// FromFEN returns a board at the given position.
func FromFEN(fen string) (*Board, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &Board{game: chess.NewGame(opt)}, nil
}

// Factory returns a constructor for game.Loop. An empty fen means the standard position.
func Factory(fen string) (func() game.Board, error) {
	if fen == "" {
		return func() game.Board { return New() }, nil
	}
	if _, err := FromFEN(fen); err != nil {
		return nil, err
	}
	return func() game.Board {
		b, _ := FromFEN(fen)
		return b
	}, nil
}

func (b *Board) FEN() string {
	return b.game.FEN()
}

func (b *Board) Turn() event.Color {
	if b.game.Position().Turn() == chess.White {
		return event.White
	}
	return event.Black
}

func (b *Board) FullMoveNumber() int {
	fields := strings.Fields(b.FEN())
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil {
		return 1
	}
	return n
}

// ASCII draws the board rank 8 first, uppercase for white, dots for empty squares.
func (b *Board) ASCII() string {
	squares := b.game.Position().Board().SquareMap()
	var sb strings.Builder
	for r := 7; r >= 0; r-- {
		for f := 0; f < 8; f++ {
			if f > 0 {
				sb.WriteByte(' ')
			}
			piece, ok := squares[chess.NewSquare(chess.File(f), chess.Rank(r))]
			if !ok || piece == chess.NoPiece {
				sb.WriteByte('.')
				continue
			}
			letter := piece.Type().String()
			if piece.Color() == chess.White {
				letter = strings.ToUpper(letter)
			}
			sb.WriteString(letter)
		}
		if r > 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (b *Board) legal() []*chess.Move {
	switch moves := any(b.game.Position().ValidMoves()).(type) {
	case []chess.Move:
		out := make([]*chess.Move, len(moves))
		for i := range moves {
			out[i] = &moves[i]
		}
		return out
	case []*chess.Move:
		return moves
	}
	return nil
}

func (b *Board) LegalMoves() []game.Move {
	pos := b.game.Position()
	legal := b.legal()
	out := make([]game.Move, 0, len(legal))
	for _, m := range legal {
		out = append(out, game.Move{UCI: m.String(), SAN: chess.AlgebraicNotation{}.Encode(pos, m)})
	}
	return out
}

func (b *Board) HistorySAN() []string {
	out := make([]string, len(b.history))
	copy(out, b.history)
	return out
}

// Parse tries UCI first, then SAN. SAN that names several legal moves is
// reported as ambiguous.
func (b *Board) Parse(token string) (game.Move, event.ErrorKind) {
	s := strings.TrimSpace(token)
	if s == "" {
		return game.Move{}, event.KindFormat
	}
	pos := b.game.Position()
	legal := b.legal()

	if lower := strings.ToLower(s); uciRe.MatchString(lower) {
		for _, m := range legal {
			if m.String() == lower {
				return game.Move{UCI: m.String(), SAN: chess.AlgebraicNotation{}.Encode(pos, m)}, ""
			}
		}
		return game.Move{}, event.KindIllegal
	}

	san := strings.TrimRight(s, "+#!?")
	san = strings.ReplaceAll(san, "0", "O")
	if san == "O-O" || san == "O-O-O" {
		tag := chess.KingSideCastle
		if san == "O-O-O" {
			tag = chess.QueenSideCastle
		}
		for _, m := range legal {
			if m.HasTag(tag) {
				return game.Move{UCI: m.String(), SAN: chess.AlgebraicNotation{}.Encode(pos, m)}, ""
			}
		}
		return game.Move{}, event.KindIllegal
	}

	parts := sanRe.FindStringSubmatch(san)
	if parts == nil {
		return game.Move{}, event.KindFormat
	}
	pieceType := chess.Pawn
	if parts[1] != "" {
		pieceType = pieceLetters[parts[1]]
	}
	fileHint, rankHint, dest := parts[2], parts[3], parts[4]
	promo := chess.NoPieceType
	if parts[5] != "" {
		promo = pieceLetters[strings.ToUpper(parts[5])]
	}

	var matches []*chess.Move
	for _, m := range legal {
		from, to := m.S1().String(), m.S2().String()
		if to != dest || pos.Board().Piece(m.S1()).Type() != pieceType {
			continue
		}
		if fileHint != "" && from[0] != fileHint[0] {
			continue
		}
		if rankHint != "" && from[1] != rankHint[0] {
			continue
		}
		if m.Promo() != promo {
			continue
		}
		matches = append(matches, m)
	}

	switch len(matches) {
	case 0:
		return game.Move{}, event.KindIllegal
	case 1:
		m := matches[0]
		return game.Move{UCI: m.String(), SAN: chess.AlgebraicNotation{}.Encode(pos, m)}, ""
	default:
		return game.Move{}, event.KindAmbiguous
	}
}

// Push applies a legal move and claims any threefold or fifty-move draw it makes available.
func (b *Board) Push(mv game.Move) error {
	pos := b.game.Position()
	var chosen *chess.Move
	for _, m := range b.legal() {
		if m.String() == mv.UCI {
			chosen = m
			break
		}
	}
	if chosen == nil {
		return fmt.Errorf("move %s is not legal in %s", mv.UCI, b.FEN())
	}

	san := chess.AlgebraicNotation{}.Encode(pos, chosen)
	if err := b.game.Move(chosen, nil); err != nil {
		return fmt.Errorf("apply %s: %w", mv.UCI, err)
	}
	b.history = append(b.history, san)
	b.lastCheck = chosen.HasTag(chess.Check)

	if b.game.Outcome() == chess.NoOutcome {
		for _, method := range b.game.EligibleDraws() {
			if method == chess.ThreefoldRepetition || method == chess.FiftyMoveRule {
				if err := b.game.Draw(method); err != nil {
					return fmt.Errorf("claim draw: %w", err)
				}
				break
			}
		}
	}
	return nil
}

// Annotate sets the PGN comment of the last move played.
func (b *Board) Annotate(comment string) {
	moves := b.game.Moves()
	if len(moves) == 0 {
		return
	}
	moves[len(moves)-1].SetComment(comment)
}

func (b *Board) InCheck() bool {
	return b.lastCheck
}

func (b *Board) IsOver() bool {
	return b.game.Outcome() != chess.NoOutcome
}

func (b *Board) Outcome() game.Outcome {
	out := game.Outcome{Result: string(b.game.Outcome()), Reason: reason(b.game.Method())}
	switch b.game.Outcome() {
	case chess.WhiteWon:
		c := event.White
		out.Winner = &c
	case chess.BlackWon:
		c := event.Black
		out.Winner = &c
	case chess.NoOutcome:
		out.Result = bracket.Unfinished
	}
	return out
}

func reason(m chess.Method) string {
	switch m {
	case chess.Checkmate:
		return event.ReasonCheckmate
	case chess.Stalemate:
		return event.ReasonStalemate
	case chess.ThreefoldRepetition, chess.FivefoldRepetition:
		return event.ReasonThreefoldRepetition
	case chess.FiftyMoveRule, chess.SeventyFiveMoveRule:
		return event.ReasonFiftyMove
	case chess.InsufficientMaterial:
		return event.ReasonInsufficientMaterial
	default:
		return event.ReasonDraw
	}
}

// PGN exports the game with player tags. A decisive result on an unfinished
// board is recorded as a resignation by the losing side.
func (b *Board) PGN(whiteName, blackName, result string) string {
	if b.game.Outcome() == chess.NoOutcome {
		switch result {
		case bracket.WhiteWins:
			b.game.Resign(chess.Black)
		case bracket.BlackWins:
			b.game.Resign(chess.White)
		}
	}
	b.game.AddTagPair("Event", "LLM Chess Arena")
	b.game.AddTagPair("White", whiteName)
	b.game.AddTagPair("Black", blackName)
	b.game.AddTagPair("Result", result)
	return b.game.String()
}
