package game

import (
	"context"
	"errors"

	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
)

// ErrProvider marks a failure of the player's backend, as opposed to a bad move.
var ErrProvider = errors.New("provider error")

// Move is a legal move in both notations.
type Move struct {
	UCI string
	SAN string
}

// Outcome describes a finished position. Winner is nil for draws.
type Outcome struct {
	Result string
	Reason string
	Winner *event.Color
}

// Board is the chess rules engine the loop drives.
type Board interface {
	FEN() string
	ASCII() string
	Turn() event.Color
	FullMoveNumber() int
	LegalMoves() []Move
	HistorySAN() []string
	// Parse resolves a UCI or SAN token against the current position. A
	// non-empty kind means the token was rejected.
	Parse(token string) (Move, event.ErrorKind)
	Push(m Move) error
	InCheck() bool
	IsOver() bool
	Outcome() Outcome
	PGN(whiteName, blackName, result string) string
}

// ImageBoard is implemented by boards that can render a picture of the position.
type ImageBoard interface {
	PNG() ([]byte, error)
}

// AnnotatingBoard is implemented by boards that can attach a PGN comment to
// the last move played.
type AnnotatingBoard interface {
	Annotate(comment string)
}

// State is the snapshot a player sees for one attempt.
type State struct {
	FEN                 string      `json:"fen"`
	BoardASCII          string      `json:"board_ascii"`
	LegalMovesUCI       []string    `json:"legal_moves_uci,omitempty"`
	LegalMovesSAN       []string    `json:"legal_moves_san,omitempty"`
	MoveHistorySAN      []string    `json:"move_history_san"`
	Color               event.Color `json:"color"`
	MoveNumber          int         `json:"move_number"`
	BoardImage          []byte      `json:"board_image,omitempty"`
	PreviousInvalidMove *string     `json:"previous_invalid_move"`
	PreviousError       *string     `json:"previous_error"`
	AttemptNum          int         `json:"attempt_num"`
}

// Response is what a player proposes. Move may be anything; the loop validates it.
type Response struct {
	Raw       string
	Move      string
	Reasoning *string
}

type Player interface {
	Name() string
	Move(ctx context.Context, state State) (Response, error)
}
