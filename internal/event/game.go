package event

import "time"

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// ErrorKind classifies why a proposed move was rejected.
type ErrorKind string

const (
	KindFormat        ErrorKind = "format"
	KindIllegal       ErrorKind = "illegal"
	KindAmbiguous     ErrorKind = "ambiguous"
	KindEmpty         ErrorKind = "empty"
	KindProviderError ErrorKind = "provider_error"
)

// Termination reasons carried by GameOver.
const (
	ReasonCheckmate            = "checkmate"
	ReasonStalemate            = "stalemate"
	ReasonDraw                 = "draw"
	ReasonFiftyMove            = "fifty_move"
	ReasonInsufficientMaterial = "insufficient_material"
	ReasonThreefoldRepetition  = "threefold_repetition"
	ReasonMaxRetriesExceeded   = "max_retries_exceeded"
	ReasonInterrupted          = "interrupted"
)

const (
	TypeGameStart     = "GameStartEvent"
	TypeTurnStart     = "TurnStartEvent"
	TypeMoveRequested = "MoveRequestedEvent"
	TypeInvalidMove   = "InvalidMoveEvent"
	TypeMoveApplied   = "MoveAppliedEvent"
	TypeCheck         = "CheckEvent"
	TypeGameOver      = "GameOverEvent"
)

type GameStart struct {
	WhiteName   string    `json:"white_name"`
	BlackName   string    `json:"black_name"`
	StartingFEN string    `json:"starting_fen"`
	Timestamp   time.Time `json:"timestamp"`
}

type TurnStart struct {
	Color          Color    `json:"color"`
	PlayerName     string   `json:"player_name"`
	MoveNumber     int      `json:"move_number"`
	FEN            string   `json:"fen"`
	BoardASCII     string   `json:"board_ascii"`
	LegalMovesSAN  []string `json:"legal_moves_san"`
	MoveHistorySAN []string `json:"move_history_san"`
}

type MoveRequested struct {
	Color      Color `json:"color"`
	AttemptNum int   `json:"attempt_num"`
}

type InvalidMove struct {
	Color         Color     `json:"color"`
	AttemptedMove string    `json:"attempted_move"`
	RawResponse   string    `json:"raw_response"`
	Reasoning     *string   `json:"reasoning"`
	Error         string    `json:"error"`
	ErrorKind     ErrorKind `json:"error_kind"`
	AttemptNum    int       `json:"attempt_num"`
}

type MoveApplied struct {
	Color           Color   `json:"color"`
	MoveUCI         string  `json:"move_uci"`
	MoveSAN         string  `json:"move_san"`
	RawResponse     string  `json:"raw_response"`
	Reasoning       *string `json:"reasoning"`
	FENAfter        string  `json:"fen_after"`
	BoardASCIIAfter string  `json:"board_ascii_after"`
	IsCheck         bool    `json:"is_check"`
	MoveNumber      int     `json:"move_number"`
}

// Check announces that ColorInCheck, the side now to move, is in check.
type Check struct {
	ColorInCheck    Color  `json:"color_in_check"`
	CheckingMoveSAN string `json:"checking_move_san"`
}

// GameOver is the single terminal event of every game.
type GameOver struct {
	Result     string    `json:"result"`
	Reason     string    `json:"reason"`
	WinnerName *string   `json:"winner_name"`
	PGN        string    `json:"pgn"`
	TotalMoves int       `json:"total_moves"`
	Timestamp  time.Time `json:"timestamp"`
}

func (GameStart) gameEvent()     {}
func (TurnStart) gameEvent()     {}
func (MoveRequested) gameEvent() {}
func (InvalidMove) gameEvent()   {}
func (MoveApplied) gameEvent()   {}
func (Check) gameEvent()         {}
func (GameOver) gameEvent()      {}

func (GameStart) EventType() string     { return TypeGameStart }
func (TurnStart) EventType() string     { return TypeTurnStart }
func (MoveRequested) EventType() string { return TypeMoveRequested }
func (InvalidMove) EventType() string   { return TypeInvalidMove }
func (MoveApplied) EventType() string   { return TypeMoveApplied }
func (Check) EventType() string         { return TypeCheck }
func (GameOver) EventType() string      { return TypeGameOver }

func (e GameStart) MarshalJSON() ([]byte, error) {
	type alias GameStart
	return withType(e.EventType(), alias(e))
}

func (e TurnStart) MarshalJSON() ([]byte, error) {
	type alias TurnStart
	return withType(e.EventType(), alias(e))
}

func (e MoveRequested) MarshalJSON() ([]byte, error) {
	type alias MoveRequested
	return withType(e.EventType(), alias(e))
}

func (e InvalidMove) MarshalJSON() ([]byte, error) {
	type alias InvalidMove
	return withType(e.EventType(), alias(e))
}

func (e MoveApplied) MarshalJSON() ([]byte, error) {
	type alias MoveApplied
	return withType(e.EventType(), alias(e))
}

func (e Check) MarshalJSON() ([]byte, error) {
	type alias Check
	return withType(e.EventType(), alias(e))
}

func (e GameOver) MarshalJSON() ([]byte, error) {
	type alias GameOver
	return withType(e.EventType(), alias(e))
}
