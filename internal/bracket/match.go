package bracket

import "encoding/json"

// Game result strings, PGN style.
const (
	WhiteWins  = "1-0"
	BlackWins  = "0-1"
	DrawResult = "1/2-1/2"
	Unfinished = "*"
)

// ByeName is shown in place of the missing opponent of a bye slot.
const ByeName = "BYE"

// Slot is one pairing in a round. B is nil for a bye.
type Slot struct {
	MatchID string
	Round   int
	Order   int
	A       Participant
	B       *Participant
}

func (s Slot) IsBye() bool {
	return s.B == nil
}

// MatchResult is the outcome of the game that decided a match.
type MatchResult struct {
	MatchID    string       `json:"match_id" db:"match_id"`
	White      Participant  `json:"white"`
	Black      Participant  `json:"black"`
	GameResult string       `json:"game_result" db:"game_result"`
	PGN        string       `json:"pgn" db:"pgn"`
	TotalMoves int          `json:"total_moves" db:"total_moves"`
	Winner     *Participant `json:"winner"`
	Bye        bool         `json:"bye" db:"is_bye"`
}

func (r MatchResult) MarshalJSON() ([]byte, error) {
	type alias MatchResult
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: "MatchResult", alias: alias(r)})
}

// StandingEntry is the running tally for one participant.
type StandingEntry struct {
	Participant Participant `json:"participant"`
	Wins        int         `json:"wins"`
	Losses      int         `json:"losses"`
	Draws       int         `json:"draws"`
}

func (s StandingEntry) Points() float64 {
	return float64(s.Wins) + 0.5*float64(s.Draws)
}

func (s StandingEntry) MarshalJSON() ([]byte, error) {
	type alias StandingEntry
	return json.Marshal(struct {
		Type   string  `json:"type"`
		Points float64 `json:"points"`
		alias
	}{Type: "StandingEntry", Points: s.Points(), alias: alias(s)})
}
