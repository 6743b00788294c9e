package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
)

const (
	TypeTournamentStart    = "TournamentStartEvent"
	TypeRoundStart         = "RoundStartEvent"
	TypeMatchStart         = "MatchStartEvent"
	TypeMatchGame          = "MatchGameEvent"
	TypeMatchComplete      = "MatchCompleteEvent"
	TypeRoundComplete      = "RoundCompleteEvent"
	TypeTournamentComplete = "TournamentCompleteEvent"
	TypeError              = "error"
)

type TournamentStart struct {
	TournamentType   bracket.Format `json:"tournament_type"`
	ParticipantNames []string       `json:"participant_names"`
	TotalRounds      int            `json:"total_rounds"`
	Timestamp        time.Time      `json:"timestamp"`
}

// Pairing travels as a [match_id, white, black] triple. Black is
// bracket.ByeName for a bye.
type Pairing struct {
	MatchID string
	White   string
	Black   string
}

func (p Pairing) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]string{p.MatchID, p.White, p.Black})
}

func (p *Pairing) UnmarshalJSON(data []byte) error {
	var t [3]string
	if err := json.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("pairing: %w", err)
	}
	p.MatchID, p.White, p.Black = t[0], t[1], t[2]
	return nil
}

type RoundStart struct {
	RoundNum    int       `json:"round_num"`
	TotalRounds int       `json:"total_rounds"`
	Pairings    []Pairing `json:"pairings"`
}

// MatchStart fires before every game of a match, rematches included.
type MatchStart struct {
	MatchID   string `json:"match_id"`
	WhiteName string `json:"white_name"`
	BlackName string `json:"black_name"`
	RoundNum  int    `json:"round_num"`
	GameNum   int    `json:"game_num"`
}

// MatchGame wraps a game event with the match it belongs to.
type MatchGame struct {
	MatchID   string    `json:"match_id"`
	GameEvent GameEvent `json:"game_event"`
}

type MatchComplete struct {
	MatchID       string              `json:"match_id"`
	Result        bracket.MatchResult `json:"result"`
	AdvancingName string              `json:"advancing_name"`
	RoundNum      int                 `json:"round_num"`
}

type RoundComplete struct {
	RoundNum  int                     `json:"round_num"`
	Results   []bracket.MatchResult   `json:"results"`
	Standings []bracket.StandingEntry `json:"standings"`
}

type TournamentComplete struct {
	WinnerName     string                  `json:"winner_name"`
	FinalStandings []bracket.StandingEntry `json:"final_standings"`
	AllResults     []bracket.MatchResult   `json:"all_results"`
	Timestamp      time.Time               `json:"timestamp"`
}

// Error is broadcast when a run aborts.
type Error struct {
	Message string `json:"message"`
}

func (TournamentStart) tournamentEvent()    {}
func (RoundStart) tournamentEvent()         {}
func (MatchStart) tournamentEvent()         {}
func (MatchGame) tournamentEvent()          {}
func (MatchComplete) tournamentEvent()      {}
func (RoundComplete) tournamentEvent()      {}
func (TournamentComplete) tournamentEvent() {}
func (Error) tournamentEvent()              {}

func (TournamentStart) EventType() string    { return TypeTournamentStart }
func (RoundStart) EventType() string         { return TypeRoundStart }
func (MatchStart) EventType() string         { return TypeMatchStart }
func (MatchGame) EventType() string          { return TypeMatchGame }
func (MatchComplete) EventType() string      { return TypeMatchComplete }
func (RoundComplete) EventType() string      { return TypeRoundComplete }
func (TournamentComplete) EventType() string { return TypeTournamentComplete }
func (Error) EventType() string              { return TypeError }

func (e TournamentStart) MarshalJSON() ([]byte, error) {
	type alias TournamentStart
	return withType(e.EventType(), alias(e))
}

func (e RoundStart) MarshalJSON() ([]byte, error) {
	type alias RoundStart
	return withType(e.EventType(), alias(e))
}

func (e MatchStart) MarshalJSON() ([]byte, error) {
	type alias MatchStart
	return withType(e.EventType(), alias(e))
}

func (e MatchGame) MarshalJSON() ([]byte, error) {
	type alias MatchGame
	return withType(e.EventType(), alias(e))
}

func (e *MatchGame) UnmarshalJSON(data []byte) error {
	var raw struct {
		MatchID   string          `json:"match_id"`
		GameEvent json.RawMessage `json:"game_event"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	inner, err := DecodeGame(raw.GameEvent)
	if err != nil {
		return fmt.Errorf("match %s: %w", raw.MatchID, err)
	}
	e.MatchID = raw.MatchID
	e.GameEvent = inner
	return nil
}

func (e MatchComplete) MarshalJSON() ([]byte, error) {
	type alias MatchComplete
	return withType(e.EventType(), alias(e))
}

func (e RoundComplete) MarshalJSON() ([]byte, error) {
	type alias RoundComplete
	return withType(e.EventType(), alias(e))
}

func (e TournamentComplete) MarshalJSON() ([]byte, error) {
	type alias TournamentComplete
	return withType(e.EventType(), alias(e))
}

func (e Error) MarshalJSON() ([]byte, error) {
	type alias Error
	return withType(e.EventType(), alias(e))
}
