package bracket

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotEnoughParticipants = errors.New("a tournament needs at least 2 participants")
	ErrNotImplemented        = errors.New("tournament format not implemented")
)

type TournamentStatus string

const (
	StatusIdle     TournamentStatus = "idle"
	StatusRunning  TournamentStatus = "running"
	StatusComplete TournamentStatus = "complete"
	StatusError    TournamentStatus = "error"
)

type Format string

const (
	Knockout   Format = "knockout"
	RoundRobin Format = "round_robin"
	Swiss      Format = "swiss"
	Arena      Format = "arena"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case Knockout:
		return f, nil
	case RoundRobin, Swiss, Arena:
		return f, fmt.Errorf("%s: %w", s, ErrNotImplemented)
	default:
		return "", fmt.Errorf("unknown tournament type %q", s)
	}
}

type DrawHandling string

const (
	DrawRematch  DrawHandling = "rematch"
	DrawCoinFlip DrawHandling = "coin_flip"
	DrawSeed     DrawHandling = "seed"
)

func ParseDrawHandling(s string) (DrawHandling, error) {
	switch d := DrawHandling(s); d {
	case DrawRematch, DrawCoinFlip, DrawSeed:
		return d, nil
	default:
		return "", fmt.Errorf("unknown draw handling %q", s)
	}
}

// Tournament is an archived run.
type Tournament struct {
	ID           uuid.UUID        `db:"id" json:"id"`
	Type         Format           `db:"tournament_type" json:"tournament_type"`
	DrawHandling DrawHandling     `db:"draw_handling" json:"draw_handling"`
	Status       TournamentStatus `db:"status" json:"status"`
	WinnerName   *string          `db:"winner_name" json:"winner_name"`
	Detail       *string          `db:"detail" json:"detail,omitempty"`
	TotalRounds  int              `db:"total_rounds" json:"total_rounds"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time       `db:"finished_at" json:"finished_at"`
}
