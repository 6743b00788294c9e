package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("tournament not found")

// Run is a finished tournament run as handed to the archive.
type Run struct {
	Tournament   bracket.Tournament
	Participants []bracket.Participant
	Events       []event.TournamentEvent
}

// MatchRecord is an archived match result with the round it was played in.
type MatchRecord struct {
	RoundNumber int                 `json:"round_num"`
	Result      bracket.MatchResult `json:"result"`
}

type participantRow struct {
	TournamentID uuid.UUID `db:"tournament_id"`
	bracket.Participant
}

type matchRow struct {
	ID           uuid.UUID `db:"id"`
	TournamentID uuid.UUID `db:"tournament_id"`
	MatchID      string    `db:"match_id"`
	RoundNumber  int       `db:"round_number"`
	WhiteSeed    int       `db:"white_seed"`
	BlackSeed    int       `db:"black_seed"`
	WinnerSeed   *int      `db:"winner_seed"`
	GameResult   string    `db:"game_result"`
	TotalMoves   int       `db:"total_moves"`
	PGN          string    `db:"pgn"`
	IsBye        bool      `db:"is_bye"`
}

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

// SaveRun writes a run with its participants, match results and event log in
// one transaction. Match results are taken from the MatchComplete events.
func (s *TournamentStore) SaveRun(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.createTournament(ctx, tx, &run.Tournament); err != nil {
		return fmt.Errorf("insert tournament: %w", err)
	}
	if err := s.createParticipants(ctx, tx, run.Tournament.ID, run.Participants); err != nil {
		return fmt.Errorf("insert participants: %w", err)
	}
	if err := s.createMatches(ctx, tx, run.Tournament.ID, run.Events); err != nil {
		return fmt.Errorf("insert matches: %w", err)
	}
	if err := s.createEvents(ctx, tx, run.Tournament.ID, run.Events); err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	return tx.Commit()
}

func (s *TournamentStore) createTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournaments (id, tournament_type, draw_handling, status, winner_name, detail, total_rounds, created_at, finished_at)
        VALUES (:id, :tournament_type, :draw_handling, :status, :winner_name, :detail, :total_rounds, :created_at, :finished_at)`, tournament)
	return err
}

func (s *TournamentStore) createParticipants(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, participants []bracket.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	rows := make([]participantRow, len(participants))
	for i, p := range participants {
		rows[i] = participantRow{TournamentID: tournamentID, Participant: p}
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO participants (tournament_id, seed, provider_id, model_id, display_name)
            VALUES (:tournament_id, :seed, :provider_id, :model_id, :display_name)`, rows)
	return err
}

func (s *TournamentStore) createMatches(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, events []event.TournamentEvent) error {
	var rows []matchRow
	for _, ev := range events {
		mc, ok := ev.(event.MatchComplete)
		if !ok {
			continue
		}
		r := mc.Result
		row := matchRow{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			MatchID:      mc.MatchID,
			RoundNumber:  mc.RoundNum,
			WhiteSeed:    r.White.Seed,
			BlackSeed:    r.Black.Seed,
			GameResult:   r.GameResult,
			TotalMoves:   r.TotalMoves,
			PGN:          r.PGN,
			IsBye:        r.Bye,
		}
		if r.Winner != nil {
			seed := r.Winner.Seed
			row.WinnerSeed = &seed
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, tournament_id, match_id, round_number, white_seed, black_seed, winner_seed, game_result, total_moves, pgn, is_bye)
		VALUES (:id, :tournament_id, :match_id, :round_number, :white_seed, :black_seed, :winner_seed, :game_result, :total_moves, :pgn, :is_bye)`, rows)
	return err
}

// createEvents inserts row by row; a full game log is far past SQLite's
// bound-variable limit for one statement.
func (s *TournamentStore) createEvents(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, events []event.TournamentEvent) error {
	stmt, err := tx.PreparexContext(ctx, `INSERT INTO events (tournament_id, seq, event_type, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, tournamentID, i, ev.EventType(), string(payload)); err != nil {
			return err
		}
	}
	return nil
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := s.db.GetContext(ctx, &tournament, "SELECT * FROM tournaments WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) ListTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	tournaments := []bracket.Tournament{}
	err := s.db.SelectContext(ctx, &tournaments, "SELECT * FROM tournaments ORDER BY created_at DESC")
	return tournaments, err
}

func (s *TournamentStore) GetParticipants(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Participant, error) {
	var participants []bracket.Participant
	err := s.db.SelectContext(ctx, &participants, "SELECT seed, provider_id, model_id, display_name FROM participants WHERE tournament_id = ? ORDER BY seed ASC", tournamentID)
	return participants, err
}

// GetResults returns the archived match results in the order they finished
// within each round.
func (s *TournamentStore) GetResults(ctx context.Context, tournamentID uuid.UUID) ([]MatchRecord, error) {
	participants, err := s.GetParticipants(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	bySeed := make(map[int]bracket.Participant, len(participants))
	for _, p := range participants {
		bySeed[p.Seed] = p
	}

	var rows []matchRow
	err = s.db.SelectContext(ctx, &rows, "SELECT * FROM matches WHERE tournament_id = ? ORDER BY round_number ASC, rowid ASC", tournamentID)
	if err != nil {
		return nil, err
	}

	records := make([]MatchRecord, 0, len(rows))
	for _, row := range rows {
		result := bracket.MatchResult{
			MatchID:    row.MatchID,
			White:      bySeed[row.WhiteSeed],
			Black:      bySeed[row.BlackSeed],
			GameResult: row.GameResult,
			PGN:        row.PGN,
			TotalMoves: row.TotalMoves,
			Bye:        row.IsBye,
		}
		if row.WinnerSeed != nil {
			winner := bySeed[*row.WinnerSeed]
			result.Winner = &winner
		}
		records = append(records, MatchRecord{RoundNumber: row.RoundNumber, Result: result})
	}
	return records, nil
}

// GetEvents decodes the archived event log back into typed events.
func (s *TournamentStore) GetEvents(ctx context.Context, tournamentID uuid.UUID) ([]event.TournamentEvent, error) {
	var payloads []string
	err := s.db.SelectContext(ctx, &payloads, "SELECT payload FROM events WHERE tournament_id = ? ORDER BY seq ASC", tournamentID)
	if err != nil {
		return nil, err
	}

	events := make([]event.TournamentEvent, len(payloads))
	for i, p := range payloads {
		ev, err := event.Decode([]byte(p))
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events[i] = ev
	}
	return events, nil
}
