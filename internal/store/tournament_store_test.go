package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/db"
	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
	"github.com/AdamBeresnev/llm-chess-arena/internal/utils"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	// every pooled connection would otherwise get its own empty database
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	require.NoError(t, db.RunMigrations(database.DB), "Failed to apply migrations")
	t.Cleanup(func() { database.Close() })

	return database
}

func sampleRun(t *testing.T) Run {
	t.Helper()

	p1 := bracket.Participant{ProviderID: "random", ModelID: "random", DisplayName: "Rando", Seed: 1}
	p2 := bracket.Participant{ProviderID: "first", ModelID: "first", DisplayName: "Firsty", Seed: 2}
	p3 := bracket.Participant{ProviderID: "first", ModelID: "first-b", DisplayName: "Second", Seed: 3}
	now := time.Now().UTC().Truncate(time.Second)

	bye := bracket.MatchResult{MatchID: "R1-M1", White: p1, Black: p1, GameResult: bracket.WhiteWins, Winner: &p1, Bye: true}
	semi := bracket.MatchResult{MatchID: "R1-M2", White: p3, Black: p2, GameResult: bracket.BlackWins, PGN: "1. e4 0-1", TotalMoves: 1, Winner: &p2}
	final := bracket.MatchResult{MatchID: "F", White: p1, Black: p2, GameResult: bracket.DrawResult, PGN: "1. d4 1/2-1/2", TotalMoves: 1, Winner: &p1}

	return Run{
		Tournament: bracket.Tournament{
			ID:           uuid.New(),
			Type:         bracket.Knockout,
			DrawHandling: bracket.DrawSeed,
			Status:       bracket.StatusComplete,
			WinnerName:   utils.Ptr("Rando"),
			TotalRounds:  2,
			CreatedAt:    now,
			FinishedAt:   utils.Ptr(now.Add(time.Minute)),
		},
		Participants: []bracket.Participant{p1, p2, p3},
		Events: []event.TournamentEvent{
			event.TournamentStart{TournamentType: bracket.Knockout, ParticipantNames: []string{"Rando", "Firsty", "Second"}, TotalRounds: 2, Timestamp: now},
			event.MatchComplete{MatchID: "R1-M1", Result: bye, AdvancingName: "Rando", RoundNum: 1},
			event.MatchStart{MatchID: "R1-M2", WhiteName: "Second", BlackName: "Firsty", RoundNum: 1, GameNum: 1},
			event.MatchGame{MatchID: "R1-M2", GameEvent: event.MoveApplied{Color: event.White, MoveUCI: "e2e4", MoveSAN: "e4", MoveNumber: 1}},
			event.MatchComplete{MatchID: "R1-M2", Result: semi, AdvancingName: "Firsty", RoundNum: 1},
			event.MatchComplete{MatchID: "F", Result: final, AdvancingName: "Rando", RoundNum: 2},
			event.TournamentComplete{WinnerName: "Rando", AllResults: []bracket.MatchResult{bye, semi, final}, Timestamp: now},
		},
	}
}

func TestSaveRun(t *testing.T) {
	database := setupTestDB(t)
	store := NewTournamentStore(database)
	ctx := context.Background()
	run := sampleRun(t)

	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetTournament(ctx, run.Tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Tournament.ID, got.ID)
	assert.Equal(t, bracket.Knockout, got.Type)
	assert.Equal(t, bracket.DrawSeed, got.DrawHandling)
	assert.Equal(t, bracket.StatusComplete, got.Status)
	require.NotNil(t, got.WinnerName)
	assert.Equal(t, "Rando", *got.WinnerName)
	assert.Nil(t, got.Detail)
	assert.WithinDuration(t, run.Tournament.CreatedAt, got.CreatedAt, time.Second)
	require.NotNil(t, got.FinishedAt)

	participants, err := store.GetParticipants(ctx, run.Tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Participants, participants)
}

func TestGetResults(t *testing.T) {
	database := setupTestDB(t)
	store := NewTournamentStore(database)
	ctx := context.Background()
	run := sampleRun(t)
	require.NoError(t, store.SaveRun(ctx, run))

	records, err := store.GetResults(ctx, run.Tournament.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)

	testCases := []struct {
		matchID string
		round   int
		winner  string
		bye     bool
	}{
		{matchID: "R1-M1", round: 1, winner: "Rando", bye: true},
		{matchID: "R1-M2", round: 1, winner: "Firsty"},
		{matchID: "F", round: 2, winner: "Rando"},
	}
	for i, tc := range testCases {
		t.Run(tc.matchID, func(t *testing.T) {
			rec := records[i]
			assert.Equal(t, tc.matchID, rec.Result.MatchID)
			assert.Equal(t, tc.round, rec.RoundNumber)
			assert.Equal(t, tc.bye, rec.Result.Bye)
			require.NotNil(t, rec.Result.Winner)
			assert.Equal(t, tc.winner, rec.Result.Winner.DisplayName)
		})
	}
	assert.Equal(t, "1. d4 1/2-1/2", records[2].Result.PGN)
	assert.Equal(t, "Second", records[1].Result.White.DisplayName)
}

func TestGetEventsRoundTrip(t *testing.T) {
	database := setupTestDB(t)
	store := NewTournamentStore(database)
	ctx := context.Background()
	run := sampleRun(t)
	require.NoError(t, store.SaveRun(ctx, run))

	events, err := store.GetEvents(ctx, run.Tournament.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(run.Events, events); diff != "" {
		t.Errorf("archived events differ (-want +got):\n%s", diff)
	}
}

func TestListTournaments(t *testing.T) {
	database := setupTestDB(t)
	store := NewTournamentStore(database)
	ctx := context.Background()

	empty, err := store.ListTournaments(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	older := sampleRun(t)
	older.Tournament.CreatedAt = older.Tournament.CreatedAt.Add(-time.Hour)
	newer := sampleRun(t)
	newer.Tournament.Status = bracket.StatusError
	newer.Tournament.WinnerName = nil
	newer.Tournament.Detail = utils.Ptr("provider exploded")
	require.NoError(t, store.SaveRun(ctx, older))
	require.NoError(t, store.SaveRun(ctx, newer))

	list, err := store.ListTournaments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.Tournament.ID, list[0].ID)
	require.NotNil(t, list[0].Detail)
	assert.Equal(t, "provider exploded", *list[0].Detail)
	assert.Equal(t, older.Tournament.ID, list[1].ID)
}

func TestGetTournamentNotFound(t *testing.T) {
	store := NewTournamentStore(setupTestDB(t))

	_, err := store.GetTournament(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRunIsAtomic(t *testing.T) {
	database := setupTestDB(t)
	store := NewTournamentStore(database)
	ctx := context.Background()

	run := sampleRun(t)
	run.Participants = append(run.Participants, run.Participants[0]) // duplicate seed
	require.Error(t, store.SaveRun(ctx, run))

	_, err := store.GetTournament(ctx, run.Tournament.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
