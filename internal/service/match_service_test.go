package service

import (
	"context"
	"errors"
	"testing"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
	"github.com/AdamBeresnev/llm-chess-arena/internal/game"
	"github.com/AdamBeresnev/llm-chess-arena/internal/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotFor(a bracket.Participant, b *bracket.Participant) bracket.Slot {
	return bracket.Slot{MatchID: "R1-M1", Round: 1, Order: 1, A: a, B: b}
}

func standingFor(t *testing.T, s *Standings, p bracket.Participant) bracket.StandingEntry {
	t.Helper()
	for _, e := range s.Snapshot() {
		if e.Participant.Same(p) {
			return e
		}
	}
	t.Fatalf("%s has no standing", p)
	return bracket.StandingEntry{}
}

func TestMatchRunnerBye(t *testing.T) {
	ps := participants(1)
	standings := NewStandings(ps)
	runner := NewMatchRunner(testConfig(SeedRule{}, whiteWins), standings)
	rec := &recorder{}

	result, winner, err := runner.Run(context.Background(), slotFor(ps[0], nil), rec.emit)
	require.NoError(t, err)

	assert.Equal(t, ps[0], winner)
	assert.True(t, result.Bye)
	assert.Equal(t, bracket.WhiteWins, result.GameResult)
	assert.Equal(t, ps[0], result.White)
	assert.Equal(t, ps[0], result.Black)

	events := rec.all()
	require.Len(t, events, 1, "a bye plays no game")
	complete, ok := events[0].(event.MatchComplete)
	require.True(t, ok)
	assert.Equal(t, "P1", complete.AdvancingName)

	entry := standingFor(t, standings, ps[0])
	assert.Equal(t, 1, entry.Wins)
	assert.Zero(t, entry.Losses)
}

func TestMatchRunnerDecisive(t *testing.T) {
	testCases := []struct {
		name       string
		outcome    game.Outcome
		colorFlip  int
		wantWinner int
		wantWhite  int
	}{
		{name: "white wins, no swap", outcome: whiteWins, colorFlip: 0, wantWinner: 0, wantWhite: 0},
		{name: "black wins, no swap", outcome: blackWins, colorFlip: 0, wantWinner: 1, wantWhite: 0},
		{name: "white wins, colors swapped", outcome: whiteWins, colorFlip: 1, wantWinner: 1, wantWhite: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ps := participants(2)
			standings := NewStandings(ps)
			cfg := testConfig(Rematch{}, tc.outcome)
			cfg.Rand = random.Fixed(tc.colorFlip)
			rec := &recorder{}

			result, winner, err := NewMatchRunner(cfg, standings).Run(context.Background(), slotFor(ps[0], &ps[1]), rec.emit)
			require.NoError(t, err)

			assert.Equal(t, ps[tc.wantWinner], winner)
			assert.Equal(t, ps[tc.wantWhite], result.White)
			assert.Equal(t, tc.outcome.Result, result.GameResult)
			require.NotNil(t, result.Winner)
			assert.Equal(t, winner, *result.Winner)
			assert.Contains(t, result.PGN, tc.outcome.Result)

			events := rec.all()
			require.Len(t, events, 4)
			start := events[0].(event.MatchStart)
			assert.Equal(t, 1, start.GameNum)
			assert.Equal(t, ps[tc.wantWhite].DisplayName, start.WhiteName)
			assert.IsType(t, event.GameStart{}, events[1].(event.MatchGame).GameEvent)
			assert.IsType(t, event.GameOver{}, events[2].(event.MatchGame).GameEvent)
			complete := events[3].(event.MatchComplete)
			assert.Equal(t, winner.DisplayName, complete.AdvancingName)

			loser := ps[1-tc.wantWinner]
			assert.Equal(t, 1, standingFor(t, standings, winner).Wins)
			assert.Equal(t, 1, standingFor(t, standings, loser).Losses)
		})
	}
}

func TestMatchRunnerDrawPolicies(t *testing.T) {
	testCases := []struct {
		name       string
		policy     DrawPolicy
		outcomes   []game.Outcome
		wantGames  int
		wantWinner int
		wantDraws  int
	}{
		{name: "seed advances the better seed", policy: SeedRule{}, outcomes: []game.Outcome{drawn}, wantGames: 1, wantWinner: 0, wantDraws: 1},
		{name: "coin flip", policy: CoinFlip{Rand: random.Fixed(1)}, outcomes: []game.Outcome{drawn}, wantGames: 1, wantWinner: 1, wantDraws: 1},
		{name: "rematch until decisive", policy: Rematch{}, outcomes: []game.Outcome{drawn, drawn, blackWins}, wantGames: 3, wantWinner: 1, wantDraws: 2},
		{name: "rematch cap falls back to seed", policy: Rematch{MaxRematches: 1}, outcomes: []game.Outcome{drawn}, wantGames: 2, wantWinner: 0, wantDraws: 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ps := participants(2)
			standings := NewStandings(ps)
			rec := &recorder{}

			result, winner, err := NewMatchRunner(testConfig(tc.policy, tc.outcomes...), standings).
				Run(context.Background(), slotFor(ps[0], &ps[1]), rec.emit)
			require.NoError(t, err)
			assert.Equal(t, ps[tc.wantWinner], winner)

			starts := eventsOf[event.MatchStart](rec.all())
			require.Len(t, starts, tc.wantGames)
			for i, s := range starts {
				assert.Equal(t, i+1, s.GameNum)
				if i > 0 {
					assert.Equal(t, starts[i-1].BlackName, s.WhiteName, "colors swap for the rematch")
				}
			}
			assert.Len(t, eventsOf[event.MatchComplete](rec.all()), 1)

			w := standingFor(t, standings, winner)
			l := standingFor(t, standings, ps[1-tc.wantWinner])
			assert.Equal(t, tc.wantDraws, w.Draws)
			assert.Equal(t, tc.wantDraws, l.Draws)
			assert.Equal(t, 1, w.Wins)
			assert.Equal(t, 1, l.Losses)

			if tc.outcomes[len(tc.outcomes)-1] == drawn {
				assert.Equal(t, bracket.DrawResult, result.GameResult)
			}
		})
	}
}

func TestMatchRunnerPlayerFactoryError(t *testing.T) {
	ps := participants(2)
	cfg := testConfig(SeedRule{}, whiteWins)
	boom := errors.New("no such provider")
	cfg.Players = func(bracket.Participant) (game.Player, error) { return nil, boom }

	_, _, err := NewMatchRunner(cfg, NewStandings(ps)).Run(context.Background(), slotFor(ps[0], &ps[1]), func(event.TournamentEvent) {})
	assert.ErrorIs(t, err, boom)
}

func TestMatchRunnerCancelled(t *testing.T) {
	ps := participants(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	_, _, err := NewMatchRunner(testConfig(Rematch{}, drawn), NewStandings(ps)).Run(ctx, slotFor(ps[0], &ps[1]), rec.emit)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, eventsOf[event.MatchComplete](rec.all()))
}
