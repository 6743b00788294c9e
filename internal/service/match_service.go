package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
	"github.com/AdamBeresnev/llm-chess-arena/internal/game"
	"github.com/AdamBeresnev/llm-chess-arena/internal/metrics"
	"github.com/AdamBeresnev/llm-chess-arena/internal/random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PlayerFactory builds a fresh player for every game so no state leaks
// between games.
type PlayerFactory func(p bracket.Participant) (game.Player, error)

// MatchRunner plays one bracket slot until somebody advances.
type MatchRunner struct {
	loop      *game.Loop
	players   PlayerFactory
	policy    DrawPolicy
	rng       random.Source
	standings *Standings
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewMatchRunner(cfg EngineConfig, standings *Standings) *MatchRunner {
	cfg = cfg.withDefaults()
	return &MatchRunner{
		loop:      cfg.Loop,
		players:   cfg.Players,
		policy:    cfg.Policy,
		rng:       cfg.Rand,
		standings: standings,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
	}
}

// Run plays the slot and emits MatchStart, MatchGame and finally exactly one
// MatchComplete. It returns the deciding result and the advancing participant.
func (r *MatchRunner) Run(ctx context.Context, slot bracket.Slot, emit func(event.TournamentEvent)) (bracket.MatchResult, bracket.Participant, error) {
	ctx, span := r.tracer.Start(ctx, "service.MatchRunner.Run", trace.WithAttributes(
		attribute.String("match_id", slot.MatchID),
		attribute.Int("round", slot.Round),
	))
	defer span.End()

	if slot.IsBye() {
		winner := slot.A
		result := bracket.MatchResult{
			MatchID:    slot.MatchID,
			White:      winner,
			Black:      winner,
			GameResult: bracket.WhiteWins,
			Winner:     &winner,
			Bye:        true,
		}
		r.standings.RecordWin(winner, nil)
		r.metrics.MatchCompleted("bye")
		emit(event.MatchComplete{MatchID: slot.MatchID, Result: result, AdvancingName: winner.DisplayName, RoundNum: slot.Round})
		return result, winner, nil
	}

	white, black := slot.A, *slot.B
	if r.rng.IntN(2) == 1 {
		white, black = black, white
	}

	for gameNum := 1; ; gameNum++ {
		emit(event.MatchStart{
			MatchID:   slot.MatchID,
			WhiteName: white.DisplayName,
			BlackName: black.DisplayName,
			RoundNum:  slot.Round,
			GameNum:   gameNum,
		})

		wp, err := r.players(white)
		if err != nil {
			return bracket.MatchResult{}, bracket.Participant{}, fmt.Errorf("match %s: player for %s: %w", slot.MatchID, white.DisplayName, err)
		}
		bp, err := r.players(black)
		if err != nil {
			return bracket.MatchResult{}, bracket.Participant{}, fmt.Errorf("match %s: player for %s: %w", slot.MatchID, black.DisplayName, err)
		}

		over := r.loop.Play(ctx, wp, bp, func(ge event.GameEvent) {
			emit(event.MatchGame{MatchID: slot.MatchID, GameEvent: ge})
		})
		if err := ctx.Err(); err != nil {
			return bracket.MatchResult{}, bracket.Participant{}, fmt.Errorf("match %s interrupted: %w", slot.MatchID, err)
		}

		result := bracket.MatchResult{
			MatchID:    slot.MatchID,
			White:      white,
			Black:      black,
			GameResult: over.Result,
			PGN:        over.PGN,
			TotalMoves: over.TotalMoves,
		}

		var winner, loser bracket.Participant
		decidedBy := "game"
		switch over.Result {
		case bracket.WhiteWins:
			winner, loser = white, black
		case bracket.BlackWins:
			winner, loser = black, white
		default:
			r.standings.RecordDraw(white, black)
			picked := r.policy.Resolve(white, black, gameNum)
			if picked == nil {
				r.logger.Info("drawn game, rematch with colors swapped", "match_id", slot.MatchID, "game", gameNum)
				white, black = black, white
				continue
			}
			winner, loser = *picked, white
			if loser.Same(winner) {
				loser = black
			}
			decidedBy = string(r.policy.Name())
		}

		r.standings.RecordWin(winner, &loser)
		r.metrics.MatchCompleted(decidedBy)
		result.Winner = &winner
		span.SetAttributes(attribute.String("winner", winner.DisplayName), attribute.Int("games", gameNum))
		r.logger.Info("match complete",
			"match_id", slot.MatchID,
			"winner", winner.DisplayName,
			"result", over.Result,
			"decided_by", decidedBy,
		)
		emit(event.MatchComplete{MatchID: slot.MatchID, Result: result, AdvancingName: winner.DisplayName, RoundNum: slot.Round})
		return result, winner, nil
	}
}
