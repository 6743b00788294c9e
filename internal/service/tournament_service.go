package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
	"github.com/AdamBeresnev/llm-chess-arena/internal/game"
	"github.com/AdamBeresnev/llm-chess-arena/internal/metrics"
	"github.com/AdamBeresnev/llm-chess-arena/internal/random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EngineConfig wires a tournament engine. Loop, Players and Policy are required.
type EngineConfig struct {
	Loop    *game.Loop
	Players PlayerFactory
	Policy  DrawPolicy
	Rand    random.Source
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
	Now     func() time.Time
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.Rand == nil {
		rng, err := random.New()
		if err != nil {
			rng = random.NewLocked(uint64(time.Now().UnixNano()))
		}
		c.Rand = rng
	}
	if c.Policy == nil {
		c.Policy = Rematch{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer("github.com/AdamBeresnev/llm-chess-arena/internal/service")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Engine runs knockout tournaments round by round to a champion.
type Engine struct {
	cfg EngineConfig
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Run plays a whole tournament, emitting every event in order from the
// calling goroutine. It returns the final standings, best first.
func (e *Engine) Run(ctx context.Context, format bracket.Format, participants []bracket.Participant, emit func(event.TournamentEvent)) ([]bracket.StandingEntry, error) {
	if format != bracket.Knockout {
		if _, err := bracket.ParseFormat(string(format)); err != nil {
			return nil, err
		}
	}

	br, err := BuildBracket(participants)
	if err != nil {
		return nil, err
	}

	ctx, span := e.cfg.Tracer.Start(ctx, "service.Engine.Run", trace.WithAttributes(
		attribute.String("format", string(format)),
		attribute.Int("participants", len(participants)),
		attribute.Int("rounds", br.TotalRounds()),
	))
	defer span.End()

	standings := NewStandings(participants)
	scheduler := NewRoundScheduler(NewMatchRunner(e.cfg, standings))

	emit(event.TournamentStart{
		TournamentType:   bracket.Knockout,
		ParticipantNames: seedOrder(participants),
		TotalRounds:      br.TotalRounds(),
		Timestamp:        e.cfg.Now(),
	})

	var (
		survivors  []bracket.Participant
		allResults []bracket.MatchResult
	)
	for _, round := range br.Rounds {
		slots := br.Opening
		if round.Number > 1 {
			slots, err = PairSurvivors(round, survivors)
			if err != nil {
				return nil, err
			}
		}

		emit(event.RoundStart{RoundNum: round.Number, TotalRounds: br.TotalRounds(), Pairings: pairings(slots)})
		e.cfg.Logger.Info("round start", "round", round.Number, "matches", len(slots))

		results, winners, err := e.runRound(ctx, round.Number, scheduler, slots, emit)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", round.Number, err)
		}
		allResults = append(allResults, results...)
		survivors = winners

		emit(event.RoundComplete{RoundNum: round.Number, Results: results, Standings: standings.Snapshot()})
	}

	if len(survivors) != 1 {
		return nil, fmt.Errorf("bracket ended with %d survivors", len(survivors))
	}
	final := standings.Snapshot()
	emit(event.TournamentComplete{
		WinnerName:     survivors[0].DisplayName,
		FinalStandings: final,
		AllResults:     allResults,
		Timestamp:      e.cfg.Now(),
	})
	span.SetAttributes(attribute.String("winner", survivors[0].DisplayName))
	e.cfg.Logger.Info("tournament complete", "winner", survivors[0].DisplayName)
	return final, nil
}

func (e *Engine) runRound(ctx context.Context, number int, scheduler *RoundScheduler, slots []bracket.Slot, emit func(event.TournamentEvent)) ([]bracket.MatchResult, []bracket.Participant, error) {
	ctx, span := e.cfg.Tracer.Start(ctx, "service.Engine.round", trace.WithAttributes(attribute.Int("round", number)))
	defer span.End()
	return scheduler.Run(ctx, slots, emit)
}

func seedOrder(participants []bracket.Participant) []string {
	sorted := make([]bracket.Participant, len(participants))
	copy(sorted, participants)
	sortBySeed(sorted)
	names := make([]string, len(sorted))
	for i, p := range sorted {
		names[i] = p.DisplayName
	}
	return names
}

func pairings(slots []bracket.Slot) []event.Pairing {
	out := make([]event.Pairing, len(slots))
	for i, s := range slots {
		black := bracket.ByeName
		if s.B != nil {
			black = s.B.DisplayName
		}
		out[i] = event.Pairing{MatchID: s.MatchID, White: s.A.DisplayName, Black: black}
	}
	return out
}
