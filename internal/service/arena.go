package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/broadcast"
	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
	"github.com/AdamBeresnev/llm-chess-arena/internal/game"
	"github.com/AdamBeresnev/llm-chess-arena/internal/metrics"
	"github.com/AdamBeresnev/llm-chess-arena/internal/random"
	"github.com/AdamBeresnev/llm-chess-arena/internal/store"
	"github.com/AdamBeresnev/llm-chess-arena/internal/utils"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrAlreadyRunning = errors.New("a tournament is already running")
	ErrInvalidRequest = errors.New("invalid tournament request")
)

// Archive stores finished runs.
type Archive interface {
	SaveRun(ctx context.Context, run store.Run) error
}

type ParticipantInput struct {
	Provider string `json:"provider"`
	ModelID  string `json:"model_id"`
	Name     string `json:"name"`
}

// GameSettings overrides the configured game settings for one run.
type GameSettings struct {
	MaxRetries     *int  `json:"max_retries,omitempty"`
	ShowLegalMoves *bool `json:"show_legal_moves,omitempty"`
	AnnotatePGN    *bool `json:"annotate_pgn,omitempty"`
}

type StartRequest struct {
	TournamentType string             `json:"tournament_type"`
	DrawHandling   string             `json:"draw_handling"`
	Participants   []ParticipantInput `json:"participants"`
	Settings       *GameSettings      `json:"settings,omitempty"`
}

type Status struct {
	State        bracket.TournamentStatus `json:"state"`
	ID           *uuid.UUID               `json:"id,omitempty"`
	Participants []string                 `json:"participants,omitempty"`
	Winner       *string                  `json:"winner,omitempty"`
	Detail       *string                  `json:"detail,omitempty"`
}

type ArenaConfig struct {
	Game     game.Config
	NewBoard func() game.Board
	Players  PlayerFactory
	// KnownProvider rejects participants whose provider is not configured.
	// Nil accepts every provider.
	KnownProvider func(id string) bool

	DefaultType  bracket.Format
	DefaultDraw  bracket.DrawHandling
	MaxRematches int
	// Transcripts, when set, records the conversation of every game.
	Transcripts game.Transcriber

	Broadcaster *broadcast.Broadcaster
	Archive     Archive
	Rand        random.Source
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Tracer      trace.Tracer
	Now         func() time.Time
}

// Arena owns the single tournament run of a server: it starts runs in the
// background, publishes their events and keeps their status and PGNs.
type Arena struct {
	cfg ArenaConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	status Status
	pgns   []string
}

func NewArena(cfg ArenaConfig) *Arena {
	if cfg.DefaultType == "" {
		cfg.DefaultType = bracket.Knockout
	}
	if cfg.DefaultDraw == "" {
		cfg.DefaultDraw = bracket.DrawRematch
	}
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = broadcast.New(cfg.Metrics)
	}
	engine := EngineConfig{Rand: cfg.Rand, Logger: cfg.Logger, Tracer: cfg.Tracer, Now: cfg.Now}.withDefaults()
	cfg.Rand, cfg.Logger, cfg.Tracer, cfg.Now = engine.Rand, engine.Logger, engine.Tracer, engine.Now

	ctx, cancel := context.WithCancel(context.Background())
	return &Arena{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		status: Status{State: bracket.StatusIdle},
	}
}

func (a *Arena) Broadcaster() *broadcast.Broadcaster {
	return a.cfg.Broadcaster
}

// Start validates req and runs the tournament in the background. It returns
// the status of the new run.
func (a *Arena) Start(req StartRequest) (Status, error) {
	run, err := a.prepare(req)
	if err != nil {
		return Status{}, err
	}

	a.mu.Lock()
	if a.status.State == bracket.StatusRunning {
		a.mu.Unlock()
		return Status{}, ErrAlreadyRunning
	}
	id := uuid.New()
	a.status = Status{State: bracket.StatusRunning, ID: &id, Participants: seedOrder(run.participants)}
	a.pgns = nil
	status := a.status
	a.cfg.Broadcaster.Reset()
	a.wg.Add(1)
	a.mu.Unlock()

	a.cfg.Logger.Info("tournament starting", "id", id, "type", run.format, "draw_handling", run.policy.Name(), "participants", len(run.participants))
	go a.run(id, run)
	return status, nil
}

type preparedRun struct {
	format       bracket.Format
	policy       DrawPolicy
	participants []bracket.Participant
	game         game.Config
}

func (a *Arena) prepare(req StartRequest) (preparedRun, error) {
	var run preparedRun
	if len(req.Participants) < 2 {
		return run, fmt.Errorf("%w: need at least 2 participants", ErrInvalidRequest)
	}

	run.format = a.cfg.DefaultType
	if req.TournamentType != "" {
		f, err := bracket.ParseFormat(req.TournamentType)
		// unimplemented formats are accepted and fail as a run
		if err != nil && !errors.Is(err, bracket.ErrNotImplemented) {
			return run, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		run.format = f
	}

	handling := a.cfg.DefaultDraw
	if req.DrawHandling != "" {
		h, err := bracket.ParseDrawHandling(req.DrawHandling)
		if err != nil {
			return run, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		handling = h
	}
	policy, err := NewDrawPolicy(handling, a.cfg.Rand, a.cfg.MaxRematches)
	if err != nil {
		return run, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	run.policy = policy

	for i, in := range req.Participants {
		provider := strings.TrimSpace(in.Provider)
		model := strings.TrimSpace(in.ModelID)
		if provider == "" || model == "" {
			return run, fmt.Errorf("%w: participant %d needs a provider and a model_id", ErrInvalidRequest, i+1)
		}
		if a.cfg.KnownProvider != nil && !a.cfg.KnownProvider(provider) {
			return run, fmt.Errorf("%w: unknown provider %q", ErrInvalidRequest, provider)
		}
		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = model
		}
		run.participants = append(run.participants, bracket.Participant{
			ProviderID:  provider,
			ModelID:     model,
			DisplayName: name,
			Seed:        i + 1,
		})
	}

	run.game = a.cfg.Game
	if s := req.Settings; s != nil {
		if s.MaxRetries != nil {
			run.game.MaxRetries = max(1, *s.MaxRetries)
		}
		if s.ShowLegalMoves != nil {
			run.game.ShowLegalMoves = *s.ShowLegalMoves
		}
		if s.AnnotatePGN != nil {
			run.game.AnnotatePGN = *s.AnnotatePGN
		}
	}
	return run, nil
}

func (a *Arena) run(id uuid.UUID, run preparedRun) {
	defer a.wg.Done()
	started := a.cfg.Now()

	loop := game.NewLoop(run.game, a.cfg.NewBoard,
		game.WithLogger(a.cfg.Logger),
		game.WithMetrics(a.cfg.Metrics),
		game.WithTracer(a.cfg.Tracer),
		game.WithClock(a.cfg.Now),
		game.WithTranscripts(a.cfg.Transcripts),
	)
	engine := NewEngine(EngineConfig{
		Loop:    loop,
		Players: a.cfg.Players,
		Policy:  run.policy,
		Rand:    a.cfg.Rand,
		Logger:  a.cfg.Logger.With("tournament_id", id),
		Metrics: a.cfg.Metrics,
		Tracer:  a.cfg.Tracer,
		Now:     a.cfg.Now,
	})

	var (
		log         []event.TournamentEvent
		totalRounds int
		winner      *string
	)
	emit := func(ev event.TournamentEvent) {
		log = append(log, ev)
		a.cfg.Broadcaster.Publish(ev)
		switch e := ev.(type) {
		case event.TournamentStart:
			totalRounds = e.TotalRounds
		case event.MatchComplete:
			if e.Result.PGN != "" {
				a.mu.Lock()
				a.pgns = append(a.pgns, e.Result.PGN)
				a.mu.Unlock()
			}
		case event.TournamentComplete:
			winner = utils.Ptr(e.WinnerName)
		}
	}

	_, err := engine.Run(a.ctx, run.format, run.participants, emit)

	// The last event goes out before the status leaves running, so a new
	// Start cannot reset the broadcaster ahead of it.
	if err != nil {
		a.cfg.Logger.Error("tournament failed", "id", id, "error", err)
		errEv := event.Error{Message: err.Error()}
		log = append(log, errEv)
		a.cfg.Broadcaster.Publish(errEv)
	} else {
		a.cfg.Logger.Info("tournament finished", "id", id, "winner", utils.Deref(winner, ""))
	}

	a.mu.Lock()
	if err != nil {
		a.status.State = bracket.StatusError
		a.status.Detail = utils.Ptr(err.Error())
	} else {
		a.status.State = bracket.StatusComplete
		a.status.Winner = winner
	}
	final := a.status
	a.mu.Unlock()

	a.cfg.Metrics.TournamentFinished(string(final.State))

	if a.cfg.Archive == nil {
		return
	}
	record := store.Run{
		Tournament: bracket.Tournament{
			ID:           id,
			Type:         run.format,
			DrawHandling: run.policy.Name(),
			Status:       final.State,
			WinnerName:   final.Winner,
			Detail:       final.Detail,
			TotalRounds:  totalRounds,
			CreatedAt:    started.UTC(),
			FinishedAt:   utils.Ptr(a.cfg.Now().UTC()),
		},
		Participants: run.participants,
		Events:       log,
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), 30*time.Second)
	defer cancel()
	if err := a.cfg.Archive.SaveRun(ctx, record); err != nil {
		a.cfg.Logger.Error("failed to archive tournament", "id", id, "error", err)
	}
}

func (a *Arena) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.status
	s.Participants = append([]string(nil), a.status.Participants...)
	return s
}

// PGNs returns the PGN of every decided match of the current run so far.
func (a *Arena) PGNs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.pgns...)
}

// Wait blocks until the current run, if any, has finished and been archived.
func (a *Arena) Wait() {
	a.wg.Wait()
}

// Close cancels a running tournament, waits for it and closes every
// subscription.
func (a *Arena) Close() {
	a.cancel()
	a.wg.Wait()
	a.cfg.Broadcaster.Close()
}
