package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/broadcast"
	"github.com/AdamBeresnev/llm-chess-arena/internal/config"
	"github.com/AdamBeresnev/llm-chess-arena/internal/httputil"
	"github.com/AdamBeresnev/llm-chess-arena/internal/middleware"
	"github.com/AdamBeresnev/llm-chess-arena/internal/service"
	"github.com/AdamBeresnev/llm-chess-arena/internal/store"
	"github.com/AdamBeresnev/llm-chess-arena/internal/stream"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type archiveReader interface {
	ListTournaments(ctx context.Context) ([]bracket.Tournament, error)
	GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error)
	GetParticipants(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Participant, error)
	GetResults(ctx context.Context, tournamentID uuid.UUID) ([]store.MatchRecord, error)
}

type server struct {
	cfg       *config.Config
	arena     *service.Arena
	archive   archiveReader
	providers []string
	gatherer  prometheus.Gatherer
	stream    *stream.Handler
}

type providerView struct {
	ID     string               `json:"id"`
	Kind   string               `json:"kind"`
	Models []config.ModelConfig `json:"models"`
}

type configView struct {
	Providers  []providerView          `json:"providers"`
	Game       config.GameConfig       `json:"game"`
	Tournament config.TournamentConfig `json:"tournament"`
}

type archiveView struct {
	Tournament   *bracket.Tournament   `json:"tournament"`
	Participants []bracket.Participant `json:"participants"`
	Results      []store.MatchRecord   `json:"results"`
}

func newRouter(s *server) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	if origins := s.cfg.Server.CORSOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"Content-Disposition"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", s.getConfig)

		r.Route("/tournament", func(r chi.Router) {
			r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
				httputil.JSON(w, http.StatusOK, s.arena.Status())
			})
			r.Get("/pgn", s.getPGN)
			r.With(middleware.RequireOperator(s.cfg.Server.OperatorToken)).Post("/start", s.startTournament)
		})

		r.Get("/archive", s.listArchive)
		r.Get("/archive/{id}", s.getArchive)
	})

	r.Get("/ws/tournament", func(w http.ResponseWriter, r *http.Request) {
		s.stream.Serve(w, r, "tournament", s.arena.Broadcaster().Subscribe)
	})
	r.Get("/ws/tournament/game/{match_id}", func(w http.ResponseWriter, r *http.Request) {
		matchID := chi.URLParam(r, "match_id")
		s.stream.Serve(w, r, matchID, func() *broadcast.Subscription {
			return s.arena.Broadcaster().SubscribeMatch(matchID)
		})
	})

	return r
}

func (s *server) getConfig(w http.ResponseWriter, r *http.Request) {
	view := configView{Game: s.cfg.Game, Tournament: s.cfg.Tournament}
	for _, id := range s.providers {
		p, ok := s.cfg.Providers[id]
		if !ok {
			p = config.ProviderConfig{Kind: id}
		}
		models := p.Models
		if models == nil {
			models = []config.ModelConfig{}
		}
		view.Providers = append(view.Providers, providerView{ID: id, Kind: p.Kind, Models: models})
	}
	httputil.JSON(w, http.StatusOK, view)
}

func (s *server) startTournament(w http.ResponseWriter, r *http.Request) {
	var req service.StartRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "Invalid request body", err)
		return
	}

	slog.Info("tournament start requested", "participants", len(req.Participants), "operator", middleware.IsOperator(r.Context()))
	status, err := s.arena.Start(req)
	switch {
	case errors.Is(err, service.ErrAlreadyRunning):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, service.ErrInvalidRequest):
		httputil.BadRequest(w, err.Error(), err)
	case err != nil:
		httputil.InternalServerError(w, "Failed to start tournament", err)
	default:
		httputil.JSON(w, http.StatusAccepted, status)
	}
}

func (s *server) getPGN(w http.ResponseWriter, r *http.Request) {
	pgns := s.arena.PGNs()
	if len(pgns) == 0 {
		httputil.NotFound(w, "No games played yet", nil)
		return
	}
	w.Header().Set("Content-Type", "application/x-chess-pgn")
	w.Header().Set("Content-Disposition", `attachment; filename="tournament.pgn"`)
	w.Write([]byte(strings.Join(pgns, "\n\n") + "\n"))
}

func (s *server) listArchive(w http.ResponseWriter, r *http.Request) {
	tournaments, err := s.archive.ListTournaments(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "Failed to list tournaments", err)
		return
	}
	if tournaments == nil {
		tournaments = []bracket.Tournament{}
	}
	httputil.JSON(w, http.StatusOK, tournaments)
}

func (s *server) getArchive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "Invalid tournament ID", err)
		return
	}

	t, err := s.archive.GetTournament(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.NotFound(w, "Tournament not found", err)
			return
		}
		httputil.InternalServerError(w, "Failed to get tournament", err)
		return
	}
	participants, err := s.archive.GetParticipants(r.Context(), id)
	if err != nil {
		httputil.InternalServerError(w, "Failed to get participants", err)
		return
	}
	results, err := s.archive.GetResults(r.Context(), id)
	if err != nil {
		httputil.InternalServerError(w, "Failed to get results", err)
		return
	}
	httputil.JSON(w, http.StatusOK, archiveView{Tournament: t, Participants: participants, Results: results})
}
