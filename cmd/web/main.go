package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/llm-chess-arena/internal/app"
	"github.com/AdamBeresnev/llm-chess-arena/internal/broadcast"
	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/chessboard"
	"github.com/AdamBeresnev/llm-chess-arena/internal/config"
	"github.com/AdamBeresnev/llm-chess-arena/internal/db"
	"github.com/AdamBeresnev/llm-chess-arena/internal/metrics"
	"github.com/AdamBeresnev/llm-chess-arena/internal/random"
	"github.com/AdamBeresnev/llm-chess-arena/internal/service"
	"github.com/AdamBeresnev/llm-chess-arena/internal/store"
	"github.com/AdamBeresnev/llm-chess-arena/internal/stream"
	"github.com/AdamBeresnev/llm-chess-arena/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	path := os.Getenv("ARENA_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.Setup(context.Background(), cfg.Tracing, "llm-chess-arena")
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	database, err := db.InitDB(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := db.RunMigrations(database.DB); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	rng, err := random.New()
	if err != nil {
		return err
	}
	players := app.NewRegistry(cfg.Providers, rng, &http.Client{Timeout: cfg.Game.MoveTimeout + 10*time.Second})
	newBoard, err := chessboard.Factory("")
	if err != nil {
		return err
	}
	archive := store.NewTournamentStore(database)

	arena := service.NewArena(service.ArenaConfig{
		Game:          app.GameConfig(cfg.Game),
		NewBoard:      newBoard,
		Players:       players.NewPlayer,
		KnownProvider: players.Has,
		DefaultType:   bracket.Format(cfg.Tournament.Type),
		DefaultDraw:   bracket.DrawHandling(cfg.Tournament.DrawHandling),
		MaxRematches:  cfg.Tournament.MaxRematches,
		Transcripts:   app.Transcripts(cfg),
		Broadcaster:   broadcast.New(m),
		Archive:       archive,
		Rand:          rng,
		Logger:        logger,
		Metrics:       m,
	})

	router := newRouter(&server{
		cfg:       cfg,
		arena:     arena,
		archive:   archive,
		providers: players.IDs(),
		gatherer:  reg,
		stream:    stream.New(logger),
	})
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		arena.Close()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	// Closing the arena first ends the websocket streams, which Shutdown
	// does not wait for.
	arena.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
