package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AdamBeresnev/llm-chess-arena/internal/app"
	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/chessboard"
	"github.com/AdamBeresnev/llm-chess-arena/internal/config"
	"github.com/AdamBeresnev/llm-chess-arena/internal/db"
	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
	"github.com/AdamBeresnev/llm-chess-arena/internal/metrics"
	"github.com/AdamBeresnev/llm-chess-arena/internal/random"
	"github.com/AdamBeresnev/llm-chess-arena/internal/service"
	"github.com/AdamBeresnev/llm-chess-arena/internal/store"
	"github.com/AdamBeresnev/llm-chess-arena/internal/stream"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// foolsMate is the position after 1. f3 e5 2. g4 Qh4#, so every game is
// over before the first move.
const foolsMate = "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"

type testEnv struct {
	srv   *httptest.Server
	arena *service.Arena
	cfg   *config.Config
}

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	database, err := db.InitDB("file::memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	require.NoError(t, db.RunMigrations(database.DB))
	t.Cleanup(func() { database.Close() })
	return database
}

func newTestEnv(t *testing.T, token string, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Server.OperatorToken = token
	cfg.Tournament.DrawHandling = string(bracket.DrawSeed)
	cfg.Providers = map[string]config.ProviderConfig{
		"bot": {Kind: "remote", BaseURL: "http://localhost:1/move", APIKey: "secret-key", Models: []config.ModelConfig{{ID: "bot-1", Name: "Bot One"}}},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	players := app.NewRegistry(cfg.Providers, random.Fixed(0), http.DefaultClient)
	newBoard, err := chessboard.Factory(foolsMate)
	require.NoError(t, err)
	archive := store.NewTournamentStore(setupTestDB(t))

	arena := service.NewArena(service.ArenaConfig{
		Game:          app.GameConfig(cfg.Game),
		NewBoard:      newBoard,
		Players:       players.NewPlayer,
		KnownProvider: players.Has,
		DefaultDraw:   bracket.DrawSeed,
		Archive:       archive,
		Rand:          random.Fixed(0),
		Logger:        logger,
		Metrics:       m,
		Tracer:        noop.NewTracerProvider().Tracer("test"),
	})

	srv := httptest.NewServer(newRouter(&server{
		cfg:       &cfg,
		arena:     arena,
		archive:   archive,
		providers: players.IDs(),
		gatherer:  reg,
		stream:    stream.New(logger),
	}))
	t.Cleanup(func() {
		arena.Close()
		srv.Close()
	})
	return &testEnv{srv: srv, arena: arena, cfg: &cfg}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func twoPlayers() service.StartRequest {
	return service.StartRequest{
		Participants: []service.ParticipantInput{
			{Provider: "first", ModelID: "first", Name: "Alpha"},
			{Provider: "random", ModelID: "random", Name: "Beta"},
		},
	}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	preflight := func(env *testEnv) *http.Response {
		req, err := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/tournament/start", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	env := newTestEnv(t, "", func(c *config.Config) { c.Server.CORSOrigins = []string{"http://localhost:5173"} })
	resp := preflight(env)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	closed := newTestEnv(t, "")
	resp = preflight(closed)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatusStartsIdle(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.do(t, http.MethodGet, "/api/tournament/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[service.Status](t, resp)
	assert.Equal(t, bracket.StatusIdle, status.State)
}

func TestConfigHidesSecrets(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.do(t, http.MethodGet, "/api/config", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "secret-key")

	var view configView
	require.NoError(t, json.Unmarshal(body, &view))
	ids := make([]string, 0, len(view.Providers))
	for _, p := range view.Providers {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"bot", "first", "random"}, ids)
	assert.Equal(t, "Bot One", view.Providers[0].Models[0].Name)
	assert.Equal(t, 3, view.Game.MaxRetries)
	assert.Contains(t, string(body), `"annotate_pgn":false`)
}

func TestStartValidation(t *testing.T) {
	tests := []struct {
		name string
		body any
		want int
	}{
		{name: "one participant", body: service.StartRequest{Participants: twoPlayers().Participants[:1]}, want: http.StatusBadRequest},
		{name: "unknown provider", body: service.StartRequest{Participants: []service.ParticipantInput{
			{Provider: "first", ModelID: "a"}, {Provider: "nope", ModelID: "b"},
		}}, want: http.StatusBadRequest},
		{name: "bad draw handling", body: service.StartRequest{DrawHandling: "armageddon", Participants: twoPlayers().Participants}, want: http.StatusBadRequest},
		{name: "not json", body: "participants", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			resp := env.do(t, http.MethodPost, "/api/tournament/start", "", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestStartRequiresOperatorToken(t *testing.T) {
	env := newTestEnv(t, "s3cret")

	resp := env.do(t, http.MethodPost, "/api/tournament/start", "", twoPlayers())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/tournament/start", "wrong", twoPlayers())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/tournament/start", "s3cret", twoPlayers())
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestTournamentLifecycle(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodGet, "/api/tournament/pgn", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/tournament/start", "", twoPlayers())
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	started := decode[service.Status](t, resp)
	require.NotNil(t, started.ID)
	assert.Equal(t, []string{"Alpha", "Beta"}, started.Participants)

	env.arena.Wait()

	status := decode[service.Status](t, env.do(t, http.MethodGet, "/api/tournament/status", "", nil))
	require.Equal(t, bracket.StatusComplete, status.State)
	require.NotNil(t, status.Winner)
	// Black mates in every game, so whoever held black won.
	assert.Contains(t, []string{"Alpha", "Beta"}, *status.Winner)

	resp = env.do(t, http.MethodGet, "/api/tournament/pgn", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "tournament.pgn")
	pgn, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(pgn), `[Result "0-1"]`)

	list := decode[[]bracket.Tournament](t, env.do(t, http.MethodGet, "/api/archive", "", nil))
	require.Len(t, list, 1)
	assert.Equal(t, *started.ID, list[0].ID)
	assert.Equal(t, bracket.StatusComplete, list[0].Status)

	detail := decode[archiveView](t, env.do(t, http.MethodGet, "/api/archive/"+started.ID.String(), "", nil))
	require.NotNil(t, detail.Tournament)
	assert.Len(t, detail.Participants, 2)
	require.Len(t, detail.Results, 1)
	assert.Equal(t, "F", detail.Results[0].Result.MatchID)
	assert.Equal(t, bracket.BlackWins, detail.Results[0].Result.GameResult)
}

func TestArchiveLookupErrors(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodGet, "/api/archive/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/archive/00000000-0000-0000-0000-000000000001", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	list := decode[[]bracket.Tournament](t, env.do(t, http.MethodGet, "/api/archive", "", nil))
	assert.Empty(t, list)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(t, http.MethodPost, "/api/tournament/start", "", twoPlayers())
	env.arena.Wait()

	resp := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `arena_tournaments_total{status="complete"} 1`)
}

func TestTournamentStreamReplaysFinishedRun(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(t, http.MethodPost, "/api/tournament/start", "", twoPlayers())
	env.arena.Wait()

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws/tournament"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var types []string
	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		ev, err := event.Decode(data)
		require.NoError(t, err)
		types = append(types, ev.EventType())
		if ev.EventType() == event.TypeTournamentComplete {
			break
		}
	}
	assert.Equal(t, event.TypeTournamentStart, types[0])
	assert.Contains(t, types, event.TypeMatchGame)
	assert.Contains(t, types, event.TypeMatchComplete)
}

func TestGameStreamReplaysMatch(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(t, http.MethodPost, "/api/tournament/start", "", twoPlayers())
	env.arena.Wait()

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws/tournament/game/R1-M1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := event.DecodeGame(data)
	require.NoError(t, err)
	assert.Equal(t, event.TypeGameStart, ev.EventType())
}
