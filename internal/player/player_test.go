package player

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/game"
	"github.com/AdamBeresnev/llm-chess-arena/internal/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func openingState() game.State {
	return game.State{
		LegalMovesUCI: []string{"a2a3", "e2e4", "g1f3"},
		LegalMovesSAN: []string{"a3", "e4", "Nf3"},
		AttemptNum:    1,
	}
}

func TestBuiltInMovers(t *testing.T) {
	ctx := context.Background()

	resp, err := NewFirst("first").Move(ctx, openingState())
	require.NoError(t, err)
	assert.Equal(t, "a2a3", resp.Move)

	resp, err = NewRandom("random", random.Fixed(1)).Move(ctx, openingState())
	require.NoError(t, err)
	assert.Equal(t, "e2e4", resp.Move)
	assert.Equal(t, "e2e4", resp.Raw)

	_, err = NewFirst("first").Move(ctx, game.State{})
	assert.ErrorIs(t, err, game.ErrProvider)
}

func TestScriptedPlaysScriptThenFallsBack(t *testing.T) {
	boom := errors.New("boom")
	p := NewScripted("s", Reply{Raw: "## Move\nNf3"}, Reply{Err: boom})
	ctx := context.Background()

	resp, err := p.Move(ctx, openingState())
	require.NoError(t, err)
	assert.Equal(t, "Nf3", resp.Move)

	_, err = p.Move(ctx, openingState())
	assert.ErrorIs(t, err, boom)

	resp, err = p.Move(ctx, openingState())
	require.NoError(t, err)
	assert.Equal(t, "a2a3", resp.Move)

	assert.Len(t, p.States(), 3)
}

func TestScriptedBlockHonoursContext(t *testing.T) {
	p := NewScripted("s", Reply{Block: true})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Move(ctx, openingState())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRemotePlayer(t *testing.T) {
	var got moveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/move", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(moveReply{Text: "## Reasoning\nopen lines\n## Move\ne4"})
	}))
	defer srv.Close()

	p := NewRemote("Bot", "bot-1", srv.URL, "secret", srv.Client(), nil)
	resp, err := p.Move(context.Background(), openingState())
	require.NoError(t, err)

	assert.Equal(t, "e4", resp.Move)
	require.NotNil(t, resp.Reasoning)
	assert.Equal(t, "open lines", *resp.Reasoning)
	assert.Equal(t, "Bot", got.Player)
	assert.Equal(t, "bot-1", got.Model)
	assert.Equal(t, []string{"a2a3", "e2e4", "g1f3"}, got.State.LegalMovesUCI)
}

func TestRemotePlayerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewRemote("Bot", "bot-1", srv.URL, "", srv.Client(), nil)
	_, err := p.Move(context.Background(), openingState())
	require.Error(t, err)
	assert.ErrorIs(t, err, game.ErrProvider)
	assert.Contains(t, err.Error(), "503")
}

func TestRemotePlayerRateLimitPastDeadline(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, limiter.Allow())

	p := NewRemote("Bot", "bot-1", srv.URL, "", srv.Client(), limiter)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Move(ctx, openingState())
	require.Error(t, err)
	assert.ErrorIs(t, err, game.ErrProvider)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Zero(t, hits)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(random.Fixed(0), nil)
	reg.Register("bots", Provider{Kind: KindRemote, BaseURL: "http://localhost:9999", RequestsPerMinute: 60})

	assert.Equal(t, []string{"bots", "first", "random"}, reg.IDs())
	assert.True(t, reg.Has("bots"))

	p, err := reg.NewPlayer(bracket.Participant{ProviderID: "random", ModelID: "r", DisplayName: "Rando", Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, "Rando", p.Name())
	assert.IsType(t, &Random{}, p)

	p, err = reg.NewPlayer(bracket.Participant{ProviderID: "bots", ModelID: "b", DisplayName: "Bot", Seed: 2})
	require.NoError(t, err)
	remote, ok := p.(*Remote)
	require.True(t, ok)
	assert.NotNil(t, remote.limiter)

	_, err = reg.NewPlayer(bracket.Participant{ProviderID: "nope"})
	assert.Error(t, err)
}
