package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWhenFileIsMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoadFileOverDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "s3cret")
	path := writeConfig(t, `
game:
  max_retries: 5
  move_timeout: 30s
  save_pgn: false
  annotate_pgn: true
  transcript_dir: ./logs
tournament:
  draw_handling: coin_flip
providers:
  house:
    kind: remote
    base_url: http://localhost:9000
    bearer_token: ${BOT_TOKEN}
    requests_per_minute: 60
    models:
      - id: house-v1
        name: House Bot
        supports_vision: false
  dice:
    kind: random
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Game.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Game.MoveTimeout)
	assert.False(t, cfg.Game.SavePGN)
	assert.True(t, cfg.Game.AnnotatePGN)
	assert.Equal(t, "./logs", cfg.Game.TranscriptDir)
	assert.True(t, cfg.Game.ShowLegalMoves, "unset keys keep their defaults")
	assert.Equal(t, "./games", cfg.Game.PGNDir)
	assert.Equal(t, "coin_flip", cfg.Tournament.DrawHandling)
	assert.Equal(t, "knockout", cfg.Tournament.Type)

	house := cfg.Providers["house"]
	assert.Equal(t, "s3cret", house.AuthToken())
	assert.Equal(t, 60, house.RequestsPerMinute)
	require.Len(t, house.Models, 1)
	require.NotNil(t, house.Models[0].SupportsVision)
	assert.False(t, *house.Models[0].SupportsVision)
	assert.Equal(t, "random", cfg.Providers["dice"].Kind)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "game:\n  max_retries: 5\nserver:\n  addr: :9000\n")
	t.Setenv("ARENA_GAME_MAX_RETRIES", "7")
	t.Setenv("ARENA_SERVER_OPERATOR_TOKEN", "op")
	t.Setenv("ARENA_TOURNAMENT_MAX_REMATCHES", "4")
	t.Setenv("ARENA_DATABASE_DSN", "file::memory:")
	t.Setenv("ARENA_SERVER_CORS_ORIGINS", "http://localhost:5173,https://arena.example")
	t.Setenv("ARENA_TRACING_ENDPOINT", "http://collector:4318")
	t.Setenv("ARENA_GAME_ANNOTATE_PGN", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Game.MaxRetries)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "op", cfg.Server.OperatorToken)
	assert.Equal(t, 4, cfg.Tournament.MaxRematches)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.Equal(t, []string{"http://localhost:5173", "https://arena.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "http://collector:4318", cfg.Tracing.Endpoint)
	assert.True(t, cfg.Game.AnnotatePGN)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "zero retries", mutate: func(c *Config) { c.Game.MaxRetries = 0 }, errMsg: "max_retries"},
		{name: "bad board input", mutate: func(c *Config) { c.Game.BoardInput = "audio" }, errMsg: "board_input"},
		{name: "unknown format", mutate: func(c *Config) { c.Tournament.Type = "ladder" }, errMsg: "tournament.type"},
		{name: "unknown draw handling", mutate: func(c *Config) { c.Tournament.DrawHandling = "armageddon" }, errMsg: "draw_handling"},
		{name: "negative rematches", mutate: func(c *Config) { c.Tournament.MaxRematches = -1 }, errMsg: "max_rematches"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, errMsg: "log.format"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, errMsg: "log.level"},
		{name: "sample ratio above one", mutate: func(c *Config) { c.Tracing.SampleRatio = 1.5 }, errMsg: "sample_ratio"},
		{
			name: "remote without url",
			mutate: func(c *Config) {
				c.Providers = map[string]ProviderConfig{"house": {Kind: "remote"}}
			},
			errMsg: "providers.house.base_url",
		},
		{
			name: "unknown provider kind",
			mutate: func(c *Config) {
				c.Providers = map[string]ProviderConfig{"house": {Kind: "oracle"}}
			},
			errMsg: "providers.house.kind",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}

	valid := Default()
	valid.Tournament.Type = "swiss"
	assert.NoError(t, valid.Validate(), "unimplemented formats are still valid settings")
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	_, err := Load(writeConfig(t, "game: [not, a, map]"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "game:\n  max_retries: 0\n"))
	assert.ErrorContains(t, err, "max_retries")
}
