// Package config loads the arena settings from a YAML file overlaid with
// ARENA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "ARENA_"

type Config struct {
	Game       GameConfig                `yaml:"game" envPrefix:"GAME_"`
	Tournament TournamentConfig          `yaml:"tournament" envPrefix:"TOURNAMENT_"`
	Server     ServerConfig              `yaml:"server" envPrefix:"SERVER_"`
	Database   DatabaseConfig            `yaml:"database" envPrefix:"DATABASE_"`
	Log        LogConfig                 `yaml:"log" envPrefix:"LOG_"`
	Tracing    TracingConfig             `yaml:"tracing" envPrefix:"TRACING_"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
}

type GameConfig struct {
	MaxRetries     int           `yaml:"max_retries" env:"MAX_RETRIES" json:"max_retries"`
	BoardInput     string        `yaml:"board_input" env:"BOARD_INPUT" json:"board_input"`
	ShowLegalMoves bool          `yaml:"show_legal_moves" env:"SHOW_LEGAL_MOVES" json:"show_legal_moves"`
	MoveTimeout    time.Duration `yaml:"move_timeout" env:"MOVE_TIMEOUT" json:"move_timeout"`
	SavePGN        bool          `yaml:"save_pgn" env:"SAVE_PGN" json:"save_pgn"`
	PGNDir         string        `yaml:"pgn_dir" env:"PGN_DIR" json:"pgn_dir"`
	// AnnotatePGN stores each move's reasoning as a PGN comment.
	AnnotatePGN bool `yaml:"annotate_pgn" env:"ANNOTATE_PGN" json:"annotate_pgn"`
	// TranscriptDir turns on per-game conversation logs written there.
	TranscriptDir string `yaml:"transcript_dir" env:"TRANSCRIPT_DIR" json:"transcript_dir"`
}

type TournamentConfig struct {
	Type         string `yaml:"type" env:"TYPE" json:"type"`
	DrawHandling string `yaml:"draw_handling" env:"DRAW_HANDLING" json:"draw_handling"`
	// MaxRematches caps drawn rematches before the seed rule decides. 0 is unbounded.
	MaxRematches int `yaml:"max_rematches" env:"MAX_REMATCHES" json:"max_rematches"`
}

type ServerConfig struct {
	Addr          string `yaml:"addr" env:"ADDR"`
	OperatorToken string `yaml:"operator_token" env:"OPERATOR_TOKEN"`
	// CORSOrigins lists browser origins allowed to call the API. Empty
	// disables CORS headers.
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DSN"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// TracingConfig enables OTLP/HTTP span export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint" env:"ENDPOINT"`
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
}

type ModelConfig struct {
	ID             string `yaml:"id" json:"id"`
	Name           string `yaml:"name" json:"name"`
	SupportsVision *bool  `yaml:"supports_vision" json:"supports_vision,omitempty"`
}

// ProviderConfig configures one provider id. Kind is random, first or
// remote; remote providers need a base_url.
type ProviderConfig struct {
	Kind              string        `yaml:"kind"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	BearerToken       string        `yaml:"bearer_token"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Models            []ModelConfig `yaml:"models"`
}

// AuthToken prefers the bearer token over the API key.
func (p ProviderConfig) AuthToken() string {
	if p.BearerToken != "" {
		return p.BearerToken
	}
	return p.APIKey
}

func Default() Config {
	return Config{
		Game: GameConfig{
			MaxRetries:     3,
			BoardInput:     "text",
			ShowLegalMoves: true,
			MoveTimeout:    120 * time.Second,
			SavePGN:        true,
			PGNDir:         "./games",
		},
		Tournament: TournamentConfig{
			Type:         string(bracket.Knockout),
			DrawHandling: string(bracket.DrawRematch),
		},
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{DSN: "llm_chess.db?_journal_mode=WAL"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, applies the environment and validates
// the result. A missing file is not an error; the defaults and the
// environment are used on their own.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Warn("config file not found, using defaults and environment", "path", path)
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	for id, p := range cfg.Providers {
		p.APIKey = os.ExpandEnv(p.APIKey)
		p.BearerToken = os.ExpandEnv(p.BearerToken)
		if p.Kind == "" {
			p.Kind = "remote"
		}
		cfg.Providers[id] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Game.MaxRetries < 1 {
		errs = append(errs, errors.New("game.max_retries must be >= 1"))
	}
	if c.Game.BoardInput != "text" && c.Game.BoardInput != "image" {
		errs = append(errs, fmt.Errorf("game.board_input must be text or image, got %q", c.Game.BoardInput))
	}
	if c.Game.MoveTimeout < 0 {
		errs = append(errs, errors.New("game.move_timeout must not be negative"))
	}
	if _, err := bracket.ParseFormat(c.Tournament.Type); err != nil && !errors.Is(err, bracket.ErrNotImplemented) {
		errs = append(errs, fmt.Errorf("tournament.type: %w", err))
	}
	if _, err := bracket.ParseDrawHandling(c.Tournament.DrawHandling); err != nil {
		errs = append(errs, fmt.Errorf("tournament.draw_handling: %w", err))
	}
	if c.Tournament.MaxRematches < 0 {
		errs = append(errs, errors.New("tournament.max_rematches must not be negative"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("tracing.sample_ratio must be between 0 and 1"))
	}
	for id, p := range c.Providers {
		switch p.Kind {
		case "random", "first":
		case "remote":
			if p.BaseURL == "" {
				errs = append(errs, fmt.Errorf("providers.%s.base_url is required", id))
			}
		default:
			errs = append(errs, fmt.Errorf("providers.%s.kind %q is not random, first or remote", id, p.Kind))
		}
		if p.RequestsPerMinute < 0 {
			errs = append(errs, fmt.Errorf("providers.%s.requests_per_minute must not be negative", id))
		}
		for i, m := range p.Models {
			if m.ID == "" {
				errs = append(errs, fmt.Errorf("providers.%s.models[%d].id is required", id, i))
			}
		}
	}
	return errors.Join(errs...)
}

func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
