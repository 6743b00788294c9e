// Package app turns a loaded config into the pieces both binaries share.
package app

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AdamBeresnev/llm-chess-arena/internal/config"
	"github.com/AdamBeresnev/llm-chess-arena/internal/game"
	"github.com/AdamBeresnev/llm-chess-arena/internal/player"
	"github.com/AdamBeresnev/llm-chess-arena/internal/random"
	"github.com/AdamBeresnev/llm-chess-arena/internal/transcript"
)

// NewLogger builds the slog handler selected by the log section.
func NewLogger(c config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func GameConfig(c config.GameConfig) game.Config {
	return game.Config{
		MaxRetries:     c.MaxRetries,
		MoveTimeout:    c.MoveTimeout,
		ShowLegalMoves: c.ShowLegalMoves,
		BoardImage:     c.BoardInput == "image",
		AnnotatePGN:    c.AnnotatePGN,
	}
}

// Transcripts returns the conversation log writer, or nil when no
// transcript_dir is configured. Files use the same format as the main log.
func Transcripts(c *config.Config) game.Transcriber {
	if c.Game.TranscriptDir == "" {
		return nil
	}
	return transcript.New(c.Game.TranscriptDir, strings.EqualFold(c.Log.Format, "json"))
}

// NewRegistry registers every configured provider on top of the built-in
// random and first players. Remote calls share client.
func NewRegistry(providers map[string]config.ProviderConfig, rng random.Source, client *http.Client) *player.Registry {
	reg := player.NewRegistry(rng, client)
	for id, p := range providers {
		reg.Register(id, player.Provider{
			Kind:              player.Kind(p.Kind),
			BaseURL:           p.BaseURL,
			Token:             p.AuthToken(),
			RequestsPerMinute: p.RequestsPerMinute,
		})
	}
	return reg
}
