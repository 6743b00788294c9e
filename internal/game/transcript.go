package game

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/AdamBeresnev/llm-chess-arena/internal/utils"
)

// Transcriber opens the conversation log of one game. The closer is called
// once the game is over.
type Transcriber interface {
	Open(white, black string) (*slog.Logger, io.Closer, error)
}

// WithTranscripts records every move request and reply of every game.
func WithTranscripts(t Transcriber) Option {
	return func(l *Loop) { l.transcripts = t }
}

func (l *Loop) transcribe(white, black Player) (Player, Player, func()) {
	if l.transcripts == nil {
		return white, black, func() {}
	}
	log, closer, err := l.transcripts.Open(white.Name(), black.Name())
	if err != nil {
		l.logger.Warn("failed to open transcript", "white", white.Name(), "black", black.Name(), "error", err)
		return white, black, func() {}
	}
	return recordingPlayer{Player: white, log: log}, recordingPlayer{Player: black, log: log}, func() {
		if err := closer.Close(); err != nil {
			l.logger.Warn("failed to close transcript", "error", err)
		}
	}
}

type recordingPlayer struct {
	Player
	log *slog.Logger
}

func (p recordingPlayer) Move(ctx context.Context, state State) (Response, error) {
	p.log.Info("move request",
		"player", p.Name(),
		"color", state.Color,
		"move_number", state.MoveNumber,
		"attempt", state.AttemptNum,
		"fen", state.FEN,
		"history", strings.Join(state.MoveHistorySAN, " "),
		"legal_moves", strings.Join(state.LegalMovesSAN, " "),
		"previous_invalid_move", utils.Deref(state.PreviousInvalidMove, ""),
		"previous_error", utils.Deref(state.PreviousError, ""),
		"image_bytes", len(state.BoardImage),
	)

	resp, err := p.Player.Move(ctx, state)
	if err != nil {
		p.log.Warn("move failed", "player", p.Name(), "error", err)
		return resp, err
	}
	p.log.Info("move response", "player", p.Name(), "raw", resp.Raw)
	return resp, nil
}
