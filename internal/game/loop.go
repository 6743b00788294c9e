package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AdamBeresnev/llm-chess-arena/internal/bracket"
	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
	"github.com/AdamBeresnev/llm-chess-arena/internal/metrics"
	"github.com/AdamBeresnev/llm-chess-arena/internal/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrMoveTimeout = errors.New("move timed out")

type Config struct {
	MaxRetries     int
	MoveTimeout    time.Duration
	ShowLegalMoves bool
	// BoardImage attaches a rendered picture of the position to every State
	// when the board can draw one.
	BoardImage bool
	// StartingFEN is reported in GameStart. Empty means the standard position.
	StartingFEN string
	// AnnotatePGN stores each applied move's reasoning as a PGN comment.
	AnnotatePGN bool
}

func DefaultConfig() Config {
	return Config{MaxRetries: 3, MoveTimeout: 120 * time.Second, ShowLegalMoves: true}
}

// Loop drives single games. It is safe to use from many goroutines; all
// per-game state lives in Play.
type Loop struct {
	cfg      Config
	newBoard func() Board
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time

	transcripts Transcriber
}

type Option func(*Loop)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(l *Loop) { l.tracer = tracer }
}

func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

func NewLoop(cfg Config, newBoard func() Board, opts ...Option) *Loop {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	l := &Loop{
		cfg:      cfg,
		newBoard: newBoard,
		logger:   slog.Default(),
		tracer:   otel.Tracer("github.com/AdamBeresnev/llm-chess-arena/internal/game"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Stream runs Play in its own goroutine. The channel is closed after the
// GameOver event; callers must drain it.
func (l *Loop) Stream(ctx context.Context, white, black Player) <-chan event.GameEvent {
	out := make(chan event.GameEvent, 16)
	go func() {
		defer close(out)
		l.Play(ctx, white, black, func(ev event.GameEvent) { out <- ev })
	}()
	return out
}

// Play drives one game to completion, passing every event to emit in order.
// Exactly one GameOver is emitted and it is also returned. Cancelling ctx ends
// the game as interrupted at the next turn boundary, or immediately if a move
// request is in flight.
func (l *Loop) Play(ctx context.Context, white, black Player, emit func(event.GameEvent)) event.GameOver {
	ctx, span := l.tracer.Start(ctx, "game.Play", trace.WithAttributes(
		attribute.String("white", white.Name()),
		attribute.String("black", black.Name()),
	))
	defer span.End()

	white, black, closeTranscript := l.transcribe(white, black)
	defer closeTranscript()

	board := l.newBoard()
	startingFEN := l.cfg.StartingFEN
	if startingFEN == "" {
		startingFEN = "start"
	}
	emit(event.GameStart{
		WhiteName:   white.Name(),
		BlackName:   black.Name(),
		StartingFEN: startingFEN,
		Timestamp:   l.now(),
	})

	for !board.IsOver() {
		if ctx.Err() != nil {
			return l.finish(ctx, board, white, black, bracket.Unfinished, event.ReasonInterrupted, nil, emit)
		}

		color := board.Turn()
		player := white
		if color == event.Black {
			player = black
		}

		emit(event.TurnStart{
			Color:          color,
			PlayerName:     player.Name(),
			MoveNumber:     board.FullMoveNumber(),
			FEN:            board.FEN(),
			BoardASCII:     board.ASCII(),
			LegalMovesSAN:  sanList(board.LegalMoves()),
			MoveHistorySAN: board.HistorySAN(),
		})

		applied, interrupted := l.playTurn(ctx, board, player, color, emit)
		if interrupted {
			return l.finish(ctx, board, white, black, bracket.Unfinished, event.ReasonInterrupted, nil, emit)
		}
		if !applied {
			winner := color.Opponent()
			result := bracket.BlackWins
			if winner == event.White {
				result = bracket.WhiteWins
			}
			return l.finish(ctx, board, white, black, result, event.ReasonMaxRetriesExceeded, &winner, emit)
		}
	}

	out := board.Outcome()
	return l.finish(ctx, board, white, black, out.Result, out.Reason, out.Winner, emit)
}

// playTurn runs up to MaxRetries attempts for the side to move.
func (l *Loop) playTurn(ctx context.Context, board Board, player Player, color event.Color, emit func(event.GameEvent)) (applied, interrupted bool) {
	var prevInvalid, prevError *string

	for attempt := 1; attempt <= l.cfg.MaxRetries; attempt++ {
		emit(event.MoveRequested{Color: color, AttemptNum: attempt})

		state := l.state(board, color, prevInvalid, prevError, attempt)
		resp, err := l.request(ctx, player, state)
		if err != nil {
			if ctx.Err() != nil {
				return false, true
			}
			msg := "API error: " + err.Error()
			l.reject(emit, event.InvalidMove{
				Color:      color,
				Error:      msg,
				ErrorKind:  event.KindProviderError,
				AttemptNum: attempt,
			})
			prevInvalid, prevError = utils.Ptr(""), utils.Ptr(msg)
			continue
		}

		if strings.TrimSpace(resp.Raw) == "" {
			msg := "Model returned an empty response."
			l.reject(emit, event.InvalidMove{
				Color:      color,
				Error:      msg,
				ErrorKind:  event.KindEmpty,
				AttemptNum: attempt,
			})
			prevInvalid, prevError = utils.Ptr(""), utils.Ptr(msg)
			continue
		}

		token := strings.TrimSpace(resp.Move)
		mv, kind := board.Parse(token)
		if kind == "" {
			if err := board.Push(mv); err != nil {
				l.logger.Warn("board refused a parsed move", "move", mv.UCI, "error", err)
				kind = event.KindIllegal
			}
		}
		if kind != "" {
			msg := rejection(token, kind, board)
			l.reject(emit, event.InvalidMove{
				Color:         color,
				AttemptedMove: token,
				RawResponse:   resp.Raw,
				Reasoning:     resp.Reasoning,
				Error:         msg,
				ErrorKind:     kind,
				AttemptNum:    attempt,
			})
			prevInvalid, prevError = utils.Ptr(token), utils.Ptr(msg)
			continue
		}

		if l.cfg.AnnotatePGN && resp.Reasoning != nil {
			if ab, ok := board.(AnnotatingBoard); ok {
				if comment := ReasoningComment(*resp.Reasoning); comment != "" {
					ab.Annotate(comment)
				}
			}
		}

		check := board.InCheck()
		emit(event.MoveApplied{
			Color:           color,
			MoveUCI:         mv.UCI,
			MoveSAN:         mv.SAN,
			RawResponse:     resp.Raw,
			Reasoning:       resp.Reasoning,
			FENAfter:        board.FEN(),
			BoardASCIIAfter: board.ASCII(),
			IsCheck:         check,
			MoveNumber:      state.MoveNumber,
		})
		l.metrics.MoveApplied(string(color))

		if check && !board.IsOver() {
			emit(event.Check{ColorInCheck: board.Turn(), CheckingMoveSAN: mv.SAN})
		}
		return true, false
	}
	return false, false
}

func (l *Loop) state(board Board, color event.Color, prevInvalid, prevError *string, attempt int) State {
	st := State{
		FEN:                 board.FEN(),
		BoardASCII:          board.ASCII(),
		MoveHistorySAN:      board.HistorySAN(),
		Color:               color,
		MoveNumber:          board.FullMoveNumber(),
		PreviousInvalidMove: prevInvalid,
		PreviousError:       prevError,
		AttemptNum:          attempt,
	}
	if l.cfg.ShowLegalMoves {
		legal := board.LegalMoves()
		st.LegalMovesUCI = uciList(legal)
		st.LegalMovesSAN = sanList(legal)
	}
	if img, ok := board.(ImageBoard); ok && l.cfg.BoardImage {
		png, err := img.PNG()
		if err != nil {
			l.logger.Warn("failed to render board image", "error", err)
		} else {
			st.BoardImage = png
		}
	}
	return st
}

type reply struct {
	resp Response
	err  error
}

// request asks the player for a move, bounded by the per-move timeout even
// when the player ignores its context.
func (l *Loop) request(ctx context.Context, player Player, state State) (Response, error) {
	reqCtx := ctx
	if l.cfg.MoveTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, l.cfg.MoveTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() { l.metrics.ObserveMoveRequest(time.Since(start)) }()

	done := make(chan reply, 1)
	go func() {
		resp, err := player.Move(reqCtx, state)
		done <- reply{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return Response{}, fmt.Errorf("%w after %s", ErrMoveTimeout, l.cfg.MoveTimeout)
		}
		return r.resp, r.err
	case <-reqCtx.Done():
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, fmt.Errorf("%w after %s", ErrMoveTimeout, l.cfg.MoveTimeout)
	}
}

func (l *Loop) reject(emit func(event.GameEvent), ev event.InvalidMove) {
	l.logger.Debug("move rejected",
		"color", ev.Color,
		"attempt", ev.AttemptNum,
		"kind", ev.ErrorKind,
		"error", ev.Error,
	)
	l.metrics.InvalidMove(string(ev.ErrorKind))
	emit(ev)
}

func (l *Loop) finish(ctx context.Context, board Board, white, black Player, result, reason string, winner *event.Color, emit func(event.GameEvent)) event.GameOver {
	var winnerName *string
	if winner != nil {
		name := white.Name()
		if *winner == event.Black {
			name = black.Name()
		}
		winnerName = &name
	}

	over := event.GameOver{
		Result:     result,
		Reason:     reason,
		WinnerName: winnerName,
		PGN:        board.PGN(white.Name(), black.Name(), result),
		TotalMoves: len(board.HistorySAN()),
		Timestamp:  l.now(),
	}
	emit(over)

	l.metrics.GameFinished(reason)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("result", result),
		attribute.String("reason", reason),
	)
	l.logger.Info("game over",
		"white", white.Name(),
		"black", black.Name(),
		"result", result,
		"reason", reason,
		"moves", over.TotalMoves,
	)
	return over
}

func rejection(token string, kind event.ErrorKind, board Board) string {
	switch kind {
	case event.KindIllegal:
		return fmt.Sprintf("'%s' is syntactically valid but not legal here. Legal moves: %s",
			token, strings.Join(sanList(board.LegalMoves()), ", "))
	case event.KindAmbiguous:
		return fmt.Sprintf("'%s' is ambiguous here; add the origin file or rank (e.g. Nbd2). Legal moves: %s",
			token, strings.Join(sanList(board.LegalMoves()), ", "))
	default:
		return fmt.Sprintf("'%s' is not a recognised move. Use UCI (e.g. e2e4, a7a8q) or SAN (e.g. e4, Nf3, cxd4, O-O).", token)
	}
}

func sanList(moves []Move) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.SAN
	}
	return out
}

func uciList(moves []Move) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.UCI
	}
	return out
}

var commentBraces = strings.NewReplacer("{", "(", "}", ")")

// ReasoningComment flattens reasoning into a single-line PGN comment body.
// Braces would end the comment early, so they become parentheses.
func ReasoningComment(reasoning string) string {
	return commentBraces.Replace(strings.Join(strings.Fields(reasoning), " "))
}
