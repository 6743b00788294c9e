// Package stream serves broadcaster subscriptions over WebSockets: the log
// so far first, then live events, one JSON message per event.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/AdamBeresnev/llm-chess-arena/internal/broadcast"
	"github.com/AdamBeresnev/llm-chess-arena/internal/event"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type Handler struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func New(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API is read-only and unauthenticated; any origin may watch.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve upgrades the request and streams the subscription returned by
// subscribe until the client leaves or the subscription is closed.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, scope string, subscribe func() *broadcast.Subscription) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "scope", scope, "error", err)
		return
	}
	logger := h.logger.With("scope", scope, "remote", r.RemoteAddr)
	logger.Debug("stream client connected")

	sub := subscribe()
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		readPump(conn)
	}()

	events := make(chan event.Event)
	go func() {
		defer wg.Done()
		defer close(events)
		for {
			ev, err := sub.Next(ctx)
			if err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	err = writePump(ctx, conn, events)
	switch {
	case err == nil:
		logger.Debug("stream ended")
	case errors.Is(err, context.Canceled):
		logger.Debug("stream client disconnected")
	default:
		logger.Warn("stream write failed", "error", err)
	}

	cancel()
	sub.Close()
	conn.Close()
	wg.Wait()
}

// readPump discards client messages; it exists to process pongs and notice
// when the client goes away.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, events <-chan event.Event) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream closed")
				conn.WriteMessage(websocket.CloseMessage, msg)
				return nil
			}
			if err := conn.WriteJSON(ev); err != nil {
				return err
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
