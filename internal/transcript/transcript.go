// Package transcript writes one conversation log file per game.
package transcript

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9 _-]+`)

// Dir creates transcripts under one directory, named after the start time
// and the two players.
type Dir struct {
	path string
	json bool
	now  func() time.Time
	seq  atomic.Uint64
}

func New(path string, json bool) *Dir {
	return &Dir{path: path, json: json, now: time.Now}
}

func (d *Dir) Open(white, black string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create transcript dir: %w", err)
	}
	name := fmt.Sprintf("game_%s_%03d_%s_vs_%s.log",
		d.now().Format("20060102_150405"), d.seq.Add(1), safe(white), safe(black))
	f, err := os.OpenFile(filepath.Join(d.path, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open transcript: %w", err)
	}

	w := &file{f: f}
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if d.json {
		h = slog.NewJSONHandler(w, opts)
	}
	logger := slog.New(h)
	logger.Info("game started", "white", white, "black", black)
	return logger, w, nil
}

func safe(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// file drops writes that arrive after Close, such as the reply of a player
// that outlived its move deadline.
type file struct {
	mu     sync.Mutex
	f      *os.File
	closed bool
}

func (w *file) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return len(p), nil
	}
	return w.f.Write(p)
}

func (w *file) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.f.Close()
}
