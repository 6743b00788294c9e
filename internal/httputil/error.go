package httputil

import (
	"context"
	"log/slog"
	"net/http"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

func fail(w http.ResponseWriter, status int, level slog.Level, msg string, err error) {
	attrs := []any{"status", status, "message", msg}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	slog.Log(context.Background(), level, http.StatusText(status), attrs...)
	JSON(w, status, ErrorBody{Error: msg})
}

// InternalServerError hides msg and err from the client and logs both.
func InternalServerError(w http.ResponseWriter, msg string, err error) {
	attrs := []any{"message", msg}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	slog.Error("internal server error", attrs...)
	JSON(w, http.StatusInternalServerError, ErrorBody{Error: "Internal Server Error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	fail(w, http.StatusBadRequest, slog.LevelWarn, msg, err)
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	fail(w, http.StatusNotFound, slog.LevelInfo, msg, err)
}

func Conflict(w http.ResponseWriter, msg string) {
	fail(w, http.StatusConflict, slog.LevelWarn, msg, nil)
}

func Unauthorized(w http.ResponseWriter, msg string) {
	fail(w, http.StatusUnauthorized, slog.LevelWarn, msg, nil)
}
