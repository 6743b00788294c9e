package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/AdamBeresnev/llm-chess-arena/internal/httputil"
)

type ContextKey string

const OperatorKey ContextKey = "operator"

// RequireOperator guards mutating endpoints with a static bearer token. An
// empty token leaves the routes open, which suits a local single-user setup.
func RequireOperator(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			got, ok := bearer(r)
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="arena"`)
				httputil.Unauthorized(w, "operator token required")
				return
			}

			ctx := context.WithValue(r.Context(), OperatorKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// IsOperator reports whether the request passed RequireOperator with a token.
func IsOperator(ctx context.Context) bool {
	ok, _ := ctx.Value(OperatorKey).(bool)
	return ok
}
