package auth

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Auth guards the operator API with a static bearer token. An empty token
// disables the check, which is the default for a loopback-only agent.
type Auth struct {
	token []byte
	log   *slog.Logger
}

func New(token string, log *slog.Logger) *Auth {
	return &Auth{
		token: []byte(token),
		log:   log.With(slog.String("component", "auth_middleware")),
	}
}

func (a *Auth) Enabled() bool {
	return len(a.token) > 0
}

// Middleware is the huma flavour used by registered operations.
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if a.allowed(ctx.Header("Authorization"), ctx.Query("token")) {
			next(ctx)
			return
		}

		a.log.Warn("rejected request", slog.String("path", ctx.URL().Path))
		ctx.SetHeader("Content-Type", "application/json")
		ctx.SetStatus(http.StatusUnauthorized)
		a.writeError(ctx.BodyWriter())
	}
}

// Handler wraps plain routes such as the event stream and metrics.
func (a *Auth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.allowed(r.Header.Get("Authorization"), r.URL.Query().Get("token")) {
			next.ServeHTTP(w, r)
			return
		}

		a.log.Warn("rejected request", slog.String("path", r.URL.Path))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		a.writeError(w)
	})
}

// allowed accepts the bearer header or, for websocket clients that cannot
// set headers, a token query parameter.
func (a *Auth) allowed(header, query string) bool {
	if !a.Enabled() {
		return true
	}

	presented := query
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		presented = token
	}
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), a.token) == 1
}

func (a *Auth) writeError(w io.Writer) {
	err := json.NewEncoder(w).Encode(map[string]string{
		"status": "Error",
		"error":  "Unauthorized",
	})
	if err != nil {
		a.log.Error("encode unauthorized response", slog.String("error", err.Error()))
	}
}
