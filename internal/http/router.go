package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"realtime-collab/internal/app"
	"realtime-collab/pkg/auth"
	"realtime-collab/pkg/metrics"
)

// ReadyCheck reports whether a dependency can serve traffic
type ReadyCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Deps are the collaborators the router dispatches to
type Deps struct {
	WS      http.Handler // websocket endpoint
	Users   UserStore
	Revoked Revoker
	Exec    Executor
	Ready   []ReadyCheck
}

// NewRouter wires up all HTTP routes, middleware, and handlers
func NewRouter(cfg app.Config, logger *slog.Logger, deps Deps) http.Handler {
	j := auth.New(cfg.JWTSecret)
	mw := NewMiddleware(cfg, j, deps.Revoked, logger)

	authAPI := &AuthAPI{DB: deps.Users, JWT: j, Revoked: deps.Revoked, TTL: cfg.TokenTTL, Log: logger}
	compileAPI := &CompileAPI{Exec: deps.Exec, Log: logger}

	mux := http.NewServeMux()

	// Health / readiness / metrics
	mux.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))
	mux.Handle("GET /readyz", readyz(logger, deps.Ready))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /{$}", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "collab server is running", "status": "ok"})
	}))

	// WebSocket endpoint
	mux.Handle("GET /ws", deps.WS)

	// Identity endpoints
	mux.Handle("POST /api/auth/register", http.HandlerFunc(authAPI.Register))
	mux.Handle("POST /api/auth/login", http.HandlerFunc(authAPI.Login))
	mux.Handle("POST /api/auth/guest", http.HandlerFunc(authAPI.Guest))
	mux.Handle("POST /api/auth/logout", mw.Auth(http.HandlerFunc(authAPI.Logout)))
	mux.Handle("GET /api/auth/me", mw.Optional(http.HandlerFunc(authAPI.Me)))

	// Code execution (token required)
	mux.Handle("POST /compile", mw.Auth(http.HandlerFunc(compileAPI.Compile)))
	mux.Handle("GET /api/languages", http.HandlerFunc(compileAPI.Languages))

	return mw.Wrap(mux) // CORS + rate limit applied globally
}

// readyz pings every dependency and fails if any is down
func readyz(logger *slog.Logger, checks []ReadyCheck) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		code := http.StatusOK
		for _, c := range checks {
			if err := c.Ping(ctx); err != nil {
				logger.Warn("readyz.fail", "dep", c.Name, "err", err)
				status[c.Name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			status[c.Name] = "up"
		}
		writeJSON(w, code, status)
	})
}
