package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"

	"realtime-collab/internal/app"
	"realtime-collab/pkg/auth"
	"realtime-collab/pkg/ratelimit"
)

// Revoker tracks logged-out tokens
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Middleware struct {
	cors    *cors.Cors
	auth    *auth.JWT
	revoked Revoker
	rlimit  *ratelimit.Limiter
	log     *slog.Logger
}

// NewMiddleware builds the shared middleware stack from config
func NewMiddleware(cfg app.Config, j *auth.JWT, revoked Revoker, log *slog.Logger) *Middleware {
	return &Middleware{
		cors: cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSAllow,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}),
		auth:    j,
		revoked: revoked,
		rlimit:  ratelimit.New(cfg.RateLimit, cfg.RateWindow),
		log:     log,
	}
}

// Wrap applies CORS + rate limiting to a handler
func (m *Middleware) Wrap(h http.Handler) http.Handler {
	return m.cors.Handler(m.rlimit.Middleware(h))
}

// Auth enforces a valid, unrevoked bearer token and puts its claims in the context
func (m *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, status, msg := m.authenticate(r)
		if claims == nil {
			writeError(w, status, msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// Optional attaches claims when a valid token is present and never rejects
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, _, _ := m.authenticate(r); claims != nil {
			r = r.WithContext(auth.WithClaims(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) authenticate(r *http.Request) (*auth.Claims, int, string) {
	b := r.Header.Get("Authorization")
	if !strings.HasPrefix(b, "Bearer ") {
		return nil, http.StatusUnauthorized, "Unauthorized. Please log in or continue as guest."
	}
	claims, err := m.auth.Verify(strings.TrimPrefix(b, "Bearer "))
	if err != nil {
		return nil, http.StatusUnauthorized, "bad token"
	}
	if m.revoked != nil {
		revoked, err := m.revoked.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			m.log.Error("auth.revocation_check", "err", err)
			return nil, http.StatusServiceUnavailable, "auth unavailable"
		}
		if revoked {
			return nil, http.StatusUnauthorized, "token revoked"
		}
	}
	return claims, 0, ""
}
