package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"realtime-collab/internal/app"
	"realtime-collab/internal/execute"
	"realtime-collab/internal/mocks"
	"realtime-collab/internal/store"
	"realtime-collab/pkg/metrics"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	users   *mocks.MockUserStore
	revoked *mocks.MockRevoker
	exec    *mocks.MockExecutor
	handler http.Handler
}

func newFixture(t *testing.T, ready ...ReadyCheck) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		users:   mocks.NewMockUserStore(ctrl),
		revoked: mocks.NewMockRevoker(ctrl),
		exec:    mocks.NewMockExecutor(ctrl),
	}
	cfg := app.Config{
		CORSAllow:  []string{"http://localhost:3000"},
		JWTSecret:  "test-secret",
		TokenTTL:   time.Hour,
		RateLimit:  1000,
		RateWindow: time.Minute,
	}
	f.handler = NewRouter(cfg, discard, Deps{
		WS:      http.NotFoundHandler(),
		Users:   f.users,
		Revoked: f.revoked,
		Exec:    f.exec,
		Ready:   ready,
	})
	return f
}

func (f *fixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestRegister_IssuesToken(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given a fresh email
	f.users.EXPECT().
		CreateUser(gomock.Any(), "alice@example.com", "", "password123").
		Return(store.User{ID: "u1", Email: "alice@example.com", Username: "alice"}, nil)

	// When registering
	w := f.do(http.MethodPost, "/api/auth/register", "", `{"email":"alice@example.com","password":"password123"}`)

	// Then a token and the stored profile come back
	req.Equal(http.StatusOK, w.Code)
	resp := decode[tokenResp](t, w)
	req.True(resp.Success)
	req.NotEmpty(resp.Token)
	req.Equal(authUserDTO{ID: "u1", Email: "alice@example.com", Username: "alice", Provider: "local"}, resp.User)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.users.EXPECT().
		CreateUser(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(store.User{}, store.ErrEmailTaken)

	w := f.do(http.MethodPost, "/api/auth/register", "", `{"email":"alice@example.com","password":"password123"}`)

	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal("User already exists", decode[map[string]string](t, w)["error"])
}

func TestRegister_RejectsWeakPassword(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/auth/register", "", `{"email":"alice@example.com","password":"short"}`)

	req.Equal(http.StatusBadRequest, w.Code)
}

func TestLogin_BadCredentials(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.users.EXPECT().
		VerifyUser(gomock.Any(), "alice@example.com", "wrong").
		Return(store.User{}, store.ErrInvalidCredentials)

	w := f.do(http.MethodPost, "/api/auth/login", "", `{"email":"alice@example.com","password":"wrong"}`)

	req.Equal(http.StatusUnauthorized, w.Code)
	req.Equal("Incorrect email or password.", decode[map[string]string](t, w)["error"])
}

func TestGuest_ThenMe(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given a guest token
	w := f.do(http.MethodPost, "/api/auth/guest", "", "")
	req.Equal(http.StatusOK, w.Code)
	guest := decode[tokenResp](t, w)
	req.True(strings.HasPrefix(guest.User.ID, "guest_"))
	req.True(strings.HasPrefix(guest.User.Username, "Guest_"))
	req.Equal("guest", guest.User.Provider)

	f.revoked.EXPECT().IsRevoked(gomock.Any(), gomock.Any()).Return(false, nil)

	// When asking who we are
	w = f.do(http.MethodGet, "/api/auth/me", guest.Token, "")

	// Then the guest identity is reported
	req.Equal(http.StatusOK, w.Code)
	me := decode[meResp](t, w)
	req.True(me.Authenticated)
	req.Equal(guest.User, *me.User)
}

func TestMe_Anonymous(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/auth/me", "", "")

	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"authenticated":false}`, w.Body.String())
}

func TestLogout_RevokesToken(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	tok := decode[tokenResp](t, f.do(http.MethodPost, "/api/auth/guest", "", "")).Token

	// Given the token is live, logout revokes it
	var revokedID string
	f.revoked.EXPECT().IsRevoked(gomock.Any(), gomock.Any()).Return(false, nil)
	f.revoked.EXPECT().
		Revoke(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id string, exp time.Time) error {
			revokedID = id
			req.True(exp.After(time.Now()))
			return nil
		})

	w := f.do(http.MethodPost, "/api/auth/logout", tok, "")
	req.Equal(http.StatusOK, w.Code)
	req.NotEmpty(revokedID)

	// Then the same token is refused
	f.revoked.EXPECT().IsRevoked(gomock.Any(), revokedID).Return(true, nil)

	w = f.do(http.MethodPost, "/compile", tok, `{"code":"x","language":"go"}`)
	req.Equal(http.StatusUnauthorized, w.Code)
}

func TestAuth_RevocationStoreDown(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	tok := decode[tokenResp](t, f.do(http.MethodPost, "/api/auth/guest", "", "")).Token
	f.revoked.EXPECT().IsRevoked(gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

	w := f.do(http.MethodPost, "/compile", tok, `{"code":"x","language":"go"}`)

	req.Equal(http.StatusServiceUnavailable, w.Code)
}

func TestCompile_RequiresToken(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	w := f.do(http.MethodPost, "/compile", "", `{"code":"x","language":"go"}`)

	req.Equal(http.StatusUnauthorized, w.Code)
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		result     execute.Result
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "ok",
			body:       `{"code":"print(1)","language":"python3"}`,
			result:     execute.Result{Output: "1\n", StatusCode: 200},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing fields",
			body:       `{"code":"print(1)"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Code and language are required",
		},
		{
			name:       "unsupported language",
			body:       `{"code":"x","language":"cobol"}`,
			err:        execute.ErrUnsupportedLanguage,
			wantStatus: http.StatusBadRequest,
			wantError:  "Unsupported language: cobol",
		},
		{
			name:       "not configured",
			body:       `{"code":"x","language":"go"}`,
			err:        execute.ErrNotConfigured,
			wantStatus: http.StatusInternalServerError,
			wantError:  "Code execution service not configured",
		},
		{
			name:       "timeout",
			body:       `{"code":"x","language":"go"}`,
			err:        execute.ErrTimeout,
			wantStatus: http.StatusInternalServerError,
			wantError:  "Request timeout",
		},
		{
			name:       "upstream",
			body:       `{"code":"x","language":"go"}`,
			err:        &execute.UpstreamError{Status: http.StatusUnauthorized, Message: "Unauthorized Request"},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Unauthorized Request",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newFixture(t)
			tok := decode[tokenResp](t, f.do(http.MethodPost, "/api/auth/guest", "", "")).Token
			f.revoked.EXPECT().IsRevoked(gomock.Any(), gomock.Any()).Return(false, nil)
			if tt.wantStatus != http.StatusBadRequest || tt.err != nil {
				f.exec.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(tt.result, tt.err)
			}

			w := f.do(http.MethodPost, "/compile", tok, tt.body)

			req.Equal(tt.wantStatus, w.Code)
			if tt.wantError != "" {
				req.Equal(tt.wantError, decode[compileErr](t, w).Error)
				return
			}
			req.Equal(tt.result, decode[execute.Result](t, w))
		})
	}
}

func TestCompile_UnknownLanguageLabel(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	tok := decode[tokenResp](t, f.do(http.MethodPost, "/api/auth/guest", "", "")).Token
	f.revoked.EXPECT().IsRevoked(gomock.Any(), gomock.Any()).Return(false, nil)
	f.exec.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(execute.Result{}, execute.ErrUnsupportedLanguage)
	before := testutil.ToFloat64(metrics.Compiles.WithLabelValues("unsupported", "error"))

	// When compiling in a language nobody supports
	w := f.do(http.MethodPost, "/compile", tok, `{"code":"x","language":"made-up-lang-42"}`)

	// Then it is counted under the shared label and gets no series of its own
	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal(before+1, testutil.ToFloat64(metrics.Compiles.WithLabelValues("unsupported", "error")))
	req.False(metrics.Compiles.DeleteLabelValues("made-up-lang-42", "error"))
}

func TestCompile_UndecodableUpstream(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	tok := decode[tokenResp](t, f.do(http.MethodPost, "/api/auth/guest", "", "")).Token
	f.revoked.EXPECT().IsRevoked(gomock.Any(), gomock.Any()).Return(false, nil)
	f.exec.EXPECT().Execute(gomock.Any(), gomock.Any()).
		Return(execute.Result{}, errors.New("decode execution response: invalid character '<'"))

	w := f.do(http.MethodPost, "/compile", tok, `{"code":"x","language":"go"}`)

	req.Equal(http.StatusInternalServerError, w.Code)
	req.Equal("Failed to compile code", decode[compileErr](t, w).Error)
}

func TestLanguages(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/languages", "", "")

	req.Equal(http.StatusOK, w.Code)
	req.Contains(decode[map[string][]string](t, w)["languages"], "python3")
}

func TestReadyz(t *testing.T) {
	req := require.New(t)
	up := ReadyCheck{Name: "postgres", Ping: func(context.Context) error { return nil }}
	down := ReadyCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("dial tcp: refused") }}

	w := newFixture(t, up).do(http.MethodGet, "/readyz", "", "")
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"postgres":"up"}`, w.Body.String())

	w = newFixture(t, up, down).do(http.MethodGet, "/readyz", "", "")
	req.Equal(http.StatusServiceUnavailable, w.Code)
	req.JSONEq(`{"postgres":"up","redis":"down"}`, w.Body.String())
}

func TestHealthz(t *testing.T) {
	req := require.New(t)

	w := newFixture(t).do(http.MethodGet, "/healthz", "", "")

	req.Equal(http.StatusOK, w.Code)
}
