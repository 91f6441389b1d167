package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowsBurstThenRefills(t *testing.T) {
	req := require.New(t)
	now := time.Unix(1_700_000_000, 0)
	l := New(3, time.Minute)
	l.now = func() time.Time { return now }

	// Given a fresh client, the whole burst is available
	for i := 0; i < 3; i++ {
		req.True(l.Allow("1.2.3.4"))
	}
	req.False(l.Allow("1.2.3.4"))

	// Another client is unaffected
	req.True(l.Allow("5.6.7.8"))

	// After one refill period a single request passes again
	now = now.Add(20 * time.Second)
	req.True(l.Allow("1.2.3.4"))
	req.False(l.Allow("1.2.3.4"))
}

func TestLimiter_ForgetsIdleClients(t *testing.T) {
	req := require.New(t)
	now := time.Unix(1_700_000_000, 0)
	l := New(1, time.Second)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(time.Minute)
	l.Allow("b")

	req.NotContains(l.clients, "a")
	req.Contains(l.clients, "b")
}

func TestLimiter_Middleware(t *testing.T) {
	req := require.New(t)
	l := New(1, time.Hour)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	req.Equal(http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	req.Equal(http.StatusTooManyRequests, rec.Code)
}
