package app

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("APP_ENV", "dev")

	cfg, err := LoadConfig()

	req.NoError(err)
	req.Equal(":5001", cfg.HTTPAddr)
	req.Equal([]string{"http://localhost:3000"}, cfg.CORSAllow)
	req.Equal([]string{"*"}, cfg.WSOrigins)
	req.Equal(24*time.Hour, cfg.TokenTTL)
	req.Equal(10*time.Second, cfg.ExecTimeout)
	req.Equal(30, cfg.RateLimit)
	req.Equal(256, cfg.WSSendBuffer)
}

func TestLoadConfig_Overrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("CORS_ALLOW", " https://a.example , ,https://b.example")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("WS_PING_INTERVAL", "5s")

	cfg, err := LoadConfig()

	req.NoError(err)
	req.Equal("prod", cfg.Env)
	req.Equal([]string{"https://a.example", "https://b.example"}, cfg.CORSAllow)
	req.Equal(3, cfg.RedisDB)
	req.Equal(5*time.Second, cfg.WSPingInterval)
}

func TestLoadConfig_Invalid(t *testing.T) {
	req := require.New(t)
	t.Setenv("APP_ENV", "staging")

	_, err := LoadConfig()

	req.Error(err)
}

func TestNewLogger_Levels(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	var buf bytes.Buffer

	prod := newLogger(&buf, Config{Env: "prod"})
	req.False(prod.Enabled(ctx, slog.LevelDebug))
	prod.Info("server.listening", "addr", ":5001")
	req.Contains(buf.String(), `"msg":"server.listening"`)

	dev := newLogger(&buf, Config{Env: "dev"})
	req.True(dev.Enabled(ctx, slog.LevelDebug))

	quiet := newLogger(&buf, Config{Env: "dev", LogLevel: "warn"})
	req.False(quiet.Enabled(ctx, slog.LevelInfo))
}
