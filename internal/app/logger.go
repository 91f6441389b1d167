package app

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a slog.Logger with formatting + level based on config
// prod JSON logs at INFO level
// others Text logs at DEBUG level
// LOG_LEVEL overrides the level either way
func NewLogger(cfg Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg Config) *slog.Logger {
	level := slog.LevelDebug
	if cfg.Env == "prod" {
		level = slog.LevelInfo
	}
	if cfg.LogLevel != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err == nil {
			level = l
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Env == "prod" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
