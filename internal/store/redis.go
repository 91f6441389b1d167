package store

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"realtime-collab/internal/app"
)

// NewRedis connects to redis and verifies connectivity
func NewRedis(ctx context.Context, cfg app.Config, log *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	log.Info("redis.connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return rdb, nil
}
