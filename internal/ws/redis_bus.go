package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// BusMessage is a content change crossing server instances
type BusMessage struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
	Origin  string `json:"origin"` // publishing instance id
}

// Bus relays room content changes between instances
type Bus interface {
	Publish(ctx context.Context, m BusMessage) error
	Subscribe(ctx context.Context, fn func(BusMessage))
}

type RedisBus struct {
	rdb *redis.Client
	log *slog.Logger
}

// NewRedisBus wraps an already connected redis client
func NewRedisBus(rdb *redis.Client, log *slog.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, log: log}
}

// Publish sends a message to the redis channel for a room
func (b *RedisBus) Publish(ctx context.Context, m BusMessage) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channel(m.RoomID), raw).Err()
}

// Subscribe listens to all room channels and invokes fn for each message
func (b *RedisBus) Subscribe(ctx context.Context, fn func(BusMessage)) {
	pubsub := b.rdb.PSubscribe(ctx, channel("*"))
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			_ = pubsub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var bm BusMessage
			if err := json.Unmarshal([]byte(msg.Payload), &bm); err != nil {
				b.log.Warn("bus.decode", "channel", msg.Channel, "err", err)
				continue
			}
			if bm.RoomID != "" {
				fn(bm)
			}
		}
	}
}

// channel namespacing for room pub/sub
func channel(roomID string) string { return "room:" + roomID }
