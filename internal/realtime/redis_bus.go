package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBus publishes changes on a Redis channel and forwards everything
// received on it to the local hub, so every server instance sees every
// change.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	log     *slog.Logger
	pubsub  *redis.PubSub
}

func NewRedisBus(rdb *redis.Client, channel string, hub *Hub, log *slog.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, channel: channel, hub: hub, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

// Start subscribes to the channel and forwards messages until ctx is done.
func (b *RedisBus) Start(ctx context.Context) error {
	b.pubsub = b.rdb.Subscribe(ctx, b.channel)

	// Wait for confirmation that subscription is created
	if _, err := b.pubsub.Receive(ctx); err != nil {
		_ = b.pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.log.Info("subscribed to change channel", "channel", b.channel)

	go b.listen(ctx)
	return nil
}

func (b *RedisBus) listen(ctx context.Context) {
	ch := b.pubsub.Channel()
	defer b.pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("stopping change subscriber", "channel", b.channel)
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				b.log.Warn("failed to parse change", "err", err)
				continue
			}
			_ = b.hub.Publish(ctx, c)
		}
	}
}
