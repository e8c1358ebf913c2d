package ws

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/english-mastery/backend/logger"
	"github.com/english-mastery/backend/services"
)

// RedisStatusBus publishes status updates on a redis channel so every API
// instance can deliver them to its own websocket clients.
type RedisStatusBus struct {
	rdb     *goredis.Client
	channel string
	log     *logger.Logger
}

func NewRedisStatusBus(rdb *goredis.Client, channel string, log *logger.Logger) *RedisStatusBus {
	return &RedisStatusBus{rdb: rdb, channel: channel, log: log.With("component", "RedisStatusBus")}
}

func (b *RedisStatusBus) NotifyMaterialStatus(ctx context.Context, update services.MaterialStatusUpdate) error {
	raw, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Run subscribes and hands every update to deliver until ctx is done.
func (b *RedisStatusBus) Run(ctx context.Context, deliver func(services.MaterialStatusUpdate)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	b.log.Info("status bus subscribed", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok || m == nil {
				return nil
			}
			var update services.MaterialStatusUpdate
			if err := json.Unmarshal([]byte(m.Payload), &update); err != nil {
				b.log.Warn("bad status payload", "error", err)
				continue
			}
			deliver(update)
		}
	}
}
