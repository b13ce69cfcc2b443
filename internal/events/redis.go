package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"dvr/internal/config"
)

// RedisSink publishes events as JSON on a Redis pub/sub channel so other
// processes can follow recording activity.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink connects to the configured Redis server. It returns nil, nil
// when no address is configured.
func NewRedisSink(ctx context.Context, cfg config.Events) (*RedisSink, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisSink{client: client, channel: cfg.RedisChannel}, nil
}

// Name implements Sink.
func (r *RedisSink) Name() string { return "redis" }

// Deliver implements Sink.
func (r *RedisSink) Deliver(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return r.client.Publish(ctx, r.channel, body).Err()
}

// Close releases the Redis connection pool.
func (r *RedisSink) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
