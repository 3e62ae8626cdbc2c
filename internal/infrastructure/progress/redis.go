package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"MediaMonitor/internal/config"
	"MediaMonitor/internal/domain"
)

const (
	defaultChannel   = "mediamonitor:progress"
	defaultStatusTTL = 24 * time.Hour
	statusKeyPrefix  = "mediamonitor:execution:"
)

// RedisSink stores the latest event per execution and publishes every event.
type RedisSink struct {
	client  *redis.Client
	channel string
	ttl     time.Duration
}

// NewRedisSink connects to Redis and verifies it with PING.
func NewRedisSink(cfg config.RedisConfig) (*RedisSink, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	if cfg.Channel == "" {
		cfg.Channel = defaultChannel
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = defaultStatusTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisSink{client: client, channel: cfg.Channel, ttl: cfg.StatusTTL}, nil
}

// StatusKey is where the latest event of an execution is stored.
func StatusKey(executionID string) string {
	return statusKeyPrefix + executionID
}

// Publish writes the status key and publishes the event in one pipeline.
func (s *RedisSink) Publish(ctx context.Context, event domain.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, StatusKey(event.ExecutionID), payload, s.ttl)
		p.Publish(ctx, s.channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish progress: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
