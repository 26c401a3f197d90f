package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"troc-marketplace/services/listing/internal/entity"

	"github.com/redis/go-redis/v9"
)

type NotificationPublisher interface {
	Publish(ctx context.Context, draftID string, n entity.Notification) error
}

func NotificationChannel(draftID string) string {
	return fmt.Sprintf("drafts:%s:notifications", draftID)
}

// RedisNotificationPublisher broadcasts draft notifications over redis pub/sub
// for websocket subscribers.
type RedisNotificationPublisher struct {
	redisClient *redis.Client
}

func NewRedisNotificationPublisher(redisClient *redis.Client) *RedisNotificationPublisher {
	return &RedisNotificationPublisher{redisClient: redisClient}
}

func (p *RedisNotificationPublisher) Publish(ctx context.Context, draftID string, n entity.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return p.redisClient.Publish(ctx, NotificationChannel(draftID), payload).Err()
}
