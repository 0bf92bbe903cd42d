package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Notification queue topics. Each topic is an ordered Redis list; consumers
// are external to this service.
const (
	TopicRegistrations = "queue:registrations"
	TopicCancellations = "queue:cancellations"
)

// QueueRepository is the notification queue adapter backed by Redis lists.
type QueueRepository struct {
	client *redis.Client
}

// NewQueueRepository constructs the queue adapter.
func NewQueueRepository(client *redis.Client) *QueueRepository {
	return &QueueRepository{client: client}
}

// Publish appends a message to the named topic list.
func (r *QueueRepository) Publish(ctx context.Context, topic, message string) error {
	if r.client == nil {
		return fmt.Errorf("queue client not configured")
	}
	if err := r.client.RPush(ctx, topic, message).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Depth returns the current number of pending messages in the topic.
func (r *QueueRepository) Depth(ctx context.Context, topic string) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("queue client not configured")
	}
	depth, err := r.client.LLen(ctx, topic).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth for %s: %w", topic, err)
	}
	return depth, nil
}
