package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lorancew-l/proto-testing-sub000/internal/model"
)

// PendingCache mirrors the undelivered telemetry events of a session,
// so operators can inspect a respondent stuck on a delivery failure.
type PendingCache interface {
	Replace(ctx context.Context, sessionID string, events []model.PendingEvent) error
	List(ctx context.Context, sessionID string) ([]model.PendingEvent, error)
}

type pendingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPendingCache creates a pending event mirror whose lists expire after ttl
func NewPendingCache(client *redis.Client, ttl time.Duration) PendingCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &pendingCache{
		client: client,
		ttl:    ttl,
	}
}

func pendingKey(sessionID string) string {
	return fmt.Sprintf("session:%s:pending", sessionID)
}

// Replace overwrites the mirrored list; an empty slice removes it
func (c *pendingCache) Replace(ctx context.Context, sessionID string, events []model.PendingEvent) error {
	key := pendingKey(sessionID)
	if len(events) == 0 {
		return c.client.Del(ctx, key).Err()
	}

	values := make([]interface{}, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal pending event %s: %w", ev.ID, err)
		}
		values = append(values, data)
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, values...)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	return err
}

func (c *pendingCache) List(ctx context.Context, sessionID string) ([]model.PendingEvent, error) {
	items, err := c.client.LRange(ctx, pendingKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]model.PendingEvent, 0, len(items))
	for _, item := range items {
		var ev model.PendingEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("decode pending event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}
