// Package events carries stage-change notifications out of the engine.
//
// The engine only emits semantic "stage changed" events after a committed
// transition; notification fan-out and user-preference filtering belong to
// the consumer on the other side of the channel.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel stage changes are published on.
const Channel = "EVENT_STAGE_CHANGED"

// Entity type values for StageChanged.
const (
	EntityApplication = "application"
	EntityJob         = "job"
)

// StageChanged is emitted after every successful transition on either
// machine.
type StageChanged struct {
	EntityType string    `json:"entityType"`
	EntityID   uuid.UUID `json:"entityId"`
	FromStage  string    `json:"fromStage"`
	ToStage    string    `json:"toStage"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers stage-change events to the outside world.
type Publisher interface {
	StageChanged(ctx context.Context, ev StageChanged) error
}

// RedisPublisher publishes events as JSON on a Redis channel.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher returns a Publisher backed by the given client.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// StageChanged implements Publisher.
func (p *RedisPublisher) StageChanged(ctx context.Context, ev StageChanged) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stage change: %w", err)
	}
	if err := p.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", Channel, err)
	}
	return nil
}

// Nop discards events. Used when no sink is configured and in tests.
type Nop struct{}

// StageChanged implements Publisher.
func (Nop) StageChanged(context.Context, StageChanged) error { return nil }
