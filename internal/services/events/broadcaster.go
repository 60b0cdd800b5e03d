package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Envelope is what travels over pub/sub. Payload is the already-encoded
// replication message.
type Envelope struct {
	WorldID  string          `json:"world_id"`
	PlayerID string          `json:"player_id,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// Broadcaster publishes replication messages to Redis Pub/Sub for SSE
// observers and other server instances.
type Broadcaster struct {
	redisClient *redis.Client
	worldID     string
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, worldID string, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		worldID:     worldID,
		logger:      logger,
	}
}

// PlayerChannel carries messages addressed to one player.
func PlayerChannel(playerID uuid.UUID) string {
	return fmt.Sprintf("player-events:%s", playerID.String())
}

// WorldChannel carries messages for every observer of a world.
func WorldChannel(worldID string) string {
	return fmt.Sprintf("world-events:%s", worldID)
}

// PublishToPlayer sends msg on the player's private channel.
func (b *Broadcaster) PublishToPlayer(ctx context.Context, playerID uuid.UUID, msg any) error {
	return b.publish(ctx, PlayerChannel(playerID), playerID.String(), msg)
}

// PublishToWorld sends msg to all observers of the world.
func (b *Broadcaster) PublishToWorld(ctx context.Context, msg any) error {
	return b.publish(ctx, WorldChannel(b.worldID), "", msg)
}

// Subscribe opens a subscription to the world channel and, when playerID
// is not nil, that player's channel.
func (b *Broadcaster) Subscribe(ctx context.Context, playerID uuid.UUID) *redis.PubSub {
	channels := []string{WorldChannel(b.worldID)}
	if playerID != uuid.Nil {
		channels = append(channels, PlayerChannel(playerID))
	}
	return b.redisClient.Subscribe(ctx, channels...)
}

func (b *Broadcaster) publish(ctx context.Context, channel, playerID string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "channel", channel)
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data, err := json.Marshal(Envelope{WorldID: b.worldID, PlayerID: playerID, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published", "channel", channel)
	return nil
}
