package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/questkeeper/pkg/save"
	"github.com/jwebster45206/questkeeper/pkg/storage"
)

const saveKeyPrefix = "savegame:"

// RedisStorage keeps one JSON save record per player under savegame:<id>.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage wraps client. A zero ttl keeps records forever.
func NewRedisStorage(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStorage {
	return &RedisStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

func saveKey(id uuid.UUID) string {
	return saveKeyPrefix + id.String()
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		err := r.Ping(ctx)
		if err == nil {
			r.logger.Info("Redis connection established")
			return nil
		}
		r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
		case <-time.After(retryDelay):
		}
	}
	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func (r *RedisStorage) SaveRecord(ctx context.Context, id uuid.UUID, rec *save.Record) error {
	data, err := save.Encode(rec)
	if err != nil {
		r.logger.Error("Failed to encode save record", "player_id", id, "error", err)
		return err
	}
	if err := r.client.Set(ctx, saveKey(id), data, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save record", "player_id", id, "error", err)
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadRecord(ctx context.Context, id uuid.UUID) (*save.Record, error) {
	data, err := r.client.Get(ctx, saveKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Save record not found", "player_id", id)
			return nil, nil
		}
		r.logger.Error("Failed to load save record", "player_id", id, "error", err)
		return nil, fmt.Errorf("failed to load save record: %w", err)
	}
	rec, err := save.Decode(data)
	if err != nil {
		r.logger.Error("Failed to decode save record", "player_id", id, "error", err)
		return nil, err
	}
	return rec, nil
}

func (r *RedisStorage) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, saveKey(id)).Err(); err != nil {
		r.logger.Error("Failed to delete save record", "player_id", id, "error", err)
		return fmt.Errorf("failed to delete save record: %w", err)
	}
	return nil
}
