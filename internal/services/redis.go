package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from a redis:// URL or a bare host:port.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if !strings.Contains(redisURL, "://") {
		return redis.NewClient(&redis.Options{Addr: redisURL}), nil
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return redis.NewClient(opt), nil
}

// RedisService owns the shared redis connection.
type RedisService struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisService wraps an existing client.
func NewRedisService(client *redis.Client, logger *slog.Logger) *RedisService {
	return &RedisService{
		client: client,
		logger: logger,
	}
}

// Client returns the underlying Redis client for direct operations
func (r *RedisService) Client() *redis.Client {
	return r.client
}

func (r *RedisService) Ping(ctx context.Context) error {
	cmd := r.client.Ping(ctx)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	r.logger.Debug("Redis ping successful", "result", cmd.Val())
	return nil
}

func (r *RedisService) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisService) WaitForConnection(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// ChestClaimer records opened chests in redis so that servers sharing a
// world agree on a single opener.
type ChestClaimer struct {
	client  *redis.Client
	worldID string
	logger  *slog.Logger
}

// NewChestClaimer scopes claims to worldID.
func NewChestClaimer(client *redis.Client, worldID string, logger *slog.Logger) *ChestClaimer {
	return &ChestClaimer{
		client:  client,
		worldID: worldID,
		logger:  logger,
	}
}

func (c *ChestClaimer) key(chestID string) string {
	return fmt.Sprintf("chest-claim:%s:%s", c.worldID, chestID)
}

// Claim reports whether this call was the first to open chestID.
func (c *ChestClaimer) Claim(ctx context.Context, chestID string) (bool, error) {
	won, err := c.client.SetNX(ctx, c.key(chestID), time.Now().UTC().Format(time.RFC3339), 0).Result()
	if err != nil {
		c.logger.Error("Chest claim failed", "chest_id", chestID, "error", err)
		return false, fmt.Errorf("chest claim failed: %w", err)
	}
	c.logger.Debug("Chest claim", "chest_id", chestID, "won", won)
	return won, nil
}

// Claimed lists the chest ids already claimed in this world.
func (c *ChestClaimer) Claimed(ctx context.Context) ([]string, error) {
	prefix := c.key("")
	var ids []string
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan chest claims: %w", err)
	}
	return ids, nil
}
