package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const saveQueueKey = "save-requests"

// SaveQueue is a FIFO of player ids waiting to be persisted.
type SaveQueue struct {
	client *Client
	key    string
}

// NewSaveQueue scopes the queue to worldID.
func NewSaveQueue(client *Client, worldID string) *SaveQueue {
	return &SaveQueue{
		client: client,
		key:    fmt.Sprintf("%s:%s", saveQueueKey, worldID),
	}
}

// Enqueue appends playerID to the queue.
func (q *SaveQueue) Enqueue(ctx context.Context, playerID uuid.UUID) error {
	if err := q.client.rdb.RPush(ctx, q.key, playerID.String()).Err(); err != nil {
		q.client.logger.Error("Failed to enqueue save request", "error", err, "player_id", playerID)
		return fmt.Errorf("failed to enqueue save request: %w", err)
	}
	return nil
}

// BlockingDequeue waits up to timeout for the next player id. It returns
// uuid.Nil with a nil error on timeout or cancellation.
func (q *SaveQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("failed to dequeue save request: %w", err)
	}
	// result[0] is the key, result[1] the value
	id, err := uuid.Parse(result[1])
	if err != nil {
		q.client.logger.Warn("Dropping malformed save request", "value", result[1])
		return uuid.Nil, nil
	}
	return id, nil
}

// Depth returns the number of pending save requests.
func (q *SaveQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}
