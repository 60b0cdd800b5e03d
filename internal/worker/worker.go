package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/questkeeper/internal/services/queue"
)

const (
	workerTimeout = 5 * time.Second
	lockTTL       = 30 * time.Second
)

// Saver persists one player's current state.
type Saver interface {
	SavePlayer(ctx context.Context, playerID uuid.UUID) error
}

// Worker drains the save queue, holding a per-player lock while saving.
type Worker struct {
	id          string
	queue       *queue.SaveQueue
	saver       Saver
	redisClient *redis.Client
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(q *queue.SaveQueue, saver Saver, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       q,
		saver:       saver,
		redisClient: redisClient,
		log:         log.With("worker_id", workerID),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the worker's lock owner id.
func (w *Worker) ID() string {
	return w.id
}

// Start processes save requests until Stop is called.
func (w *Worker) Start() error {
	w.log.Info("Worker starting")

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down")
			return nil
		default:
			if err := w.processNext(); err != nil {
				w.log.Error("Error processing save request", "error", err)
				select {
				case <-w.ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested")
	w.cancel()
}

func (w *Worker) processNext() error {
	playerID, err := w.queue.BlockingDequeue(w.ctx, workerTimeout)
	if err != nil {
		return fmt.Errorf("failed to dequeue save request: %w", err)
	}
	if playerID == uuid.Nil {
		return nil
	}
	return w.process(playerID)
}

func (w *Worker) process(playerID uuid.UUID) error {
	locked, err := w.acquireSaveLock(playerID)
	if err != nil {
		return fmt.Errorf("failed to acquire save lock: %w", err)
	}
	if !locked {
		// Another worker is saving this player; retry later.
		w.log.Debug("Player save already locked, re-queueing", "player_id", playerID)
		if err := w.queue.Enqueue(w.ctx, playerID); err != nil {
			return fmt.Errorf("failed to re-queue save request: %w", err)
		}
		return nil
	}
	defer w.releaseSaveLock(playerID)

	start := time.Now()
	if err := w.saver.SavePlayer(w.ctx, playerID); err != nil {
		return fmt.Errorf("failed to save player %s: %w", playerID, err)
	}
	w.log.Debug("Player saved", "player_id", playerID, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func saveLockKey(playerID uuid.UUID) string {
	return fmt.Sprintf("save-lock:%s", playerID.String())
}

// acquireSaveLock returns false if another worker holds the lock.
func (w *Worker) acquireSaveLock(playerID uuid.UUID) (bool, error) {
	return w.redisClient.SetNX(w.ctx, saveLockKey(playerID), w.id, lockTTL).Result()
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// releaseSaveLock deletes the lock only if this worker still owns it.
func (w *Worker) releaseSaveLock(playerID uuid.UUID) {
	if err := releaseScript.Run(context.Background(), w.redisClient, []string{saveLockKey(playerID)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release save lock", "error", err, "player_id", playerID)
	}
}
