package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Enqueuer accepts save requests.
type Enqueuer interface {
	Enqueue(ctx context.Context, playerID uuid.UUID) error
}

// Scheduler enqueues every online player on a fixed interval.
type Scheduler struct {
	interval time.Duration
	online   func() []uuid.UUID
	queue    Enqueuer
	log      *slog.Logger
}

// NewScheduler builds a scheduler. online is called on every tick.
func NewScheduler(interval time.Duration, online func() []uuid.UUID, q Enqueuer, log *slog.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		online:   online,
		queue:    q,
		log:      log,
	}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick enqueues all online players once.
func (s *Scheduler) Tick(ctx context.Context) {
	ids := s.online()
	for _, id := range ids {
		if err := s.queue.Enqueue(ctx, id); err != nil {
			s.log.Error("Failed to schedule autosave", "player_id", id, "error", err)
		}
	}
	if len(ids) > 0 {
		s.log.Debug("Autosave scheduled", "players", len(ids))
	}
}
