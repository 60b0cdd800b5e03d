package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/questkeeper/internal/services/queue"
)

type recordingSaver struct {
	mu    sync.Mutex
	saved []uuid.UUID
	err   error
}

func (s *recordingSaver) SavePlayer(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, id)
	return nil
}

func (s *recordingSaver) Saved() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uuid.UUID(nil), s.saved...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setup(t *testing.T) (*queue.SaveQueue, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	client, err := queue.NewClient(context.Background(), rdb, testLogger())
	require.NoError(t, err)
	return queue.NewSaveQueue(client, "w"), rdb, mr
}

func TestWorker_SavesQueuedPlayers(t *testing.T) {
	q, rdb, mr := setup(t)
	saver := &recordingSaver{}
	w := New(q, saver, rdb, testLogger(), "worker-test")

	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	require.NoError(t, q.Enqueue(ctx, a))
	require.NoError(t, q.Enqueue(ctx, b))

	done := make(chan struct{})
	go func() {
		_ = w.Start()
		close(done)
	}()

	require.Eventually(t, func() bool { return len(saver.Saved()) == 2 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []uuid.UUID{a, b}, saver.Saved())

	// locks are released after saving
	assert.False(t, mr.Exists(saveLockKey(a)))

	w.Stop()
	select {
	case <-done:
	case <-time.After(workerTimeout + time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_LockedPlayerIsRequeued(t *testing.T) {
	q, rdb, mr := setup(t)
	saver := &recordingSaver{}
	w := New(q, saver, rdb, testLogger(), "worker-a")
	id := uuid.New()

	require.NoError(t, mr.Set(saveLockKey(id), "worker-b"))
	require.NoError(t, w.process(id))

	assert.Empty(t, saver.Saved())
	depth, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	// the other worker's lock is untouched
	got, err := mr.Get(saveLockKey(id))
	require.NoError(t, err)
	assert.Equal(t, "worker-b", got)
}

func TestWorker_ReleaseOnlyOwnLock(t *testing.T) {
	q, rdb, mr := setup(t)
	w := New(q, &recordingSaver{}, rdb, testLogger(), "worker-a")
	id := uuid.New()

	require.NoError(t, mr.Set(saveLockKey(id), "worker-b"))
	w.releaseSaveLock(id)
	assert.True(t, mr.Exists(saveLockKey(id)))

	locked, err := w.acquireSaveLock(uuid.New())
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestWorker_SaveErrorReleasesLock(t *testing.T) {
	q, rdb, mr := setup(t)
	saver := &recordingSaver{err: errors.New("disk full")}
	w := New(q, saver, rdb, testLogger(), "worker-a")
	id := uuid.New()

	err := w.process(id)
	assert.Error(t, err)
	assert.False(t, mr.Exists(saveLockKey(id)))
}

func TestWorker_GeneratesID(t *testing.T) {
	q, rdb, _ := setup(t)
	w := New(q, &recordingSaver{}, rdb, testLogger(), "")
	assert.Contains(t, w.ID(), "worker-")
}

type memQueue struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (m *memQueue) Enqueue(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, id)
	return nil
}

func (m *memQueue) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids)
}

func TestScheduler_Tick(t *testing.T) {
	q := &memQueue{}
	online := []uuid.UUID{uuid.New(), uuid.New()}
	s := NewScheduler(time.Minute, func() []uuid.UUID { return online }, q, testLogger())

	s.Tick(context.Background())
	assert.Equal(t, online, q.ids)
}

func TestScheduler_Run(t *testing.T) {
	q := &memQueue{}
	s := NewScheduler(10*time.Millisecond, func() []uuid.UUID { return []uuid.UUID{uuid.New()} }, q, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, func() bool { return q.Len() >= 2 }, time.Second, 5*time.Millisecond)
}
