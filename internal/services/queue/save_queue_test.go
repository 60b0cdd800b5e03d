package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	// Start miniredis
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	client, err := NewClient(context.Background(), rdb, logger)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create queue client: %v", err)
	}

	return client, mr
}

func TestSaveQueue_FIFO(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewSaveQueue(client, "world-1")
	ctx := context.Background()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, q.Enqueue(ctx, id))
	}

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)

	for _, want := range ids {
		got, err := q.BlockingDequeue(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	depth, err = q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestSaveQueue_Timeout(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewSaveQueue(client, "world-1")
	got, err := q.BlockingDequeue(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, got)
}

func TestSaveQueue_MalformedEntrySkipped(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewSaveQueue(client, "world-1")
	_, err := mr.Push("save-requests:world-1", "not-a-uuid")
	require.NoError(t, err)

	got, err := q.BlockingDequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, got)
}

func TestSaveQueue_WorldsAreSeparate(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	a := NewSaveQueue(client, "a")
	b := NewSaveQueue(client, "b")
	require.NoError(t, a.Enqueue(ctx, uuid.New()))

	depth, err := b.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	_, err := NewClient(context.Background(), rdb, logger)
	assert.Error(t, err)
}
