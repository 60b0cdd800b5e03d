package events

import (
	"context"
	"encoding/json"
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

type testMessage struct {
	Type   string `json:"type"`
	ItemID int    `json:"item_id"`
}

func setupBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewBroadcaster(client, "world-1", logger)
}

func receive(t *testing.T, sub *redis.PubSub) Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
	return env
}

func TestBroadcaster_PlayerAndWorldChannels(t *testing.T) {
	b := setupBroadcaster(t)
	ctx := context.Background()
	player := uuid.New()

	sub := b.Subscribe(ctx, player)
	defer sub.Close()
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	require.NoError(t, b.PublishToPlayer(ctx, player, testMessage{Type: "inventory", ItemID: 3}))
	env := receive(t, sub)
	assert.Equal(t, "world-1", env.WorldID)
	assert.Equal(t, player.String(), env.PlayerID)
	var got testMessage
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, testMessage{Type: "inventory", ItemID: 3}, got)

	require.NoError(t, b.PublishToWorld(ctx, testMessage{Type: "spawned", ItemID: 9}))
	env = receive(t, sub)
	assert.Empty(t, env.PlayerID)
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, "spawned", got.Type)
}

func TestBroadcaster_OtherPlayersDoNotReceive(t *testing.T) {
	b := setupBroadcaster(t)
	ctx := context.Background()

	sub := b.Subscribe(ctx, uuid.New())
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, b.PublishToPlayer(ctx, uuid.New(), testMessage{Type: "inventory"}))
	require.NoError(t, b.PublishToWorld(ctx, testMessage{Type: "chest_state"}))

	env := receive(t, sub)
	var got testMessage
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, "chest_state", got.Type)
}

func TestBroadcaster_MarshalError(t *testing.T) {
	b := setupBroadcaster(t)
	err := b.PublishToWorld(context.Background(), map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestChannels(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	assert.Equal(t, "player-events:00000000-0000-0000-0000-000000000001", PlayerChannel(id))
	assert.Equal(t, "world-events:w", WorldChannel("w"))
}
