package replication

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/questkeeper/internal/services/events"
)

func TestFanout(t *testing.T) {
	a, b := &recordingTransport{}, &recordingTransport{}
	f := Fanout{a, b}
	id := uuid.New()
	f.SendTo(id, Message{Type: MsgInventory})
	f.Broadcast(Message{Type: MsgSpawned})

	for _, tr := range []*recordingTransport{a, b} {
		assert.Len(t, tr.to(id, MsgInventory), 1)
		assert.Len(t, tr.broadcasts(MsgSpawned), 1)
	}
}

func TestPubSubMirrorsMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := events.NewBroadcaster(client, "w", logger)

	ctx := context.Background()
	player := uuid.New()
	sub := b.Subscribe(ctx, player)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewPubSub(b, 8, logger)
	msg, err := NewMessage(MsgChestState, ChestStatePayload{ChestID: "c", Opened: true})
	require.NoError(t, err)
	p.Broadcast(msg)
	p.SendTo(player, Message{Type: MsgHotbar})
	p.Close()

	var types []MessageType
	for range 2 {
		rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		raw, err := sub.ReceiveMessage(rctx)
		cancel()
		require.NoError(t, err)
		var env events.Envelope
		require.NoError(t, json.Unmarshal([]byte(raw.Payload), &env))
		var got Message
		require.NoError(t, json.Unmarshal(env.Payload, &got))
		types = append(types, got.Type)
	}
	assert.ElementsMatch(t, []MessageType{MsgChestState, MsgHotbar}, types)
}

func TestPubSubDropsWhenFull(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p := &PubSub{
		broadcaster: events.NewBroadcaster(client, "w", logger),
		logger:      logger,
		queue:       make(chan outbound, 1),
		done:        make(chan struct{}),
	}
	// not started: the second message cannot be buffered
	p.Broadcast(Message{Type: MsgSpawned})
	p.Broadcast(Message{Type: MsgSpawned})
	assert.Len(t, p.queue, 1)
}

func TestPubSubDropsAfterClose(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p := NewPubSub(events.NewBroadcaster(client, "w", logger), 8, logger)
	p.Close()
	assert.NotPanics(t, func() {
		p.SendTo(uuid.New(), Message{Type: MsgInventory})
		p.Broadcast(Message{Type: MsgSpawned})
		p.Close()
	})
	assert.Empty(t, p.queue)
}

func TestMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(MsgInventory, inventoryPayload(4, nil))
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"inventory","payload":{"capacity":4,"item_ids":[],"slot_indexes":[],"quantities":[]}}`, string(data))

	empty, err := NewMessage(MsgSave, nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Payload)
	assert.NoError(t, empty.Decode(&struct{}{}))
}
