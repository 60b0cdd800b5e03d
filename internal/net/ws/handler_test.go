package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/questkeeper/internal/replication"
	"github.com/jwebster45206/questkeeper/pkg/catalog"
	"github.com/jwebster45206/questkeeper/pkg/inventory"
	"github.com/jwebster45206/questkeeper/pkg/quest"
	"github.com/jwebster45206/questkeeper/pkg/session"
	"github.com/jwebster45206/questkeeper/pkg/storage"
	"github.com/jwebster45206/questkeeper/pkg/world"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoGame pushes a hotbar message on join and echoes requests back.
type echoGame struct {
	hub     *Hub
	mu      sync.Mutex
	joined  []uuid.UUID
	left    []uuid.UUID
	handled []replication.MessageType
	joinErr error
}

func (g *echoGame) Join(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	if g.joinErr != nil {
		return nil, g.joinErr
	}
	g.mu.Lock()
	g.joined = append(g.joined, id)
	g.mu.Unlock()
	g.hub.SendTo(id, replication.Message{Type: replication.MsgHotbar})
	return nil, nil
}

func (g *echoGame) Leave(ctx context.Context, id uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.left = append(g.left, id)
	return nil
}

func (g *echoGame) Handle(ctx context.Context, id uuid.UUID, msg replication.Message) error {
	g.mu.Lock()
	g.handled = append(g.handled, msg.Type)
	g.mu.Unlock()
	g.hub.SendTo(id, msg)
	return nil
}

func (g *echoGame) leftCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.left)
}

func websocketURL(t *testing.T, base string, playerID string) string {
	t.Helper()
	u, err := url.Parse(base)
	require.NoError(t, err)
	u.Scheme = "ws"
	q := u.Query()
	q.Set("player", playerID)
	u.RawQuery = q.Encode()
	return u.String()
}

func dial(t *testing.T, srvURL string, playerID uuid.UUID) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srvURL, playerID.String()), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) replication.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg replication.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func readUntil(t *testing.T, conn *websocket.Conn, typ replication.MessageType) replication.Message {
	t.Helper()
	for {
		msg := readMessage(t, conn)
		if msg.Type == typ {
			return msg
		}
	}
}

func TestHandlerRejectsMissingPlayer(t *testing.T) {
	hub := NewHub(testLogger())
	srv := httptest.NewServer(NewHandler(hub, &echoGame{hub: hub}, HandlerConfig{Logger: testLogger()}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?player=nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerJoinEchoLeave(t *testing.T) {
	hub := NewHub(testLogger())
	game := &echoGame{hub: hub}
	srv := httptest.NewServer(NewHandler(hub, game, HandlerConfig{Logger: testLogger()}))
	defer srv.Close()

	id := uuid.New()
	conn := dial(t, srv.URL, id)
	assert.Equal(t, replication.MsgHotbar, readMessage(t, conn).Type)
	assert.True(t, hub.Connected(id))

	req, err := replication.NewMessage(replication.MsgInteract, replication.InteractRequest{NPCID: "guard"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))
	assert.Equal(t, replication.MsgInteract, readMessage(t, conn).Type)

	// malformed frames are skipped
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	require.NoError(t, conn.WriteJSON(replication.Message{Type: replication.MsgSave}))
	assert.Equal(t, replication.MsgSave, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return game.leftCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, hub.Connected(id))
}

func TestHandlerJoinFailureClosesConnection(t *testing.T) {
	hub := NewHub(testLogger())
	game := &echoGame{hub: hub, joinErr: errors.New("storage down")}
	srv := httptest.NewServer(NewHandler(hub, game, HandlerConfig{Logger: testLogger()}))
	defer srv.Close()

	conn := dial(t, srv.URL, uuid.New())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Len())
}

func TestReconnectLeavesOncePerConnection(t *testing.T) {
	hub := NewHub(testLogger())
	game := &echoGame{hub: hub}
	srv := httptest.NewServer(NewHandler(hub, game, HandlerConfig{Logger: testLogger()}))
	defer srv.Close()

	id := uuid.New()
	first := dial(t, srv.URL, id)
	readMessage(t, first)
	second := dial(t, srv.URL, id)
	readMessage(t, second)

	// the first connection is closed by the server
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
	require.Eventually(t, func() bool { return game.leftCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, hub.Connected(id))
}

func TestHubCloseAll(t *testing.T) {
	hub := NewHub(testLogger())
	game := &echoGame{hub: hub}
	srv := httptest.NewServer(NewHandler(hub, game, HandlerConfig{Logger: testLogger()}))
	defer srv.Close()

	conn := dial(t, srv.URL, uuid.New())
	readMessage(t, conn)
	hub.CloseAll()
	assert.Equal(t, 0, hub.Len())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	require.Eventually(t, func() bool { return game.leftCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.NotPanics(t, func() { hub.Broadcast(replication.Message{Type: replication.MsgSpawned}) })
}

func TestHubSendIsNonBlocking(t *testing.T) {
	hub := NewHub(testLogger())
	id := uuid.New()
	c := hub.register(id)

	for i := 0; i < sendBuffer+10; i++ {
		hub.SendTo(id, replication.Message{Type: replication.MsgInventory})
	}
	assert.Len(t, c.send, sendBuffer)

	hub.SendTo(uuid.New(), replication.Message{Type: replication.MsgInventory})
	assert.True(t, hub.unregister(c))
	assert.False(t, hub.unregister(c))
}

func TestEndToEndWithReplicationServer(t *testing.T) {
	cat, err := catalog.New(catalog.Template{ID: 1, Name: "Gold"})
	require.NoError(t, err)
	reg, err := quest.NewRegistry()
	require.NoError(t, err)
	chests, err := world.NewChests([]world.Chest{{ID: "c", Loot: []inventory.Stack{{ItemID: 1, Quantity: 5}}}}, nil)
	require.NoError(t, err)

	hub := NewHub(testLogger())
	store := storage.NewMockStorage()
	game, err := replication.NewServer(replication.Config{
		InventorySlots: 4,
		HotbarSlots:    2,
		GoldItemID:     1,
		Catalog:        cat,
		Quests:         reg,
		Chests:         chests,
		Storage:        store,
		Transport:      hub,
		Logger:         testLogger(),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(NewHandler(hub, game, HandlerConfig{Logger: testLogger()}))
	defer srv.Close()

	id := uuid.New()
	conn := dial(t, srv.URL, id)
	readUntil(t, conn, replication.MsgQuestLog)

	req, err := replication.NewMessage(replication.MsgOpenChest, replication.OpenChestRequest{ChestID: "c"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))
	var spawned replication.SpawnedPayload
	require.NoError(t, readUntil(t, conn, replication.MsgSpawned).Decode(&spawned))
	readUntil(t, conn, replication.MsgChestState)

	req, err = replication.NewMessage(replication.MsgPickup, replication.PickupRequest{ItemID: spawned.Item.ID})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))

	var inv replication.InventoryPayload
	require.NoError(t, readUntil(t, conn, replication.MsgInventory).Decode(&inv))
	assert.Equal(t, []int{1}, inv.ItemIDs)
	assert.Equal(t, []int{5}, inv.Quantities)

	var shown replication.PickupShownPayload
	require.NoError(t, readUntil(t, conn, replication.MsgPickupShown).Decode(&shown))
	assert.Equal(t, "Gold", shown.ItemName)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return len(game.Online()) == 0 }, 2*time.Second, 10*time.Millisecond)

	rec, err := store.LoadRecord(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []inventory.Entry{{ItemID: 1, SlotIndex: 0, Quantity: 5}}, rec.Inventory)
}
