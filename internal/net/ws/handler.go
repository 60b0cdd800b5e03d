package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jwebster45206/questkeeper/internal/logger"
	"github.com/jwebster45206/questkeeper/internal/replication"
	"github.com/jwebster45206/questkeeper/pkg/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 8 * 1024
)

// Game is the authoritative side of a connection. Leave is called once
// for every Join that succeeded.
type Game interface {
	Join(ctx context.Context, playerID uuid.UUID) (*session.Session, error)
	Leave(ctx context.Context, playerID uuid.UUID) error
	Handle(ctx context.Context, playerID uuid.UUID, msg replication.Message) error
}

type HandlerConfig struct {
	Logger *slog.Logger
}

// Handler upgrades HTTP requests to player connections.
type Handler struct {
	hub      *Hub
	game     Game
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, game Game, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		game:     game,
		logger:   logger,
		upgrader: upgrader,
	}
}

// ServeHTTP expects ?player=<uuid>.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID, err := uuid.Parse(r.URL.Query().Get("player"))
	if err != nil || playerID == uuid.Nil {
		http.Error(w, "missing or invalid player id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "player_id", playerID, "error", err)
		return
	}
	log := logger.WithPlayer(h.logger, playerID.String())

	c := h.hub.register(playerID)
	go h.writeLoop(conn, c, log)

	ctx := context.Background()
	if _, err := h.game.Join(ctx, playerID); err != nil {
		log.Error("Join failed", "error", err)
		h.hub.unregister(c)
		return
	}
	log.Info("Player connected")

	h.readLoop(ctx, conn, playerID, log)

	// every successful Join is paired with one Leave; the game keeps the
	// player while a newer connection is still open
	h.hub.unregister(c)
	if err := h.game.Leave(ctx, playerID); err != nil {
		if errors.Is(err, replication.ErrNotJoined) {
			log.Debug("Player already left", "error", err)
		} else {
			log.Error("Leave failed", "error", err)
		}
	}
	log.Info("Player disconnected")
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, playerID uuid.UUID, log *slog.Logger) {
	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("Websocket read failed", "error", err)
			}
			return
		}

		var msg replication.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Debug("Discarding malformed message", "error", err)
			continue
		}
		// errors are already reported to the player
		_ = h.game.Handle(ctx, playerID, msg)
	}
}

// writeLoop owns all writes to conn. It closes conn when c.send closes.
func (h *Handler) writeLoop(conn *websocket.Conn, c *client, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("Websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
