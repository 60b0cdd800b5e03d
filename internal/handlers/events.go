package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/questkeeper/internal/replication"
	"github.com/jwebster45206/questkeeper/internal/services/events"
)

const keepaliveInterval = 30 * time.Second

// EventsHandler streams a player's replication messages as Server-Sent
// Events. Each message type becomes the SSE event name.
type EventsHandler struct {
	broadcaster *events.Broadcaster
	logger      *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(broadcaster *events.Broadcaster, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// ServeHTTP handles SSE requests
// GET /v1/events/{playerID}
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.logger.Warn("Method not allowed for events endpoint",
			"method", r.Method,
			"path", r.URL.Path)
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) != 3 || pathParts[0] != "v1" || pathParts[1] != "events" {
		h.writeError(w, http.StatusBadRequest, "Invalid path. Expected /v1/events/{playerID}")
		return
	}
	playerID, err := uuid.Parse(pathParts[2])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid player ID format.")
		return
	}

	h.logger.Info("SSE connection established",
		"player_id", playerID.String(),
		"remote_addr", r.RemoteAddr)

	pubsub := h.broadcaster.Subscribe(r.Context(), playerID)
	defer func() {
		if err := pubsub.Close(); err != nil {
			h.logger.Error("Failed to close pubsub", "error", err)
		}
	}()
	// Wait for the subscription so nothing published after the connected
	// event is missed.
	if _, err := pubsub.Receive(r.Context()); err != nil {
		h.logger.Error("Failed to subscribe", "player_id", playerID.String(), "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "Event stream unavailable.")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	msgChan := pubsub.Channel()

	keepaliveTicker := time.NewTicker(keepaliveInterval)
	defer keepaliveTicker.Stop()

	h.sendSSE(w, "connected", json.RawMessage(fmt.Sprintf(`{"player_id":%q}`, playerID.String())))

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected",
				"player_id", playerID.String())
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			var env events.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Error("Failed to unmarshal envelope", "error", err, "payload", msg.Payload)
				continue
			}
			var m replication.Message
			if err := json.Unmarshal(env.Payload, &m); err != nil {
				h.logger.Error("Failed to unmarshal message", "error", err)
				continue
			}
			data := m.Payload
			if len(data) == 0 {
				data = json.RawMessage("null")
			}
			h.sendSSE(w, string(m.Type), data)

		case <-keepaliveTicker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				h.logger.Error("Failed to write keepalive", "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// sendSSE writes one event. data must already be JSON.
func (h *EventsHandler) sendSSE(w http.ResponseWriter, eventType string, data json.RawMessage) {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		h.logger.Error("Failed to write event type", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", string(data)); err != nil {
		h.logger.Error("Failed to write event data", "error", err)
		return
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (h *EventsHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
