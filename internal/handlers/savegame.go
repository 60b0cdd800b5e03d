package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/questkeeper/pkg/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// OnlineLister reports connected players. Their records cannot be deleted
// while the session would write them back on the next save.
type OnlineLister interface {
	Online() []uuid.UUID
}

type SaveGameHandler struct {
	storage storage.Storage
	online  OnlineLister
	logger  *slog.Logger
}

// NewSaveGameHandler exposes stored save records. online may be nil.
func NewSaveGameHandler(storage storage.Storage, online OnlineLister, logger *slog.Logger) *SaveGameHandler {
	return &SaveGameHandler{
		storage: storage,
		online:  online,
		logger:  logger,
	}
}

// ServeHTTP handles save record operations
// Routes:
// GET /v1/savegame/{id}    - Read the player's save record
// DELETE /v1/savegame/{id} - Delete the player's save record
func (h *SaveGameHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	idStr := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/savegame"), "/")
	if idStr == "" {
		h.writeError(w, http.StatusBadRequest, "Player ID is required")
		return
	}
	playerID, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Warn("Invalid player ID", "id", idStr, "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid player ID format")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleRead(w, r, playerID)
	case http.MethodDelete:
		h.handleDelete(w, r, playerID)
	default:
		h.logger.Warn("Method not allowed for savegame endpoint", "method", r.Method)
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
	}
}

func (h *SaveGameHandler) handleRead(w http.ResponseWriter, r *http.Request, playerID uuid.UUID) {
	record, err := h.storage.LoadRecord(r.Context(), playerID)
	if err != nil {
		h.logger.Error("Failed to load save record", "player_id", playerID.String(), "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load save record")
		return
	}
	if record == nil {
		h.writeError(w, http.StatusNotFound, "Save record not found")
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(record); err != nil {
		h.logger.Error("Failed to encode save record", "error", err)
	}
}

func (h *SaveGameHandler) handleDelete(w http.ResponseWriter, r *http.Request, playerID uuid.UUID) {
	if h.online != nil {
		for _, id := range h.online.Online() {
			if id == playerID {
				h.writeError(w, http.StatusConflict, "Player is online")
				return
			}
		}
	}

	if err := h.storage.DeleteRecord(r.Context(), playerID); err != nil {
		h.logger.Error("Failed to delete save record", "player_id", playerID.String(), "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to delete save record")
		return
	}

	h.logger.Info("Save record deleted", "player_id", playerID.String())
	w.WriteHeader(http.StatusNoContent)
}

func (h *SaveGameHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
