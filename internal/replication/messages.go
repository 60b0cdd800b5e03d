package replication

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwebster45206/questkeeper/pkg/inventory"
	"github.com/jwebster45206/questkeeper/pkg/world"
)

// MessageType names a message on the wire.
type MessageType string

// Client to server.
const (
	MsgOpenChest     MessageType = "open_chest"
	MsgPickup        MessageType = "pickup"
	MsgInteract      MessageType = "interact"
	MsgChoose        MessageType = "choose"
	MsgCloseDialogue MessageType = "close_dialogue"
	MsgAttack        MessageType = "attack"
	MsgSetPosition   MessageType = "set_position"
	MsgMoveToHotbar  MessageType = "move_to_hotbar"
	MsgMoveToBag     MessageType = "move_to_backpack"
	MsgSave          MessageType = "save"
)

// Server to client.
const (
	MsgInventory     MessageType = "inventory"
	MsgHotbar        MessageType = "hotbar"
	MsgQuestLog      MessageType = "quest_log"
	MsgDialogue      MessageType = "dialogue"
	MsgAnswer        MessageType = "answer"
	MsgPickupShown   MessageType = "pickup_shown"
	MsgSpawned       MessageType = "spawned"
	MsgDespawned     MessageType = "despawned"
	MsgChestState    MessageType = "chest_state"
	MsgEnemySpawned  MessageType = "enemy_spawned"
	MsgEnemyDefeated MessageType = "enemy_defeated"
	MsgError         MessageType = "error"
)

// Message is one frame on the wire.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload into a message of type t.
func NewMessage(t MessageType, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	return Message{Type: t, Payload: data}, nil
}

// Decode unmarshals the payload into dst.
func (m Message) Decode(dst any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("invalid %s payload: %w", m.Type, err)
	}
	return nil
}

// Requests.

type OpenChestRequest struct {
	ChestID string `json:"chest_id"`
}

type PickupRequest struct {
	ItemID uuid.UUID `json:"item_id"`
}

type InteractRequest struct {
	NPCID string `json:"npc_id"`
}

type ChooseRequest struct {
	NPCID string `json:"npc_id"`
	Index int    `json:"index"`
}

type AttackRequest struct {
	EnemyID uuid.UUID `json:"enemy_id"`
	Damage  int       `json:"damage"`
}

type SetPositionRequest struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	MapBoundary string  `json:"map_boundary,omitempty"`
}

type SlotRequest struct {
	Slot int `json:"slot"`
}

// Pushes.

// InventoryPayload is a full container snapshot as parallel arrays.
type InventoryPayload struct {
	Capacity    int   `json:"capacity"`
	ItemIDs     []int `json:"item_ids"`
	SlotIndexes []int `json:"slot_indexes"`
	Quantities  []int `json:"quantities"`
}

func inventoryPayload(capacity int, entries []inventory.Entry) InventoryPayload {
	ids, slots, qtys := inventory.Columns(entries)
	return InventoryPayload{Capacity: capacity, ItemIDs: ids, SlotIndexes: slots, Quantities: qtys}
}

// Entries converts the columns back into entries.
func (p InventoryPayload) Entries() []inventory.Entry {
	return inventory.FromColumns(p.ItemIDs, p.SlotIndexes, p.Quantities)
}

type AnswerPayload struct {
	NPCID   string `json:"npc_id"`
	Correct bool   `json:"correct"`
}

type PickupShownPayload struct {
	ItemID   int    `json:"item_id"`
	ItemName string `json:"item_name"`
	Quantity int    `json:"quantity"`
}

type SpawnedPayload struct {
	Item world.GroundItem `json:"item"`
}

type DespawnedPayload struct {
	ID uuid.UUID `json:"id"`
}

type ChestStatePayload struct {
	ChestID string `json:"chest_id"`
	Opened  bool   `json:"opened"`
}

type EnemyPayload struct {
	ID     uuid.UUID `json:"id"`
	TypeID int       `json:"type_id"`
	Name   string    `json:"name"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	HP     int       `json:"hp"`
	MaxHP  int       `json:"max_hp"`
}

type EnemyDefeatedPayload struct {
	ID       uuid.UUID `json:"id"`
	TypeID   int       `json:"type_id"`
	PlayerID uuid.UUID `json:"player_id"`
}

type ErrorPayload struct {
	Request MessageType `json:"request,omitempty"`
	Error   string      `json:"error"`
}
