package save

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/questkeeper/pkg/inventory"
	"github.com/jwebster45206/questkeeper/pkg/quest"
	"github.com/jwebster45206/questkeeper/pkg/world"
)

// CurrentVersion is the record layout written by this build.
const CurrentVersion = 1

// Position is a world coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Record is everything persisted for one player, written as one unit.
type Record struct {
	Version     int                    `json:"version"`
	PlayerID    uuid.UUID              `json:"playerId"`
	Position    Position               `json:"playerPosition"`
	MapBoundary string                 `json:"mapBoundary"`
	Inventory   []inventory.Entry      `json:"inventory"`
	Hotbar      []inventory.Entry      `json:"hotbar"`
	Chests      []world.ChestState     `json:"chests"`
	Quests      []quest.ProgressRecord `json:"quests"`
	HandedIn    []string               `json:"handedInQuestIds"`
	SavedAt     time.Time              `json:"savedAt"`
}

// Encode serializes r.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("record cannot be nil")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal save record: %w", err)
	}
	return data, nil
}

// Decode parses a record and rejects layouts newer than this build.
func Decode(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal save record: %w", err)
	}
	if r.Version > CurrentVersion {
		return nil, fmt.Errorf("save record version %d is newer than supported version %d", r.Version, CurrentVersion)
	}
	return &r, nil
}

// Clone returns a deep copy of r.
func (r *Record) Clone() (*Record, error) {
	data, err := Encode(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
