package world

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// GroundItem is a pickable item lying in the world.
type GroundItem struct {
	ID       uuid.UUID `json:"id"`
	ItemID   int       `json:"item_id"`
	Quantity int       `json:"quantity"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
}

// Ground holds spawned items until someone takes them.
type Ground struct {
	mu    sync.Mutex
	items map[uuid.UUID]GroundItem
}

// NewGround returns an empty ground.
func NewGround() *Ground {
	return &Ground{items: make(map[uuid.UUID]GroundItem)}
}

// Spawn places a new item. Quantities below 1 become 1.
func (g *Ground) Spawn(itemID, qty int, x, y float64) GroundItem {
	it := GroundItem{ID: uuid.New(), ItemID: itemID, Quantity: max(1, qty), X: x, Y: y}
	g.mu.Lock()
	g.items[it.ID] = it
	g.mu.Unlock()
	return it
}

// Get returns the item with id.
func (g *Ground) Get(id uuid.UUID) (GroundItem, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	it, ok := g.items[id]
	return it, ok
}

// Take removes and returns the item. Exactly one caller wins.
func (g *Ground) Take(id uuid.UUID) (GroundItem, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	it, ok := g.items[id]
	if ok {
		delete(g.items, id)
	}
	return it, ok
}

// List returns every item ordered by id.
func (g *Ground) List() []GroundItem {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GroundItem, 0, len(g.items))
	for _, it := range g.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}
