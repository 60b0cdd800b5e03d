package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jwebster45206/questkeeper/pkg/inventory"
)

var ErrUnknownChest = errors.New("unknown chest")

// Chest is a placed container. Its loot is spawned once, on first open.
type Chest struct {
	ID   string            `json:"id"`
	X    float64           `json:"x"`
	Y    float64           `json:"y"`
	Loot []inventory.Stack `json:"loot"`
}

// ChestState is the persisted open flag of one chest.
type ChestState struct {
	ChestID string `json:"chestId"`
	Opened  bool   `json:"isOpened"`
}

// Claimer performs a cross-process check-and-set on a chest. Claim
// returns true for exactly one caller per chest.
type Claimer interface {
	Claim(ctx context.Context, chestID string) (bool, error)
}

// Chests holds every chest and its opened flag. Opening is a single
// atomic check-and-set.
type Chests struct {
	mu      sync.Mutex
	defs    map[string]Chest
	opened  map[string]bool
	claimer Claimer
}

// NewChests registers chests. A nil claimer keeps the state in process.
func NewChests(chests []Chest, claimer Claimer) (*Chests, error) {
	c := &Chests{
		defs:    make(map[string]Chest, len(chests)),
		opened:  make(map[string]bool, len(chests)),
		claimer: claimer,
	}
	for _, ch := range chests {
		if ch.ID == "" {
			return nil, errors.New("chest id is required")
		}
		if _, dup := c.defs[ch.ID]; dup {
			return nil, fmt.Errorf("duplicate chest id %s", ch.ID)
		}
		c.defs[ch.ID] = ch
	}
	return c, nil
}

// Open marks the chest opened and reports whether this call did it. Only
// the winning caller should spawn the chest's loot.
func (c *Chests) Open(ctx context.Context, id string) (Chest, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.defs[id]
	if !ok {
		return Chest{}, false, ErrUnknownChest
	}
	if c.opened[id] {
		return ch, false, nil
	}
	won := true
	if c.claimer != nil {
		var err error
		won, err = c.claimer.Claim(ctx, id)
		if err != nil {
			return ch, false, fmt.Errorf("failed to claim chest: %w", err)
		}
	}
	c.opened[id] = true
	return ch, won, nil
}

// Get returns the chest definition.
func (c *Chests) Get(id string) (Chest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.defs[id]
	return ch, ok
}

// IsOpened reports the opened flag of id.
func (c *Chests) IsOpened(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened[id]
}

// States lists every chest's flag ordered by chest id.
func (c *Chests) States() []ChestState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChestState, 0, len(c.defs))
	for id := range c.defs {
		out = append(out, ChestState{ChestID: id, Opened: c.opened[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChestID < out[j].ChestID })
	return out
}

// Restore sets the flag of every chest named in states. Unknown chest ids
// are skipped and returned; chests missing from states keep their flag.
func (c *Chests) Restore(states []ChestState) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var skipped []string
	for _, s := range states {
		if _, ok := c.defs[s.ChestID]; !ok {
			skipped = append(skipped, s.ChestID)
			continue
		}
		c.opened[s.ChestID] = s.Opened
	}
	return skipped
}

// Merge opens every chest marked opened in states and never closes one.
// Servers shared by several players restore with Merge so a returning
// player cannot close a chest someone else opened.
func (c *Chests) Merge(states []ChestState) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var skipped []string
	for _, s := range states {
		if _, ok := c.defs[s.ChestID]; !ok {
			skipped = append(skipped, s.ChestID)
			continue
		}
		if s.Opened {
			c.opened[s.ChestID] = true
		}
	}
	return skipped
}
