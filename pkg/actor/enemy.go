package actor

import (
	"fmt"
	"maps"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/jwebster45206/d20"

	"github.com/jwebster45206/questkeeper/pkg/inventory"
)

// LootEntry is one possible drop. DropChance is in [0, 1]; the quantity
// is uniform in [Min, Max].
type LootEntry struct {
	ItemID     int     `json:"item_id"`
	DropChance float64 `json:"drop_chance"`
	Min        int     `json:"min"`
	Max        int     `json:"max"`
}

// EnemyTemplate describes an enemy type. TypeID is what DefeatEnemy
// objectives count.
type EnemyTemplate struct {
	TypeID     int            `json:"type_id"`
	Name       string         `json:"name"`
	AC         int            `json:"ac"`
	MaxHP      int            `json:"max_hp"`
	Attributes map[string]int `json:"attributes,omitempty"`       // e.g. "strength": 12
	CombatMods map[string]int `json:"combat_modifiers,omitempty"` // e.g. "bite": 3
	Loot       []LootEntry    `json:"loot,omitempty"`
}

// Validate checks the template can be spawned.
func (t *EnemyTemplate) Validate() error {
	if t.TypeID <= 0 {
		return fmt.Errorf("enemy %q: type_id must be positive", t.Name)
	}
	if t.MaxHP <= 0 {
		return fmt.Errorf("enemy %d: max_hp must be positive", t.TypeID)
	}
	for i, l := range t.Loot {
		if l.ItemID <= 0 {
			return fmt.Errorf("enemy %d: loot %d needs a positive item_id", t.TypeID, i)
		}
		if l.DropChance < 0 || l.DropChance > 1 {
			return fmt.Errorf("enemy %d: loot %d drop_chance must be within [0,1]", t.TypeID, i)
		}
		if l.Min < 1 || l.Max < l.Min {
			return fmt.Errorf("enemy %d: loot %d quantity range %d..%d is invalid", t.TypeID, i, l.Min, l.Max)
		}
	}
	return nil
}

// RollLoot draws the drops for one defeat.
func (t *EnemyTemplate) RollLoot(rng *rand.Rand) []inventory.Stack {
	var out []inventory.Stack
	for _, l := range t.Loot {
		if rng.Float64() >= l.DropChance {
			continue
		}
		qty := l.Min
		if l.Max > l.Min {
			qty += rng.IntN(l.Max - l.Min + 1)
		}
		out = append(out, inventory.Stack{ItemID: l.ItemID, Quantity: qty})
	}
	return out
}

// Enemy is a live enemy in the world. HP is tracked here; the d20 actor
// carries armor class, attributes and combat modifiers.
type Enemy struct {
	ID       uuid.UUID      `json:"id"`
	TypeID   int            `json:"type_id"`
	Name     string         `json:"name"`
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	HP       int            `json:"hp"`
	MaxHP    int            `json:"max_hp"`
	Actor    *d20.Actor     `json:"-"`
	Template *EnemyTemplate `json:"-"`
}

// Spawn creates an enemy from tpl at (x, y). Attribute overrides are
// layered on top of the template's.
func Spawn(tpl *EnemyTemplate, x, y float64, overrides map[string]int) (*Enemy, error) {
	if tpl == nil {
		return nil, fmt.Errorf("template cannot be nil")
	}
	attrs := make(map[string]int, len(tpl.Attributes)+len(overrides))
	maps.Copy(attrs, tpl.Attributes)
	maps.Copy(attrs, overrides)

	id := uuid.New()
	a, err := d20.NewActor(id.String()).
		WithHP(tpl.MaxHP).
		WithAC(tpl.AC).
		WithAttributes(attrs).
		WithCombatModifiers(tpl.CombatMods).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor: %w", err)
	}
	return &Enemy{
		ID:       id,
		TypeID:   tpl.TypeID,
		Name:     tpl.Name,
		X:        x,
		Y:        y,
		HP:       tpl.MaxHP,
		MaxHP:    tpl.MaxHP,
		Actor:    a,
		Template: tpl,
	}, nil
}

// AC returns the enemy's armor class.
func (e *Enemy) AC() int { return e.Actor.AC() }

// TakeDamage reduces HP, never below 0, and reports whether this hit
// defeated the enemy.
func (e *Enemy) TakeDamage(n int) bool {
	if n <= 0 || e.IsDefeated() {
		return false
	}
	e.HP -= n
	if e.HP < 0 {
		e.HP = 0
	}
	if e.HP > 0 {
		_ = e.Actor.SetHP(e.HP)
	}
	return e.HP == 0
}

// IsDefeated returns true if the enemy's HP is 0 or less.
func (e *Enemy) IsDefeated() bool {
	return e.HP <= 0
}
