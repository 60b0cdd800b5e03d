package quest

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jwebster45206/questkeeper/pkg/inventory"
)

// RewardType is the kind of payout a quest grants.
type RewardType string

const (
	RewardItem       RewardType = "item"
	RewardGold       RewardType = "gold"
	RewardExperience RewardType = "experience"
)

// Reward is one payout granted on hand-in.
type Reward struct {
	Type   RewardType `json:"type"`
	ItemID int        `json:"item_id,omitempty"`
	Amount int        `json:"amount"`
}

// Definition is the static description of a quest.
type Definition struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Objectives  []Objective `json:"objectives"`
	Rewards     []Reward    `json:"rewards,omitempty"`
	Repeatable  bool        `json:"repeatable,omitempty"`
}

// Validate reports structural problems with the definition.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return errors.New("quest id is required")
	}
	if len(d.Objectives) == 0 {
		return fmt.Errorf("quest %s: at least one objective is required", d.ID)
	}
	for i, o := range d.Objectives {
		if err := o.validate(); err != nil {
			return fmt.Errorf("quest %s: objective %d: %w", d.ID, i, err)
		}
	}
	for i, r := range d.Rewards {
		switch r.Type {
		case RewardItem:
			if r.ItemID <= 0 {
				return fmt.Errorf("quest %s: reward %d: item reward needs a positive item_id", d.ID, i)
			}
		case RewardGold, RewardExperience:
		default:
			return fmt.Errorf("quest %s: reward %d: unknown reward type %q", d.ID, i, r.Type)
		}
	}
	return nil
}

// ItemRequirements sums the CollectItem objectives per item id.
func (d *Definition) ItemRequirements() []inventory.Stack {
	need := map[int]int{}
	for _, o := range d.Objectives {
		if c, ok := o.Target.(CollectItem); ok {
			need[c.ItemID] += o.Required
		}
	}
	out := make([]inventory.Stack, 0, len(need))
	for id, n := range need {
		out = append(out, inventory.Stack{ItemID: id, Quantity: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

// Registry indexes quest definitions by id.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry validates and indexes defs.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.defs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate quest id %s", d.ID)
		}
		r.defs[d.ID] = d
	}
	return r, nil
}

// Get returns the definition for id.
func (r *Registry) Get(id string) (*Definition, bool) {
	if r == nil {
		return nil, false
	}
	d, ok := r.defs[id]
	return d, ok
}

// IDs returns every quest id, sorted.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.defs))
	for id := range r.defs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
