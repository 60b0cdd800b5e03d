package quest

import (
	"encoding/json"
	"fmt"
)

// Kind names an objective variant on the wire.
type Kind string

const (
	KindCollectItem Kind = "collect_item"
	KindDefeatEnemy Kind = "defeat_enemy"
	KindTalkNPC     Kind = "talk_npc"
)

// Target is the closed set of objective targets.
type Target interface {
	Kind() Kind
	isTarget()
}

// CollectItem is satisfied by holding Required of ItemID.
type CollectItem struct{ ItemID int }

// DefeatEnemy is satisfied by defeating Required enemies of type EnemyID.
type DefeatEnemy struct{ EnemyID int }

// TalkNPC is satisfied by finishing Required conversations with NPCID.
type TalkNPC struct{ NPCID string }

func (CollectItem) Kind() Kind { return KindCollectItem }
func (DefeatEnemy) Kind() Kind { return KindDefeatEnemy }
func (TalkNPC) Kind() Kind     { return KindTalkNPC }

func (CollectItem) isTarget() {}
func (DefeatEnemy) isTarget() {}
func (TalkNPC) isTarget()     {}

// Objective is one requirement of a quest.
type Objective struct {
	Target      Target
	Required    int
	Description string
}

type objectiveJSON struct {
	Type        Kind   `json:"type"`
	ItemID      int    `json:"item_id,omitempty"`
	EnemyID     int    `json:"enemy_id,omitempty"`
	NPCID       string `json:"npc_id,omitempty"`
	Required    int    `json:"required"`
	Description string `json:"description,omitempty"`
}

func (o Objective) MarshalJSON() ([]byte, error) {
	w := objectiveJSON{Required: o.Required, Description: o.Description}
	switch t := o.Target.(type) {
	case CollectItem:
		w.Type, w.ItemID = KindCollectItem, t.ItemID
	case DefeatEnemy:
		w.Type, w.EnemyID = KindDefeatEnemy, t.EnemyID
	case TalkNPC:
		w.Type, w.NPCID = KindTalkNPC, t.NPCID
	default:
		return nil, fmt.Errorf("objective has no target")
	}
	return json.Marshal(w)
}

func (o *Objective) UnmarshalJSON(data []byte) error {
	var w objectiveJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case KindCollectItem:
		o.Target = CollectItem{ItemID: w.ItemID}
	case KindDefeatEnemy:
		o.Target = DefeatEnemy{EnemyID: w.EnemyID}
	case KindTalkNPC:
		o.Target = TalkNPC{NPCID: w.NPCID}
	default:
		return fmt.Errorf("unknown objective type %q", w.Type)
	}
	o.Required = w.Required
	o.Description = w.Description
	return nil
}

// validate checks the objective is internally consistent.
func (o Objective) validate() error {
	if o.Required < 1 {
		return fmt.Errorf("required must be at least 1, got %d", o.Required)
	}
	switch t := o.Target.(type) {
	case CollectItem:
		if t.ItemID <= 0 {
			return fmt.Errorf("collect_item needs a positive item_id")
		}
	case DefeatEnemy:
		if t.EnemyID <= 0 {
			return fmt.Errorf("defeat_enemy needs a positive enemy_id")
		}
	case TalkNPC:
		if t.NPCID == "" {
			return fmt.Errorf("talk_npc needs an npc_id")
		}
	default:
		return fmt.Errorf("objective has no target")
	}
	return nil
}
