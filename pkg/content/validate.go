package content

import (
	"fmt"

	"github.com/jwebster45206/questkeeper/pkg/quest"
)

// Validate checks every definition and every cross reference in the
// bundle. goldItemID, when positive, must name a catalogued item.
// All problems are returned, not just the first.
func (b *Bundle) Validate(goldItemID int) []error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	items := map[int]bool{}
	for _, it := range b.Items {
		if it.ID <= 0 {
			add("item %q: id must be positive", it.Name)
			continue
		}
		if items[it.ID] {
			add("item %d: duplicate id", it.ID)
		}
		if it.Name == "" {
			add("item %d: name is required", it.ID)
		}
		items[it.ID] = true
	}
	if goldItemID > 0 && !items[goldItemID] {
		add("gold item %d is not in the catalog", goldItemID)
	}

	enemies := map[int]bool{}
	for _, e := range b.Enemies {
		if err := e.Validate(); err != nil {
			errs = append(errs, err)
		}
		if enemies[e.TypeID] {
			add("enemy %d: duplicate type_id", e.TypeID)
		}
		enemies[e.TypeID] = true
		for _, l := range e.Loot {
			if l.ItemID > 0 && !items[l.ItemID] {
				add("enemy %d: loot item %d does not exist", e.TypeID, l.ItemID)
			}
		}
	}

	for i, sp := range b.Spawns {
		if !enemies[sp.TypeID] {
			add("spawn %d: enemy %d does not exist", i, sp.TypeID)
		}
	}

	npcs := map[string]bool{}
	for _, s := range b.Dialogues {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
		if npcs[s.NPC.ID] {
			add("npc %s: duplicate dialogue", s.NPC.ID)
		}
		npcs[s.NPC.ID] = true
	}

	quests := map[string]bool{}
	for _, d := range b.Quests {
		if err := d.Validate(); err != nil {
			errs = append(errs, err)
		}
		if quests[d.ID] {
			add("quest %s: duplicate id", d.ID)
		}
		quests[d.ID] = true
		for i, o := range d.Objectives {
			switch t := o.Target.(type) {
			case quest.CollectItem:
				if !items[t.ItemID] {
					add("quest %s: objective %d: item %d does not exist", d.ID, i, t.ItemID)
				}
			case quest.DefeatEnemy:
				if !enemies[t.EnemyID] {
					add("quest %s: objective %d: enemy %d does not exist", d.ID, i, t.EnemyID)
				}
			case quest.TalkNPC:
				if !npcs[t.NPCID] {
					add("quest %s: objective %d: npc %s has no dialogue", d.ID, i, t.NPCID)
				}
			}
		}
		for i, r := range d.Rewards {
			if r.Type == quest.RewardItem && !items[r.ItemID] {
				add("quest %s: reward %d: item %d does not exist", d.ID, i, r.ItemID)
			}
			if r.Type == quest.RewardGold && goldItemID <= 0 {
				add("quest %s: reward %d: gold reward needs a gold item", d.ID, i)
			}
		}
	}
	for _, s := range b.Dialogues {
		if s.QuestID != "" && !quests[s.QuestID] {
			add("npc %s: quest %s does not exist", s.NPC.ID, s.QuestID)
		}
	}

	questions := map[string]bool{}
	for i, q := range b.Questions {
		if q.ID == "" {
			add("question %d: id is required", i)
		} else if questions[q.ID] {
			add("question %s: duplicate id", q.ID)
		}
		questions[q.ID] = true
		if !q.Playable() {
			add("question %s: needs at least two options and a valid correct_index", q.ID)
		}
	}
	for _, qn := range b.QuizNPCs {
		if !npcs[qn.NPCID] {
			add("quiz npc %s has no dialogue", qn.NPCID)
		}
		cfg := qn.DriverConfig()
		if cfg.StartMin > cfg.StartMax || cfg.StartMax > cfg.HardCap {
			add("quiz npc %s: difficulty band %s..%s exceeds cap %s", qn.NPCID, cfg.StartMin, cfg.StartMax, cfg.HardCap)
		}
		if len(b.Questions) == 0 {
			add("quiz npc %s: question bank is empty", qn.NPCID)
		}
	}

	chests := map[string]bool{}
	for _, c := range b.Chests {
		if c.ID == "" {
			add("chest: id is required")
			continue
		}
		if chests[c.ID] {
			add("chest %s: duplicate id", c.ID)
		}
		chests[c.ID] = true
		for _, l := range c.Loot {
			if !items[l.ItemID] || l.Quantity < 1 {
				add("chest %s: invalid loot %d x%d", c.ID, l.ItemID, l.Quantity)
			}
		}
	}
	return errs
}
