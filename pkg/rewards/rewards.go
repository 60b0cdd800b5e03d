package rewards

import (
	"log/slog"

	"github.com/jwebster45206/questkeeper/pkg/quest"
)

// Store accepts items into a player's inventory.
type Store interface {
	Add(itemID, qty int) bool
}

// Dropper places items in the world when the inventory cannot take them.
type Dropper interface {
	Drop(itemID, qty int)
}

// Payer grants items and gold to one player.
type Payer struct {
	store      Store
	dropper    Dropper
	goldItemID int
	logger     *slog.Logger
}

// NewPayer creates a payer. A nil dropper discards overflow.
func NewPayer(store Store, dropper Dropper, goldItemID int, logger *slog.Logger) *Payer {
	return &Payer{store: store, dropper: dropper, goldItemID: goldItemID, logger: logger}
}

// GiveQuestReward pays every reward of def.
func (p *Payer) GiveQuestReward(def *quest.Definition) {
	if def == nil {
		return
	}
	for _, r := range def.Rewards {
		switch r.Type {
		case quest.RewardItem:
			p.GiveItem(r.ItemID, r.Amount)
		case quest.RewardGold:
			p.GiveGold(r.Amount)
		case quest.RewardExperience:
			p.logger.Debug("Experience rewards are not tracked", "quest_id", def.ID, "amount", r.Amount)
		}
	}
}

// GiveItem adds qty units one at a time, dropping any unit the inventory
// rejects. It returns the number added and dropped.
func (p *Payer) GiveItem(itemID, qty int) (added, dropped int) {
	if itemID <= 0 || qty <= 0 {
		return 0, 0
	}
	for range qty {
		if p.store.Add(itemID, 1) {
			added++
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		p.logger.Info("Inventory full, dropping reward", "item_id", itemID, "quantity", dropped)
		if p.dropper != nil {
			p.dropper.Drop(itemID, dropped)
		}
	}
	return added, dropped
}

// GiveGold pays amount of the configured gold item.
func (p *Payer) GiveGold(amount int) {
	if p.goldItemID <= 0 {
		p.logger.Warn("No gold item configured, gold reward skipped", "amount", amount)
		return
	}
	p.GiveItem(p.goldItemID, amount)
}
