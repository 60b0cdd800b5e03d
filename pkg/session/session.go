package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/questkeeper/pkg/catalog"
	"github.com/jwebster45206/questkeeper/pkg/dialogue"
	"github.com/jwebster45206/questkeeper/pkg/inventory"
	"github.com/jwebster45206/questkeeper/pkg/quest"
	"github.com/jwebster45206/questkeeper/pkg/rewards"
	"github.com/jwebster45206/questkeeper/pkg/save"
	"github.com/jwebster45206/questkeeper/pkg/storage"
	"github.com/jwebster45206/questkeeper/pkg/world"
)

var (
	ErrUnknownQuest = errors.New("unknown quest")
	ErrEmptySlot    = errors.New("slot is empty")
	ErrNoRoom       = errors.New("no room for item")
)

// Notifier receives level-triggered views of a player's state. It is
// called with the session lock held and must not block or call back into
// the session.
type Notifier interface {
	InventoryChanged(playerID uuid.UUID, inventory, hotbar []inventory.Entry)
	QuestsChanged(playerID uuid.UUID, view QuestLogView)
	DialogueChanged(playerID uuid.UUID, ev dialogue.Event)
}

// Dropper places overflow rewards in the world near the player.
type Dropper interface {
	DropAt(playerID uuid.UUID, itemID, qty int, x, y float64)
}

// Config wires a Session. Catalog, Quests, Chests and Storage are shared
// by every session of a world.
type Config struct {
	PlayerID       uuid.UUID
	InventorySlots int
	HotbarSlots    int
	GoldItemID     int
	Catalog        *catalog.Catalog
	Quests         *quest.Registry
	Chests         *world.Chests
	Storage        storage.Storage
	Dropper        Dropper
	Notifier       Notifier
	Observers      []dialogue.Observer
	Start          save.Position
	StartMap       string
	// MergeChests makes Load only ever open chests, for worlds shared by
	// several players.
	MergeChests bool
	Logger      *slog.Logger
}

// Session owns one player's inventory, hotbar, quest log and dialogue
// engine. Every mutation happens under its lock.
type Session struct {
	mu sync.Mutex

	id       uuid.UUID
	inv      *inventory.Inventory
	hotbar   *inventory.Inventory
	quests   *quest.Log
	registry *quest.Registry
	catalog  *catalog.Catalog
	payer    *rewards.Payer
	dialogue *dialogue.Engine
	chests   *world.Chests
	store    storage.Storage
	dropper  Dropper
	notifier Notifier
	logger   *slog.Logger

	position    save.Position
	mapBoundary string
	mergeChests bool
	moving      bool

	saveMu sync.Mutex
}

// New constructs a session and its services.
func New(cfg Config) (*Session, error) {
	if cfg.PlayerID == uuid.Nil {
		return nil, errors.New("player id is required")
	}
	if cfg.Quests == nil || cfg.Chests == nil || cfg.Storage == nil {
		return nil, errors.New("quests, chests and storage are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Session{
		id:          cfg.PlayerID,
		inv:         inventory.New(cfg.InventorySlots),
		hotbar:      inventory.New(cfg.HotbarSlots),
		quests:      quest.NewLog(),
		registry:    cfg.Quests,
		catalog:     cfg.Catalog,
		chests:      cfg.Chests,
		store:       cfg.Storage,
		dropper:     cfg.Dropper,
		notifier:    cfg.Notifier,
		logger:      cfg.Logger.With("player_id", cfg.PlayerID.String()),
		position:    cfg.Start,
		mapBoundary: cfg.StartMap,
		mergeChests: cfg.MergeChests,
	}
	s.payer = rewards.NewPayer(s.inv, dropFunc(s.drop), cfg.GoldItemID, s.logger)

	observers := append([]dialogue.Observer{dialogue.ObserverFunc(s.dialogueEvent)}, cfg.Observers...)
	s.dialogue = dialogue.NewEngine(dialogue.Config{
		Locker:   &s.mu,
		Quests:   questPort{s},
		Rewards:  s.payer,
		Observer: dialogue.MultiObserver(observers...),
		Logger:   s.logger,
	})

	s.inv.OnChange(func() {
		if s.moving {
			return
		}
		s.quests.Recompute(s.inv.Counts())
		s.pushInventory()
	})
	s.hotbar.OnChange(func() {
		if !s.moving {
			s.pushInventory()
		}
	})
	s.quests.OnChange(func() {
		if s.notifier != nil {
			s.notifier.QuestsChanged(s.id, s.questView())
		}
	})
	return s, nil
}

// ID returns the player id.
func (s *Session) ID() uuid.UUID { return s.id }

// Dialogue returns the session's dialogue engine. Its methods take the
// session lock themselves.
func (s *Session) Dialogue() *dialogue.Engine { return s.dialogue }

type dropFunc func(itemID, qty int)

func (f dropFunc) Drop(itemID, qty int) { f(itemID, qty) }

func (s *Session) drop(itemID, qty int) {
	if s.dropper == nil {
		s.logger.Warn("Reward overflow discarded", "item_id", itemID, "quantity", qty)
		return
	}
	s.dropper.DropAt(s.id, itemID, qty, s.position.X, s.position.Y)
}

func (s *Session) pushInventory() {
	if s.notifier != nil {
		s.notifier.InventoryChanged(s.id, s.inv.Snapshot(), s.hotbar.Snapshot())
	}
}

func (s *Session) dialogueEvent(ev dialogue.Event) {
	if s.notifier != nil {
		s.notifier.DialogueChanged(s.id, ev)
	}
}

// Inventory returns the backpack snapshot.
func (s *Session) Inventory() []inventory.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inv.Snapshot()
}

// Hotbar returns the hotbar snapshot.
func (s *Session) Hotbar() []inventory.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hotbar.Snapshot()
}

// Count returns how many of itemID the backpack holds.
func (s *Session) Count(itemID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inv.Count(itemID)
}

// AddItem stacks or places qty of itemID in the backpack.
func (s *Session) AddItem(itemID, qty int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.catalog.Get(itemID); !ok && s.catalog != nil {
		s.logger.Warn("Unknown item id", "item_id", itemID)
		return false
	}
	return s.inv.Add(itemID, qty)
}

// RemoveItem removes up to amount of itemID from the backpack.
func (s *Session) RemoveItem(itemID, amount int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inv.Remove(itemID, amount)
}

// GiveItem pays itemID unit by unit, dropping what does not fit.
func (s *Session) GiveItem(itemID, qty int) (added, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payer.GiveItem(itemID, qty)
}

// PickUp moves a world item into the first empty backpack slot. take is
// called only when a slot is free and must atomically remove the item
// from the world. Nothing changes when the backpack is full.
func (s *Session) PickUp(take func() (itemID, qty int, ok bool)) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inv.FirstEmptySlot() < 0 {
		return -1, false
	}
	itemID, qty, ok := take()
	if !ok {
		return -1, false
	}
	return s.inv.PlaceInFirstEmpty(itemID, qty)
}

// MoveToHotbar moves the stack in backpack slot index to the hotbar.
func (s *Session) MoveToHotbar(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.move(s.inv, s.hotbar, index)
}

// MoveToBackpack moves the stack in hotbar slot index to the backpack.
func (s *Session) MoveToBackpack(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.move(s.hotbar, s.inv, index)
}

// move transfers one slot between the inventories and notifies once.
func (s *Session) move(from, to *inventory.Inventory, index int) error {
	st, ok := from.Slot(index)
	if !ok {
		return ErrEmptySlot
	}
	if !to.CanAccept(st.ItemID) {
		return ErrNoRoom
	}
	s.moving = true
	from.TakeSlot(index)
	to.Add(st.ItemID, st.Quantity)
	s.moving = false
	s.quests.Recompute(s.inv.Counts())
	s.pushInventory()
	return nil
}

// SetPosition records where the player is.
func (s *Session) SetPosition(pos save.Position, mapBoundary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = pos
	if mapBoundary != "" {
		s.mapBoundary = mapBoundary
	}
}

// Position returns the player's position and map boundary.
func (s *Session) Position() (save.Position, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, s.mapBoundary
}

// Interact starts a conversation with npcID.
func (s *Session) Interact(npcID string) error { return s.dialogue.Interact(npcID) }

// Choose resolves a presented dialogue option.
func (s *Session) Choose(npcID string, index int) error { return s.dialogue.Choose(npcID, index) }

// CloseDialogue ends the conversation with npcID.
func (s *Session) CloseDialogue(npcID string) error { return s.dialogue.Close(npcID) }

// Refresh pushes the current inventory and quest views to the notifier.
func (s *Session) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushInventory()
	if s.notifier != nil {
		s.notifier.QuestsChanged(s.id, s.questView())
	}
}

func (s *Session) String() string { return fmt.Sprintf("session(%s)", s.id) }
