package replication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/questkeeper/pkg/actor"
	"github.com/jwebster45206/questkeeper/pkg/catalog"
	"github.com/jwebster45206/questkeeper/pkg/content"
	"github.com/jwebster45206/questkeeper/pkg/dialogue"
	"github.com/jwebster45206/questkeeper/pkg/inventory"
	"github.com/jwebster45206/questkeeper/pkg/quest"
	"github.com/jwebster45206/questkeeper/pkg/quiz"
	"github.com/jwebster45206/questkeeper/pkg/save"
	"github.com/jwebster45206/questkeeper/pkg/session"
	"github.com/jwebster45206/questkeeper/pkg/storage"
	"github.com/jwebster45206/questkeeper/pkg/world"
)

var (
	ErrNotJoined     = errors.New("player has not joined")
	ErrInvalidDamage = errors.New("damage must be positive")
	ErrUnknownEnemy  = errors.New("unknown enemy type")
)

// Config wires a Server to its world content and outputs.
type Config struct {
	WorldID        string
	InventorySlots int
	HotbarSlots    int
	GoldItemID     int
	Start          save.Position
	StartMap       string

	Catalog   *catalog.Catalog
	Quests    *quest.Registry
	Dialogues []*dialogue.Script
	Bank      *quiz.Bank
	QuizNPCs  []content.QuizNPC
	Enemies   map[int]*actor.EnemyTemplate
	Chests    *world.Chests

	Storage   storage.Storage
	Transport Transport
	Rand      *rand.Rand
	Logger    *slog.Logger
}

// Server is the authority for every player's inventory and quest state
// and for shared world objects. Each player's state is pushed to that
// player only; world changes are broadcast.
type Server struct {
	cfg       Config
	ground    *world.Ground
	enemies   *world.Enemies
	transport Transport
	logger    *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	lifecycle playerLocks

	mu      sync.RWMutex
	players map[uuid.UUID]*session.Session
	conns   map[uuid.UUID]int
}

// NewServer validates cfg and creates an empty world.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Quests == nil || cfg.Chests == nil || cfg.Storage == nil {
		return nil, errors.New("quests, chests and storage are required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if cfg.Bank == nil {
		cfg.Bank = quiz.NewBank()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		ground:    world.NewGround(),
		enemies:   world.NewEnemies(),
		transport: cfg.Transport,
		logger:    cfg.Logger.With("world_id", cfg.WorldID),
		rng:       cfg.Rand,
		lifecycle: playerLocks{locks: make(map[uuid.UUID]*playerLock)},
		players:   make(map[uuid.UUID]*session.Session),
		conns:     make(map[uuid.UUID]int),
	}, nil
}

// Ground exposes the world's ground items.
func (s *Server) Ground() *world.Ground { return s.ground }

// Enemies exposes the world's live enemies.
func (s *Server) Enemies() *world.Enemies { return s.enemies }

// Join loads the player's save and sends the world and the player's full
// state to that player. Joining a player who is already joined counts
// another connection, resends everything and returns the live session.
// A Join that races a Leave of the same player waits for its save.
func (s *Server) Join(ctx context.Context, playerID uuid.UUID) (*session.Session, error) {
	unlock, err := s.lifecycle.lock(ctx, playerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s.mu.Lock()
	sess, ok := s.players[playerID]
	if ok {
		s.conns[playerID]++
	}
	s.mu.Unlock()
	if ok {
		s.syncWorld(playerID)
		sess.Refresh()
		s.logger.Debug("Player rejoined", "player_id", playerID)
		return sess, nil
	}

	sess, err = s.newSession(playerID)
	if err != nil {
		return nil, err
	}
	if err := sess.Load(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.players[playerID] = sess
	s.conns[playerID] = 1
	s.mu.Unlock()

	s.syncWorld(playerID)
	sess.Refresh()
	s.logger.Info("Player joined", "player_id", playerID)
	return sess, nil
}

func (s *Server) newSession(playerID uuid.UUID) (*session.Session, error) {
	drivers := make(map[string]*quiz.Driver, len(s.cfg.QuizNPCs))
	observers := make([]dialogue.Observer, 0, len(s.cfg.QuizNPCs))
	for _, qn := range s.cfg.QuizNPCs {
		d := quiz.NewDriver(qn.NPCID, s.cfg.Bank, qn.DriverConfig(), s.childRand(), s.logger)
		drivers[qn.NPCID] = d
		observers = append(observers, d)
	}

	sess, err := session.New(session.Config{
		PlayerID:       playerID,
		InventorySlots: s.cfg.InventorySlots,
		HotbarSlots:    s.cfg.HotbarSlots,
		GoldItemID:     s.cfg.GoldItemID,
		Catalog:        s.cfg.Catalog,
		Quests:         s.cfg.Quests,
		Chests:         s.cfg.Chests,
		Storage:        s.cfg.Storage,
		Dropper:        s,
		Notifier:       s,
		Observers:      observers,
		Start:          s.cfg.Start,
		StartMap:       s.cfg.StartMap,
		MergeChests:    true,
		Logger:         s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	for _, script := range s.cfg.Dialogues {
		sess.Dialogue().SetScript(script)
	}
	for npcID, d := range drivers {
		sess.Dialogue().Attach(npcID, d)
	}
	return sess, nil
}

// childRand derives an independent generator. Drivers run under their
// player's lock and must not share one.
func (s *Server) childRand() *rand.Rand {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))
}

// Leave ends one of the player's connections. When it was the last one
// the player is saved and the session dropped; the session stays
// reachable until the save has finished.
func (s *Server) Leave(ctx context.Context, playerID uuid.UUID) error {
	return s.leave(ctx, playerID, false)
}

// LeaveAll saves and drops every player regardless of open connections.
func (s *Server) LeaveAll(ctx context.Context) error {
	var errs []error
	for _, id := range s.Online() {
		if err := s.leave(ctx, id, true); err != nil && !errors.Is(err, ErrNotJoined) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) leave(ctx context.Context, playerID uuid.UUID, all bool) error {
	unlock, err := s.lifecycle.lock(ctx, playerID)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	sess, ok := s.players[playerID]
	if ok && !all {
		s.conns[playerID]--
	}
	remaining := s.conns[playerID]
	s.mu.Unlock()
	if !ok {
		return ErrNotJoined
	}
	if !all && remaining > 0 {
		s.logger.Debug("Connection closed, player still joined", "player_id", playerID, "connections", remaining)
		return nil
	}

	sess.Dialogue().Reset()
	err = sess.Save(ctx)

	s.mu.Lock()
	delete(s.players, playerID)
	delete(s.conns, playerID)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.logger.Info("Player left", "player_id", playerID)
	return nil
}

// Session returns a joined player's session.
func (s *Server) Session(playerID uuid.UUID) (*session.Session, bool) {
	return s.lookup(playerID)
}

func (s *Server) lookup(playerID uuid.UUID) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.players[playerID]
	return sess, ok
}

func (s *Server) session(playerID uuid.UUID) (*session.Session, error) {
	sess, ok := s.lookup(playerID)
	if !ok {
		return nil, ErrNotJoined
	}
	return sess, nil
}

// Online lists joined players.
func (s *Server) Online() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(s.players))
	for id := range s.players {
		out = append(out, id)
	}
	return out
}

// SavePlayer saves a joined player. Players who already left were saved
// on the way out.
func (s *Server) SavePlayer(ctx context.Context, playerID uuid.UUID) error {
	sess, ok := s.lookup(playerID)
	if !ok {
		s.logger.Debug("Skipping save for offline player", "player_id", playerID)
		return nil
	}
	return sess.Save(ctx)
}

// RequestOpenChest opens chestID. Only the first opener spawns the
// chest's loot; later requests change nothing.
func (s *Server) RequestOpenChest(ctx context.Context, playerID uuid.UUID, chestID string) error {
	if _, err := s.session(playerID); err != nil {
		return err
	}
	chest, won, err := s.cfg.Chests.Open(ctx, chestID)
	if err != nil {
		return err
	}
	if !won {
		s.logger.Debug("Chest already opened", "chest_id", chestID, "player_id", playerID)
		return nil
	}
	for _, st := range chest.Loot {
		s.spawn(st, chest.X, chest.Y)
	}
	s.broadcast(MsgChestState, ChestStatePayload{ChestID: chest.ID, Opened: true})
	s.logger.Info("Chest opened", "chest_id", chestID, "player_id", playerID, "loot", len(chest.Loot))
	return nil
}

// RequestPickup moves a ground item into the requester's first empty
// slot. With a full backpack, or an item already taken, nothing happens.
func (s *Server) RequestPickup(ctx context.Context, playerID, groundID uuid.UUID) error {
	sess, err := s.session(playerID)
	if err != nil {
		return err
	}
	var taken world.GroundItem
	_, placed := sess.PickUp(func() (int, int, bool) {
		it, ok := s.ground.Take(groundID)
		if !ok {
			return 0, 0, false
		}
		taken = it
		return it.ItemID, it.Quantity, true
	})
	if taken.ID == uuid.Nil {
		s.logger.Debug("Pickup dropped", "player_id", playerID, "ground_id", groundID)
		return nil
	}
	s.broadcast(MsgDespawned, DespawnedPayload{ID: taken.ID})
	if !placed {
		// taken but rejected by the inventory: put it back
		s.logger.Warn("Picked up item rejected by inventory", "item_id", taken.ItemID, "player_id", playerID)
		s.spawn(inventory.Stack{ItemID: taken.ItemID, Quantity: taken.Quantity}, taken.X, taken.Y)
		return nil
	}
	s.send(playerID, MsgPickupShown, PickupShownPayload{
		ItemID:   taken.ItemID,
		ItemName: s.cfg.Catalog.Name(taken.ItemID),
		Quantity: taken.Quantity,
	})
	return nil
}

// SpawnEnemy places an enemy of typeID and announces it.
func (s *Server) SpawnEnemy(typeID int, x, y float64) (*actor.Enemy, error) {
	tpl, ok := s.cfg.Enemies[typeID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEnemy, typeID)
	}
	e, err := actor.Spawn(tpl, x, y, nil)
	if err != nil {
		return nil, err
	}
	s.enemies.Add(e)
	s.broadcast(MsgEnemySpawned, enemyPayload(*e))
	return e, nil
}

// RequestAttack damages an enemy. The attacker whose hit defeats it gets
// the DefeatEnemy credit; the loot is spawned for everyone.
func (s *Server) RequestAttack(ctx context.Context, playerID, enemyID uuid.UUID, damage int) error {
	sess, err := s.session(playerID)
	if err != nil {
		return err
	}
	if damage < 1 {
		return ErrInvalidDamage
	}
	e, defeated, err := s.enemies.Damage(enemyID, damage)
	if err != nil {
		return err
	}
	if !defeated {
		return nil
	}
	sess.OnEnemyDefeated(e.TypeID)

	var loot []inventory.Stack
	if e.Template != nil {
		s.rngMu.Lock()
		loot = e.Template.RollLoot(s.rng)
		s.rngMu.Unlock()
	}
	for _, st := range loot {
		s.spawn(st, e.X, e.Y)
	}
	s.broadcast(MsgEnemyDefeated, EnemyDefeatedPayload{ID: e.ID, TypeID: e.TypeID, PlayerID: playerID})
	s.logger.Info("Enemy defeated", "enemy_id", e.ID, "type_id", e.TypeID, "player_id", playerID)
	return nil
}

// Interact forwards to the player's dialogue engine.
func (s *Server) Interact(playerID uuid.UUID, npcID string) error {
	sess, err := s.session(playerID)
	if err != nil {
		return err
	}
	return sess.Interact(npcID)
}

// Choose forwards to the player's dialogue engine.
func (s *Server) Choose(playerID uuid.UUID, npcID string, index int) error {
	sess, err := s.session(playerID)
	if err != nil {
		return err
	}
	return sess.Choose(npcID, index)
}

// CloseDialogue forwards to the player's dialogue engine.
func (s *Server) CloseDialogue(playerID uuid.UUID, npcID string) error {
	sess, err := s.session(playerID)
	if err != nil {
		return err
	}
	return sess.CloseDialogue(npcID)
}

// SetPosition records the player's position.
func (s *Server) SetPosition(playerID uuid.UUID, pos save.Position, mapBoundary string) error {
	sess, err := s.session(playerID)
	if err != nil {
		return err
	}
	sess.SetPosition(pos, mapBoundary)
	return nil
}

// InventoryChanged pushes both containers to their owner.
func (s *Server) InventoryChanged(playerID uuid.UUID, inv, hotbar []inventory.Entry) {
	s.send(playerID, MsgInventory, inventoryPayload(s.cfg.InventorySlots, inv))
	s.send(playerID, MsgHotbar, inventoryPayload(s.cfg.HotbarSlots, hotbar))
}

// QuestsChanged pushes the quest log view to its owner.
func (s *Server) QuestsChanged(playerID uuid.UUID, view session.QuestLogView) {
	s.send(playerID, MsgQuestLog, view)
}

// DialogueChanged pushes the dialogue frame to its owner.
func (s *Server) DialogueChanged(playerID uuid.UUID, ev dialogue.Event) {
	s.send(playerID, MsgDialogue, ev)
	if ev.Type == dialogue.EventAnswered {
		s.send(playerID, MsgAnswer, AnswerPayload{NPCID: ev.NPCID, Correct: ev.Correct})
	}
}

// DropAt spawns a reward that did not fit in the player's inventory.
func (s *Server) DropAt(playerID uuid.UUID, itemID, qty int, x, y float64) {
	s.spawn(inventory.Stack{ItemID: itemID, Quantity: qty}, x, y)
	s.logger.Debug("Reward dropped", "player_id", playerID, "item_id", itemID, "quantity", qty)
}

// syncWorld sends the current world objects to one player.
func (s *Server) syncWorld(playerID uuid.UUID) {
	for _, it := range s.ground.List() {
		s.send(playerID, MsgSpawned, SpawnedPayload{Item: it})
	}
	for _, st := range s.cfg.Chests.States() {
		if st.Opened {
			s.send(playerID, MsgChestState, ChestStatePayload{ChestID: st.ChestID, Opened: true})
		}
	}
	for _, e := range s.enemies.List() {
		s.send(playerID, MsgEnemySpawned, enemyPayload(e))
	}
}

func (s *Server) spawn(st inventory.Stack, x, y float64) world.GroundItem {
	it := s.ground.Spawn(st.ItemID, st.Quantity, x, y)
	s.broadcast(MsgSpawned, SpawnedPayload{Item: it})
	return it
}

func enemyPayload(e actor.Enemy) EnemyPayload {
	return EnemyPayload{ID: e.ID, TypeID: e.TypeID, Name: e.Name, X: e.X, Y: e.Y, HP: e.HP, MaxHP: e.MaxHP}
}

func (s *Server) send(playerID uuid.UUID, t MessageType, payload any) {
	msg, err := NewMessage(t, payload)
	if err != nil {
		s.logger.Error("Failed to encode message", "type", t, "error", err)
		return
	}
	s.transport.SendTo(playerID, msg)
}

func (s *Server) broadcast(t MessageType, payload any) {
	msg, err := NewMessage(t, payload)
	if err != nil {
		s.logger.Error("Failed to encode message", "type", t, "error", err)
		return
	}
	s.transport.Broadcast(msg)
}
