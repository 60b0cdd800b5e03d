package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jwebster45206/questkeeper/internal/replication"
	"github.com/jwebster45206/questkeeper/pkg/dialogue"
	"github.com/jwebster45206/questkeeper/pkg/session"
	"github.com/jwebster45206/questkeeper/pkg/world"
)

var errNoDialogue = errors.New("no conversation is open")

// worldView is the console's copy of everything the server has pushed.
type worldView struct {
	inventory replication.InventoryPayload
	hotbar    replication.InventoryPayload
	quests    session.QuestLogView
	dialogue  *dialogue.Frame
	ground    map[uuid.UUID]world.GroundItem
	enemies   map[uuid.UUID]replication.EnemyPayload
	chests    map[string]bool
}

func newWorldView() *worldView {
	return &worldView{
		ground:  make(map[uuid.UUID]world.GroundItem),
		enemies: make(map[uuid.UUID]replication.EnemyPayload),
		chests:  make(map[string]bool),
	}
}

// groundList returns ground items in a stable order for numbered commands.
func (v *worldView) groundList() []world.GroundItem {
	out := make([]world.GroundItem, 0, len(v.ground))
	for _, g := range v.ground {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (v *worldView) enemyList() []replication.EnemyPayload {
	out := make([]replication.EnemyPayload, 0, len(v.enemies))
	for _, e := range v.enemies {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// apply folds msg into the view and returns a line for the event log,
// or "" when the change is only visible in the side panel.
func (v *worldView) apply(msg replication.Message) (string, error) {
	switch msg.Type {
	case replication.MsgInventory:
		return "", msg.Decode(&v.inventory)
	case replication.MsgHotbar:
		return "", msg.Decode(&v.hotbar)
	case replication.MsgQuestLog:
		return "", msg.Decode(&v.quests)

	case replication.MsgDialogue:
		var ev dialogue.Event
		if err := msg.Decode(&ev); err != nil {
			return "", err
		}
		if ev.Type == dialogue.EventClosed {
			v.dialogue = nil
			return "", nil
		}
		frame := ev.Frame
		v.dialogue = &frame
		if ev.Type == dialogue.EventLine && frame.Text == frame.FullText {
			return fmt.Sprintf("%s: %s", frame.NPCName, frame.FullText), nil
		}
		return "", nil

	case replication.MsgAnswer:
		var p replication.AnswerPayload
		if err := msg.Decode(&p); err != nil {
			return "", err
		}
		if p.Correct {
			return "Correct!", nil
		}
		return "Not quite.", nil

	case replication.MsgPickupShown:
		var p replication.PickupShownPayload
		if err := msg.Decode(&p); err != nil {
			return "", err
		}
		return fmt.Sprintf("Picked up %s x%d", p.ItemName, p.Quantity), nil

	case replication.MsgSpawned:
		var p replication.SpawnedPayload
		if err := msg.Decode(&p); err != nil {
			return "", err
		}
		v.ground[p.Item.ID] = p.Item
		return "", nil

	case replication.MsgDespawned:
		var p replication.DespawnedPayload
		if err := msg.Decode(&p); err != nil {
			return "", err
		}
		delete(v.ground, p.ID)
		return "", nil

	case replication.MsgChestState:
		var p replication.ChestStatePayload
		if err := msg.Decode(&p); err != nil {
			return "", err
		}
		v.chests[p.ChestID] = p.Opened
		return "", nil

	case replication.MsgEnemySpawned:
		var p replication.EnemyPayload
		if err := msg.Decode(&p); err != nil {
			return "", err
		}
		v.enemies[p.ID] = p
		return "", nil

	case replication.MsgEnemyDefeated:
		var p replication.EnemyDefeatedPayload
		if err := msg.Decode(&p); err != nil {
			return "", err
		}
		name := v.enemies[p.ID].Name
		delete(v.enemies, p.ID)
		if name == "" {
			name = "An enemy"
		}
		return fmt.Sprintf("%s was defeated", name), nil

	case replication.MsgError:
		var p replication.ErrorPayload
		if err := msg.Decode(&p); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%s: %s", p.Request, p.Error)
	}
	return "", nil
}

// parseCommand turns one line of input into a request for the server.
// Numbered arguments index the lists shown in the side panel, from 1.
func parseCommand(input string, v *worldView, rng *rand.Rand) (replication.Message, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return replication.Message{}, errors.New("empty command")
	}
	args := fields[1:]
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d argument(s)", fields[0], n)
		}
		return nil
	}

	switch fields[0] {
	case "/open":
		if err := need(1); err != nil {
			return replication.Message{}, err
		}
		return replication.NewMessage(replication.MsgOpenChest, replication.OpenChestRequest{ChestID: args[0]})

	case "/pickup":
		if err := need(1); err != nil {
			return replication.Message{}, err
		}
		items := v.groundList()
		i, err := index(args[0], len(items))
		if err != nil {
			return replication.Message{}, err
		}
		return replication.NewMessage(replication.MsgPickup, replication.PickupRequest{ItemID: items[i].ID})

	case "/talk":
		if err := need(1); err != nil {
			return replication.Message{}, err
		}
		return replication.NewMessage(replication.MsgInteract, replication.InteractRequest{NPCID: args[0]})

	case "/choose":
		if err := need(1); err != nil {
			return replication.Message{}, err
		}
		if v.dialogue == nil {
			return replication.Message{}, errNoDialogue
		}
		i, err := index(args[0], len(v.dialogue.Choices))
		if err != nil {
			return replication.Message{}, err
		}
		return replication.NewMessage(replication.MsgChoose, replication.ChooseRequest{NPCID: v.dialogue.NPCID, Index: i})

	case "/close":
		if v.dialogue == nil {
			return replication.Message{}, errNoDialogue
		}
		return replication.NewMessage(replication.MsgCloseDialogue, replication.InteractRequest{NPCID: v.dialogue.NPCID})

	case "/attack":
		if err := need(1); err != nil {
			return replication.Message{}, err
		}
		enemies := v.enemyList()
		i, err := index(args[0], len(enemies))
		if err != nil {
			return replication.Message{}, err
		}
		damage := 1 + rng.IntN(6)
		if len(args) > 1 {
			if damage, err = strconv.Atoi(args[1]); err != nil {
				return replication.Message{}, fmt.Errorf("invalid damage %q", args[1])
			}
		}
		return replication.NewMessage(replication.MsgAttack, replication.AttackRequest{EnemyID: enemies[i].ID, Damage: damage})

	case "/move":
		if err := need(2); err != nil {
			return replication.Message{}, err
		}
		x, errX := strconv.ParseFloat(args[0], 64)
		y, errY := strconv.ParseFloat(args[1], 64)
		if errX != nil || errY != nil {
			return replication.Message{}, errors.New("usage: /move x y [map]")
		}
		req := replication.SetPositionRequest{X: x, Y: y}
		if len(args) > 2 {
			req.MapBoundary = args[2]
		}
		return replication.NewMessage(replication.MsgSetPosition, req)

	case "/hotbar", "/bag":
		if err := need(1); err != nil {
			return replication.Message{}, err
		}
		slot, err := strconv.Atoi(args[0])
		if err != nil {
			return replication.Message{}, fmt.Errorf("invalid slot %q", args[0])
		}
		t := replication.MsgMoveToHotbar
		if fields[0] == "/bag" {
			t = replication.MsgMoveToBag
		}
		return replication.NewMessage(t, replication.SlotRequest{Slot: slot})

	case "/save":
		return replication.Message{Type: replication.MsgSave}, nil
	}
	return replication.Message{}, fmt.Errorf("unknown command %s (try /help)", fields[0])
}

// index converts a 1-based list position to a slice index.
func index(arg string, n int) (int, error) {
	i, err := strconv.Atoi(arg)
	if err != nil || i < 1 || i > n {
		return 0, fmt.Errorf("choose a number between 1 and %d", n)
	}
	return i - 1, nil
}
