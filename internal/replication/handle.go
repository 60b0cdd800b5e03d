package replication

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwebster45206/questkeeper/pkg/save"
)

var ErrUnknownMessage = errors.New("unknown message type")

// Handle applies one client message from playerID. A failed request is
// reported back to that player as an error message and returned.
func (s *Server) Handle(ctx context.Context, playerID uuid.UUID, msg Message) error {
	err := s.dispatch(ctx, playerID, msg)
	if err != nil {
		s.logger.Debug("Request failed", "player_id", playerID, "type", msg.Type, "error", err)
		s.send(playerID, MsgError, ErrorPayload{Request: msg.Type, Error: err.Error()})
	}
	return err
}

func (s *Server) dispatch(ctx context.Context, playerID uuid.UUID, msg Message) error {
	switch msg.Type {
	case MsgOpenChest:
		var req OpenChestRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		return s.RequestOpenChest(ctx, playerID, req.ChestID)

	case MsgPickup:
		var req PickupRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		return s.RequestPickup(ctx, playerID, req.ItemID)

	case MsgInteract:
		var req InteractRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		return s.Interact(playerID, req.NPCID)

	case MsgChoose:
		var req ChooseRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		return s.Choose(playerID, req.NPCID, req.Index)

	case MsgCloseDialogue:
		var req InteractRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		return s.CloseDialogue(playerID, req.NPCID)

	case MsgAttack:
		var req AttackRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		return s.RequestAttack(ctx, playerID, req.EnemyID, req.Damage)

	case MsgSetPosition:
		var req SetPositionRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		return s.SetPosition(playerID, save.Position{X: req.X, Y: req.Y}, req.MapBoundary)

	case MsgMoveToHotbar, MsgMoveToBag:
		var req SlotRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		sess, err := s.session(playerID)
		if err != nil {
			return err
		}
		if msg.Type == MsgMoveToHotbar {
			return sess.MoveToHotbar(req.Slot)
		}
		return sess.MoveToBackpack(req.Slot)

	case MsgSave:
		sess, err := s.session(playerID)
		if err != nil {
			return err
		}
		return sess.Save(ctx)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}
