package session

import (
	"fmt"

	"github.com/jwebster45206/questkeeper/pkg/quest"
)

// ObjectiveView is one objective as shown to the player.
type ObjectiveView struct {
	Kind        quest.Kind `json:"kind"`
	Description string     `json:"description,omitempty"`
	Current     int        `json:"current"`
	Required    int        `json:"required"`
}

// QuestView is one active quest as shown to the player.
type QuestView struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Status     string          `json:"status"`
	Objectives []ObjectiveView `json:"objectives"`
}

// QuestLogView is the whole quest log as shown to the player.
type QuestLogView struct {
	Active   []QuestView `json:"active"`
	HandedIn []string    `json:"handed_in"`
}

// AcceptQuest starts quest id. Accepting an active quest is a no-op.
func (s *Session) AcceptQuest(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.registry.Get(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownQuest, id)
	}
	return s.quests.Accept(def, s.inv.Counts()), nil
}

// HandIn turns in quest id and pays its rewards.
func (s *Session) HandIn(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnIn(id)
}

// QuestStatus returns the state of quest id.
func (s *Session) QuestStatus(id string) quest.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quests.Status(id)
}

// QuestLog returns the player-facing view of the quest log.
func (s *Session) QuestLog() QuestLogView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questView()
}

// OnEnemyDefeated advances DefeatEnemy objectives for enemyTypeID.
func (s *Session) OnEnemyDefeated(enemyTypeID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quests.RecordEnemyDefeated(enemyTypeID)
}

// turnIn hands the quest in first and pays only on success, so a failed
// attempt can be retried without paying twice.
func (s *Session) turnIn(id string) error {
	def, ok := s.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuest, id)
	}
	if err := s.quests.HandIn(id, s.inv); err != nil {
		return err
	}
	s.payer.GiveQuestReward(def)
	s.logger.Info("Quest handed in", "quest_id", id)
	return nil
}

func (s *Session) questView() QuestLogView {
	v := QuestLogView{HandedIn: s.quests.HandedIn()}
	for _, p := range s.quests.Active() {
		def := p.Definition()
		amounts := p.Amounts()
		qv := QuestView{ID: def.ID, Title: def.Title, Status: s.quests.Status(def.ID).String()}
		for i, o := range def.Objectives {
			qv.Objectives = append(qv.Objectives, ObjectiveView{
				Kind:        o.Target.Kind(),
				Description: o.Description,
				Current:     amounts[i],
				Required:    o.Required,
			})
		}
		v.Active = append(v.Active, qv)
	}
	return v
}

// questPort is the dialogue engine's view of the session. The engine
// calls it with the session lock already held.
type questPort struct{ s *Session }

func (p questPort) QuestStatus(id string) quest.Status { return p.s.quests.Status(id) }

func (p questPort) AcceptQuest(id string) bool {
	def, ok := p.s.registry.Get(id)
	if !ok {
		p.s.logger.Warn("Dialogue references unknown quest", "quest_id", id)
		return false
	}
	return p.s.quests.Accept(def, p.s.inv.Counts())
}

func (p questPort) RecordTalk(npcID string) { p.s.quests.RecordTalk(npcID) }

func (p questPort) TurnIn(id string) error { return p.s.turnIn(id) }
