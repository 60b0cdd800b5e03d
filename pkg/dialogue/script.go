package dialogue

import (
	"errors"
	"fmt"
	"time"
)

// NPC identifies the speaker of a script. ID is the stable key used for
// quest objectives; Name is display only.
type NPC struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Portrait string `json:"portrait,omitempty"`
}

// Line is one utterance of a script.
type Line struct {
	Text             string `json:"text"`
	AutoAdvance      bool   `json:"auto_advance,omitempty"`
	EndsConversation bool   `json:"ends_conversation,omitempty"`
}

// Choice is one selectable option. A nil Next means the following line.
type Choice struct {
	Label       string `json:"label"`
	Next        *int   `json:"next,omitempty"`
	GrantsQuest bool   `json:"grants_quest,omitempty"`
	Correct     bool   `json:"correct,omitempty"`
}

// ChoiceSet binds options to the line they follow.
type ChoiceSet struct {
	Line    int      `json:"line"`
	Choices []Choice `json:"choices"`
}

// Script is everything an NPC can say.
type Script struct {
	NPC            NPC         `json:"npc"`
	Lines          []Line      `json:"lines"`
	ChoiceSets     []ChoiceSet `json:"choice_sets,omitempty"`
	QuestID        string      `json:"quest_id,omitempty"`
	InProgressLine *int        `json:"in_progress_line,omitempty"`
	CompletedLine  *int        `json:"completed_line,omitempty"`
	Quiz           bool        `json:"quiz,omitempty"`
	QuizReward     int         `json:"quiz_reward,omitempty"`
	TypingMS       int         `json:"typing_ms,omitempty"`
	AutoAdvanceMS  int         `json:"auto_advance_ms,omitempty"`
}

// TypingInterval is the delay between revealed characters.
func (s *Script) TypingInterval() time.Duration {
	return time.Duration(s.TypingMS) * time.Millisecond
}

// AutoAdvanceDelay is the pause before an auto-advance line moves on.
func (s *Script) AutoAdvanceDelay() time.Duration {
	return time.Duration(s.AutoAdvanceMS) * time.Millisecond
}

// ChoicesFor returns the options bound to line, if any.
func (s *Script) ChoicesFor(line int) []Choice {
	for _, cs := range s.ChoiceSets {
		if cs.Line == line {
			return cs.Choices
		}
	}
	return nil
}

// Validate reports structural problems. Next indexes outside the script
// are allowed and end the conversation.
func (s *Script) Validate() error {
	if s.NPC.ID == "" {
		return errors.New("npc id is required")
	}
	if len(s.Lines) == 0 {
		return fmt.Errorf("npc %s: script has no lines", s.NPC.ID)
	}
	seen := map[int]bool{}
	for i, cs := range s.ChoiceSets {
		if cs.Line < 0 || cs.Line >= len(s.Lines) {
			return fmt.Errorf("npc %s: choice set %d bound to missing line %d", s.NPC.ID, i, cs.Line)
		}
		if seen[cs.Line] {
			return fmt.Errorf("npc %s: line %d has more than one choice set", s.NPC.ID, cs.Line)
		}
		seen[cs.Line] = true
		if len(cs.Choices) == 0 {
			return fmt.Errorf("npc %s: choice set %d is empty", s.NPC.ID, i)
		}
		for _, c := range cs.Choices {
			if c.GrantsQuest && s.QuestID == "" {
				return fmt.Errorf("npc %s: choice %q grants a quest but the script has none", s.NPC.ID, c.Label)
			}
		}
	}
	for name, p := range map[string]*int{"in_progress_line": s.InProgressLine, "completed_line": s.CompletedLine} {
		if p != nil && (*p < 0 || *p >= len(s.Lines)) {
			return fmt.Errorf("npc %s: %s %d out of range", s.NPC.ID, name, *p)
		}
	}
	if s.TypingMS < 0 || s.AutoAdvanceMS < 0 {
		return fmt.Errorf("npc %s: negative timing", s.NPC.ID)
	}
	return nil
}
