package dialogue

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/jwebster45206/questkeeper/pkg/quest"
)

var (
	ErrUnknownNPC         = errors.New("npc has no dialogue script")
	ErrConversationActive = errors.New("conversation already active")
	ErrNoConversation     = errors.New("no active conversation")
	ErrNoChoices          = errors.New("no choices are being presented")
	ErrInvalidChoice      = errors.New("choice index out of range")
)

// RetryLabel is the text of the single option offered after a wrong answer.
const RetryLabel = "Try again"

// State is the position of a conversation in its lifecycle.
type State string

const (
	StateIdle           State = "idle"
	StateTyping         State = "typing"
	StateAwaitingChoice State = "awaiting_choice"
	StateAwaitingRetry  State = "awaiting_retry"
	StateAutoAdvance    State = "auto_advance"
	StateAwaitingClose  State = "awaiting_close"
	StateEnded          State = "ended"
)

// Quests is the quest side of a player as seen from dialogue.
type Quests interface {
	QuestStatus(questID string) quest.Status
	AcceptQuest(questID string) bool
	RecordTalk(npcID string)
	TurnIn(questID string) error
}

// Rewarder pays quiz gold.
type Rewarder interface {
	GiveGold(amount int)
}

// ScriptProvider supplies a fresh script at the start of each
// conversation. It is called with the player lock held.
type ScriptProvider interface {
	ScriptFor(npc NPC) (*Script, bool)
}

// Config wires an Engine to its collaborators. Locker is the lock that
// serializes every mutation of the owning player's state.
type Config struct {
	Locker   sync.Locker
	Quests   Quests
	Rewards  Rewarder
	Observer Observer
	Logger   *slog.Logger
}

type conversation struct {
	script    *Script
	line      int
	state     State
	revealed  int
	choices   []Choice
	retry     bool
	quizLine  int
	lastWrong bool
}

// Engine runs one player's conversations, at most one per NPC.
type Engine struct {
	mu        sync.Locker
	quests    Quests
	rewards   Rewarder
	observer  Observer
	logger    *slog.Logger
	seq       *Sequencer
	scripts   map[string]*Script
	providers map[string]ScriptProvider
	convs     map[string]*conversation
}

// NewEngine creates an engine with no scripts.
func NewEngine(cfg Config) *Engine {
	if cfg.Locker == nil {
		cfg.Locker = &sync.Mutex{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		mu:        cfg.Locker,
		quests:    cfg.Quests,
		rewards:   cfg.Rewards,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
		seq:       NewSequencer(cfg.Locker),
		scripts:   make(map[string]*Script),
		providers: make(map[string]ScriptProvider),
		convs:     make(map[string]*conversation),
	}
}

// SetScript installs or replaces an NPC's script. A conversation already
// running keeps the script it started with.
func (e *Engine) SetScript(s *Script) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts[s.NPC.ID] = s
}

// Attach makes p the script source for npcID. The installed script is
// replaced by p's script whenever a conversation with npcID starts.
func (e *Engine) Attach(npcID string, p ScriptProvider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.providers[npcID] = p
}

// Interact starts a conversation with npcID from Idle.
func (e *Engine) Interact(npcID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	script, ok := e.scripts[npcID]
	if !ok {
		return ErrUnknownNPC
	}
	if _, active := e.convs[npcID]; active {
		return ErrConversationActive
	}
	if p, ok := e.providers[npcID]; ok {
		if next, ok := p.ScriptFor(script.NPC); ok {
			next.NPC = script.NPC
			script = next
			e.scripts[npcID] = next
		}
	}
	c := &conversation{script: script, quizLine: -1}
	e.convs[npcID] = c
	e.emit(EventOpened, c, false)
	e.showLine(c, e.startLine(script))
	return nil
}

func (e *Engine) startLine(s *Script) int {
	if s.QuestID == "" || e.quests == nil {
		return 0
	}
	switch e.quests.QuestStatus(s.QuestID) {
	case quest.StatusInProgress:
		if s.InProgressLine != nil {
			return *s.InProgressLine
		}
	case quest.StatusCompleted:
		if s.CompletedLine != nil {
			return *s.CompletedLine
		}
	}
	return 0
}

// Choose resolves the option at index of the presented choices.
func (e *Engine) Choose(npcID string, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.convs[npcID]
	if !ok {
		return ErrNoConversation
	}
	if c.state != StateAwaitingChoice && c.state != StateAwaitingRetry {
		return ErrNoChoices
	}
	if index < 0 || index >= len(c.choices) {
		return ErrInvalidChoice
	}
	choice := c.choices[index]
	s := c.script

	if c.retry {
		e.showLine(c, *choice.Next)
		return nil
	}
	if choice.GrantsQuest && s.QuestID != "" && e.quests != nil {
		switch e.quests.QuestStatus(s.QuestID) {
		case quest.StatusInProgress, quest.StatusCompleted:
		default:
			if e.quests.AcceptQuest(s.QuestID) {
				e.logger.Info("Quest accepted through dialogue", "npc_id", s.NPC.ID, "quest_id", s.QuestID)
			}
		}
	}
	if s.Quiz {
		c.lastWrong = !choice.Correct
		e.emit(EventAnswered, c, choice.Correct)
		if choice.Correct && e.rewards != nil {
			e.rewards.GiveGold(max(1, s.QuizReward))
		}
	}
	next := c.line + 1
	if choice.Next != nil {
		next = *choice.Next
	}
	e.showLine(c, next)
	return nil
}

// Close ends the conversation with npcID.
func (e *Engine) Close(npcID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.convs[npcID]
	if !ok {
		return ErrNoConversation
	}
	e.end(c)
	return nil
}

// Reset discards every conversation without reporting progress.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq.CancelAll()
	clear(e.convs)
}

// Frame returns the current view of the conversation with npcID.
func (e *Engine) Frame(npcID string) Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.convs[npcID]
	if !ok {
		f := Frame{NPCID: npcID, State: StateIdle, Line: -1}
		if s, ok := e.scripts[npcID]; ok {
			f.NPCName, f.Portrait = s.NPC.Name, s.NPC.Portrait
		}
		return f
	}
	return c.frame()
}

func (e *Engine) showLine(c *conversation, idx int) {
	key := c.script.NPC.ID
	c.choices = nil
	c.retry = false
	if idx < 0 || idx >= len(c.script.Lines) {
		e.end(c)
		return
	}
	c.line = idx
	c.state = StateTyping
	c.revealed = 0
	e.emit(EventLine, c, false)

	text := []rune(c.script.Lines[idx].Text)
	e.seq.Run(key, c.script.TypingInterval(), len(text),
		func(n int) {
			c.revealed = n
			e.emit(EventLine, c, false)
		},
		func() {
			c.revealed = len(text)
			e.emit(EventLine, c, false)
			e.typed(c)
		})
}

func (e *Engine) typed(c *conversation) {
	s := c.script
	line := s.Lines[c.line]
	switch {
	case line.EndsConversation:
		c.state = StateEnded
		e.end(c)
	case s.Quiz && c.lastWrong && c.quizLine >= 0 && c.line != c.quizLine:
		back := c.quizLine
		c.choices = []Choice{{Label: RetryLabel, Next: &back}}
		c.retry = true
		c.state = StateAwaitingRetry
		e.emit(EventChoices, c, false)
	case line.AutoAdvance:
		c.state = StateAutoAdvance
		e.seq.After(s.NPC.ID, s.AutoAdvanceDelay(), func() {
			e.showLine(c, c.line+1)
		})
	default:
		if choices := s.ChoicesFor(c.line); len(choices) > 0 {
			c.choices = choices
			c.state = StateAwaitingChoice
			if s.Quiz {
				c.quizLine = c.line
			}
			e.emit(EventChoices, c, false)
			return
		}
		c.state = StateAwaitingClose
	}
}

func (e *Engine) end(c *conversation) {
	s := c.script
	npcID := s.NPC.ID
	e.seq.Cancel(npcID)
	if e.convs[npcID] != c {
		return
	}
	delete(e.convs, npcID)
	c.state = StateEnded
	c.choices = nil
	e.emit(EventClosed, c, false)

	if e.quests == nil {
		return
	}
	e.quests.RecordTalk(npcID)
	if s.QuestID != "" && e.quests.QuestStatus(s.QuestID) == quest.StatusCompleted {
		if err := e.quests.TurnIn(s.QuestID); err != nil {
			e.logger.Info("Quest hand-in deferred", "npc_id", npcID, "quest_id", s.QuestID, "error", err)
		}
	}
}

func (e *Engine) emit(t EventType, c *conversation, correct bool) {
	if e.observer == nil {
		return
	}
	e.observer.DialogueEvent(Event{Type: t, NPCID: c.script.NPC.ID, Frame: c.frame(), Correct: correct})
}
