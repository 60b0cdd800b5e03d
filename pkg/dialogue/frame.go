package dialogue

// EventType names a dialogue notification.
type EventType string

const (
	EventOpened   EventType = "dialogue_opened"
	EventLine     EventType = "dialogue_line"
	EventChoices  EventType = "dialogue_choices"
	EventAnswered EventType = "dialogue_answered"
	EventClosed   EventType = "dialogue_closed"
)

// Frame is what a client needs to draw a conversation.
type Frame struct {
	NPCID    string   `json:"npc_id"`
	NPCName  string   `json:"npc_name"`
	Portrait string   `json:"portrait,omitempty"`
	State    State    `json:"state"`
	Line     int      `json:"line"`
	Text     string   `json:"text"`
	FullText string   `json:"full_text"`
	Choices  []string `json:"choices,omitempty"`
}

// Event is delivered to the Observer under the player lock.
type Event struct {
	Type    EventType `json:"type"`
	NPCID   string    `json:"npc_id"`
	Frame   Frame     `json:"frame"`
	Correct bool      `json:"correct,omitempty"`
}

// Observer receives dialogue events. Implementations must not block.
type Observer interface {
	DialogueEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) DialogueEvent(ev Event) { f(ev) }

type multiObserver []Observer

func (m multiObserver) DialogueEvent(ev Event) {
	for _, o := range m {
		o.DialogueEvent(ev)
	}
}

// MultiObserver fans events out to every non-nil observer in order.
func MultiObserver(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (c *conversation) frame() Frame {
	f := Frame{
		NPCID:    c.script.NPC.ID,
		NPCName:  c.script.NPC.Name,
		Portrait: c.script.NPC.Portrait,
		State:    c.state,
		Line:     c.line,
	}
	if c.line >= 0 && c.line < len(c.script.Lines) {
		full := []rune(c.script.Lines[c.line].Text)
		f.FullText = string(full)
		f.Text = string(full[:min(c.revealed, len(full))])
	}
	for _, ch := range c.choices {
		f.Choices = append(f.Choices, ch.Label)
	}
	return f
}
