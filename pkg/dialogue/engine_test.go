package dialogue

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/questkeeper/pkg/quest"
)

type fakeQuests struct {
	status   map[string]quest.Status
	accepted []string
	talks    []string
	turnedIn []string
	turnErr  error
}

func newFakeQuests() *fakeQuests {
	return &fakeQuests{status: map[string]quest.Status{}}
}

func (f *fakeQuests) QuestStatus(id string) quest.Status { return f.status[id] }

func (f *fakeQuests) AcceptQuest(id string) bool {
	f.accepted = append(f.accepted, id)
	f.status[id] = quest.StatusInProgress
	return true
}

func (f *fakeQuests) RecordTalk(npcID string) { f.talks = append(f.talks, npcID) }

func (f *fakeQuests) TurnIn(id string) error {
	if f.turnErr != nil {
		return f.turnErr
	}
	f.turnedIn = append(f.turnedIn, id)
	f.status[id] = quest.StatusHandedIn
	return nil
}

type goldCounter struct{ total int }

func (g *goldCounter) GiveGold(n int) { g.total += n }

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) DialogueEvent(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) ofType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func intp(i int) *int { return &i }

func newTestEngine(q Quests, r Rewarder, obs Observer) *Engine {
	return NewEngine(Config{
		Quests:   q,
		Rewards:  r,
		Observer: obs,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func tannerScript() *Script {
	return &Script{
		NPC: NPC{ID: "tanner", Name: "Hilda"},
		Lines: []Line{
			{Text: "Bring me wolf pelts?"},
			{Text: "Good hunting.", EndsConversation: true},
			{Text: "Maybe later then.", EndsConversation: true},
			{Text: "Still waiting on those pelts."},
			{Text: "Fine work!", EndsConversation: true},
		},
		ChoiceSets: []ChoiceSet{{Line: 0, Choices: []Choice{
			{Label: "Yes", GrantsQuest: true},
			{Label: "No", Next: intp(2)},
		}}},
		QuestID:        "wolf_pelts",
		InProgressLine: intp(3),
		CompletedLine:  intp(4),
	}
}

func TestInteractStartLine(t *testing.T) {
	tests := []struct {
		name   string
		status quest.Status
		want   int
	}{
		{"not started", quest.StatusNotStarted, 0},
		{"in progress", quest.StatusInProgress, 3},
		{"completed", quest.StatusCompleted, 4},
		{"handed in", quest.StatusHandedIn, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newFakeQuests()
			q.status["wolf_pelts"] = tt.status
			log := &eventLog{}
			e := newTestEngine(q, nil, log)
			e.SetScript(tannerScript())

			require.NoError(t, e.Interact("tanner"))
			lines := log.ofType(EventLine)
			require.NotEmpty(t, lines)
			assert.Equal(t, tt.want, lines[0].Frame.Line)
		})
	}
}

func TestInteractRejections(t *testing.T) {
	e := newTestEngine(newFakeQuests(), nil, nil)
	assert.ErrorIs(t, e.Interact("nobody"), ErrUnknownNPC)

	e.SetScript(tannerScript())
	require.NoError(t, e.Interact("tanner"))
	assert.ErrorIs(t, e.Interact("tanner"), ErrConversationActive)
}

func TestChooseGrantsQuest(t *testing.T) {
	q := newFakeQuests()
	log := &eventLog{}
	e := newTestEngine(q, nil, log)
	e.SetScript(tannerScript())

	require.NoError(t, e.Interact("tanner"))
	f := e.Frame("tanner")
	assert.Equal(t, StateAwaitingChoice, f.State)
	assert.Equal(t, []string{"Yes", "No"}, f.Choices)

	assert.ErrorIs(t, e.Choose("tanner", 5), ErrInvalidChoice)
	require.NoError(t, e.Choose("tanner", 0))

	assert.Equal(t, []string{"wolf_pelts"}, q.accepted)
	assert.Equal(t, StateIdle, e.Frame("tanner").State, "line 1 ends the conversation")
	assert.Equal(t, []string{"tanner"}, q.talks)
	assert.Len(t, log.ofType(EventClosed), 1)
}

func TestChooseDoesNotRegrantActiveQuest(t *testing.T) {
	q := newFakeQuests()
	q.status["wolf_pelts"] = quest.StatusInProgress
	s := tannerScript()
	s.InProgressLine = nil
	e := newTestEngine(q, nil, nil)
	e.SetScript(s)

	require.NoError(t, e.Interact("tanner"))
	require.NoError(t, e.Choose("tanner", 0))
	assert.Empty(t, q.accepted)
}

func TestEndLineNeverPresentsChoices(t *testing.T) {
	s := &Script{
		NPC:        NPC{ID: "guard", Name: "Guard"},
		Lines:      []Line{{Text: "Move along.", EndsConversation: true, AutoAdvance: true}},
		ChoiceSets: []ChoiceSet{{Line: 0, Choices: []Choice{{Label: "Okay"}}}},
	}
	log := &eventLog{}
	e := newTestEngine(newFakeQuests(), nil, log)
	e.SetScript(s)

	require.NoError(t, e.Interact("guard"))
	assert.Empty(t, log.ofType(EventChoices))
	assert.Len(t, log.ofType(EventClosed), 1)
}

func TestAwaitingCloseAndClose(t *testing.T) {
	q := newFakeQuests()
	q.status["wolf_pelts"] = quest.StatusInProgress
	e := newTestEngine(q, nil, nil)
	e.SetScript(tannerScript())

	require.NoError(t, e.Interact("tanner"))
	assert.Equal(t, StateAwaitingClose, e.Frame("tanner").State)
	assert.ErrorIs(t, e.Choose("tanner", 0), ErrNoChoices)

	require.NoError(t, e.Close("tanner"))
	assert.Equal(t, []string{"tanner"}, q.talks)
	assert.Empty(t, q.turnedIn)
	assert.ErrorIs(t, e.Close("tanner"), ErrNoConversation)

	require.NoError(t, e.Interact("tanner"), "re-interaction starts fresh")
}

func TestCloseHandsInCompletedQuest(t *testing.T) {
	q := newFakeQuests()
	q.status["wolf_pelts"] = quest.StatusCompleted
	e := newTestEngine(q, nil, nil)
	e.SetScript(tannerScript())

	require.NoError(t, e.Interact("tanner"))
	assert.Equal(t, []string{"wolf_pelts"}, q.turnedIn)
}

func TestCloseKeepsQuestWhenHandInFails(t *testing.T) {
	q := newFakeQuests()
	q.status["wolf_pelts"] = quest.StatusCompleted
	q.turnErr = errors.New("insufficient items")
	e := newTestEngine(q, nil, nil)
	e.SetScript(tannerScript())

	require.NoError(t, e.Interact("tanner"))
	assert.Equal(t, quest.StatusCompleted, q.status["wolf_pelts"])
}

func TestAutoAdvance(t *testing.T) {
	s := &Script{
		NPC: NPC{ID: "bard", Name: "Bard"},
		Lines: []Line{
			{Text: "La", AutoAdvance: true},
			{Text: "La la", AutoAdvance: true},
			{Text: "Fin."},
		},
	}
	log := &eventLog{}
	e := newTestEngine(nil, nil, log)
	e.SetScript(s)

	require.NoError(t, e.Interact("bard"))
	f := e.Frame("bard")
	assert.Equal(t, 2, f.Line)
	assert.Equal(t, StateAwaitingClose, f.State)
}

func TestOutOfRangeNextEnds(t *testing.T) {
	s := &Script{
		NPC:        NPC{ID: "sage", Name: "Sage"},
		Lines:      []Line{{Text: "Ask."}},
		ChoiceSets: []ChoiceSet{{Line: 0, Choices: []Choice{{Label: "Bye", Next: intp(40)}}}},
	}
	q := newFakeQuests()
	e := newTestEngine(q, nil, nil)
	e.SetScript(s)

	require.NoError(t, e.Interact("sage"))
	require.NoError(t, e.Choose("sage", 0))
	assert.Equal(t, StateIdle, e.Frame("sage").State)
	assert.Equal(t, []string{"sage"}, q.talks)
}

func quizScript() *Script {
	return &Script{
		NPC: NPC{ID: "mentor", Name: "Ms. Reed"},
		Lines: []Line{
			{Text: "Q: What is the opposite of hot?"},
			{Text: "Correct!", EndsConversation: true},
			{Text: "Not quite. Try again."},
		},
		ChoiceSets: []ChoiceSet{{Line: 0, Choices: []Choice{
			{Label: "warm", Next: intp(2)},
			{Label: "cold", Next: intp(1), Correct: true},
		}}},
		Quiz:       true,
		QuizReward: 0,
	}
}

func TestQuizRetryAfterWrongAnswer(t *testing.T) {
	gold := &goldCounter{}
	log := &eventLog{}
	e := newTestEngine(newFakeQuests(), gold, log)
	e.SetScript(quizScript())

	require.NoError(t, e.Interact("mentor"))
	require.NoError(t, e.Choose("mentor", 0))

	f := e.Frame("mentor")
	assert.Equal(t, StateAwaitingRetry, f.State)
	assert.Equal(t, []string{RetryLabel}, f.Choices)
	answers := log.ofType(EventAnswered)
	require.Len(t, answers, 1)
	assert.False(t, answers[0].Correct)

	require.NoError(t, e.Choose("mentor", 0))
	f = e.Frame("mentor")
	assert.Equal(t, 0, f.Line)
	assert.Equal(t, StateAwaitingChoice, f.State)
	assert.Equal(t, []string{"warm", "cold"}, f.Choices)
	assert.Len(t, log.ofType(EventAnswered), 1, "retry is not an answer")

	require.NoError(t, e.Choose("mentor", 1))
	answers = log.ofType(EventAnswered)
	require.Len(t, answers, 2)
	assert.True(t, answers[1].Correct)
	assert.Equal(t, 1, gold.total, "reward is at least one")
	assert.Equal(t, StateIdle, e.Frame("mentor").State)
}

func TestQuizCorrectAnswerOffersNoRetry(t *testing.T) {
	s := quizScript()
	s.Lines[1].EndsConversation = false
	s.QuizReward = 5
	gold := &goldCounter{}
	log := &eventLog{}
	e := newTestEngine(newFakeQuests(), gold, log)
	e.SetScript(s)

	require.NoError(t, e.Interact("mentor"))
	require.NoError(t, e.Choose("mentor", 1))

	f := e.Frame("mentor")
	assert.Equal(t, StateAwaitingClose, f.State)
	assert.Empty(t, f.Choices)
	assert.Equal(t, 5, gold.total)
}

func TestSetScriptAppliesToNextInteraction(t *testing.T) {
	e := newTestEngine(newFakeQuests(), nil, nil)
	e.SetScript(quizScript())
	require.NoError(t, e.Interact("mentor"))

	next := quizScript()
	next.Lines[0].Text = "Q: Another question"
	e.SetScript(next)
	assert.Equal(t, "Q: What is the opposite of hot?", e.Frame("mentor").FullText)

	require.NoError(t, e.Close("mentor"))
	require.NoError(t, e.Interact("mentor"))
	assert.Equal(t, "Q: Another question", e.Frame("mentor").FullText)
}

func TestTypingRevealsOverTime(t *testing.T) {
	s := &Script{
		NPC:      NPC{ID: "crier", Name: "Crier"},
		Lines:    []Line{{Text: "Hear ye"}},
		TypingMS: 5,
	}
	log := &eventLog{}
	e := newTestEngine(nil, nil, log)
	e.SetScript(s)

	require.NoError(t, e.Interact("crier"))
	assert.Equal(t, StateTyping, e.Frame("crier").State)

	require.Eventually(t, func() bool {
		return e.Frame("crier").State == StateAwaitingClose
	}, time.Second, 5*time.Millisecond)

	f := e.Frame("crier")
	assert.Equal(t, "Hear ye", f.Text)
	assert.Greater(t, len(log.ofType(EventLine)), 2)
}

func TestCloseCancelsTyping(t *testing.T) {
	s := &Script{
		NPC:      NPC{ID: "crier", Name: "Crier"},
		Lines:    []Line{{Text: "A very long proclamation", AutoAdvance: true}, {Text: "More"}},
		TypingMS: 20,
	}
	log := &eventLog{}
	e := newTestEngine(nil, nil, log)
	e.SetScript(s)

	require.NoError(t, e.Interact("crier"))
	require.NoError(t, e.Close("crier"))
	count := len(log.events)

	time.Sleep(60 * time.Millisecond)
	log.mu.Lock()
	defer log.mu.Unlock()
	assert.Equal(t, count, len(log.events), "no events after close")
}
