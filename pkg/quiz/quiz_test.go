package quiz

import (
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/questkeeper/pkg/dialogue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRand() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }

func sampleQuestions() []*Question {
	return []*Question{
		{ID: "hot", Prompt: "Opposite of hot?", Options: []string{"warm", "cold"}, CorrectIndex: 1, Difficulty: A1, Type: TypeAntonym},
		{ID: "big", Prompt: "Synonym of big?", Options: []string{"large", "tiny", "thin"}, CorrectIndex: 0, Difficulty: A2, Type: TypeSynonym, RewardGold: 3},
		{ID: "hard", Prompt: "Ephemeral means?", Options: []string{"lasting", "fleeting"}, CorrectIndex: 1, Difficulty: C1, Type: TypeMCQ},
		{ID: "broken", Prompt: "Only one option", Options: []string{"a"}, Difficulty: A1, Type: TypeMCQ},
	}
}

func TestDifficultyJSON(t *testing.T) {
	data, err := json.Marshal(B2)
	require.NoError(t, err)
	assert.Equal(t, `"B2"`, string(data))

	var d Difficulty
	require.NoError(t, json.Unmarshal([]byte(`"c1"`), &d))
	assert.Equal(t, C1, d)
	assert.Error(t, json.Unmarshal([]byte(`"D1"`), &d))
}

func TestBankRandomFilters(t *testing.T) {
	b := NewBank(sampleQuestions()...)
	rng := testRand()

	for range 50 {
		q := b.Random(rng, A1, A2, "")
		require.NotNil(t, q)
		assert.NotEqual(t, "broken", q.ID, "questions with fewer than two options are never picked")
		assert.LessOrEqual(t, q.Difficulty, A2)
	}

	q := b.Random(rng, A1, C2, TypeSynonym)
	require.NotNil(t, q)
	assert.Equal(t, "big", q.ID)

	assert.Nil(t, b.Random(rng, B1, B2, ""))
}

func TestBankMerge(t *testing.T) {
	b := NewBank(sampleQuestions()[:2]...)
	n := b.Merge([]*Question{
		{ID: "hot", Prompt: "Opposite of hot (v2)?", Options: []string{"cold", "warm"}},
		{ID: "new", Prompt: "New?", Options: []string{"x", "y"}},
		{Prompt: "no id"},
	}, false)

	assert.Equal(t, 2, n)
	require.Equal(t, 3, b.Len())
	assert.Equal(t, "Opposite of hot (v2)?", b.Questions()[0].Prompt)

	n = b.Merge([]*Question{{ID: "only", Options: []string{"a", "b"}}}, true)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, b.Len())
}

func TestReadJSON(t *testing.T) {
	qs, err := ReadJSON(strings.NewReader(`{"questions":[{"id":"q1","prompt":"P","options":["a","b"],"correct_index":1,"difficulty":"B1","type":"cloze"}]}`))
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, B1, qs[0].Difficulty)
	assert.Equal(t, TypeCloze, qs[0].Type)

	_, err = ReadJSON(strings.NewReader(`{"questions":[{"difficulty":"Z9"}]}`))
	assert.Error(t, err)
}

func TestBuildScript(t *testing.T) {
	q := sampleQuestions()[1]
	s := BuildScript(q, dialogue.NPC{ID: "tutor", Name: "Tutor"}, nil)
	require.NotNil(t, s)
	require.NoError(t, s.Validate())

	assert.Equal(t, "Q: Synonym of big?", s.Lines[0].Text)
	assert.Equal(t, []bool{false, true, false}, []bool{s.Lines[0].EndsConversation, s.Lines[1].EndsConversation, s.Lines[2].EndsConversation})
	assert.True(t, s.Quiz)
	assert.Equal(t, 3, s.QuizReward)

	choices := s.ChoicesFor(0)
	require.Len(t, choices, 3)
	assert.True(t, choices[0].Correct)
	assert.Equal(t, 1, *choices[0].Next)
	assert.Equal(t, 2, *choices[1].Next)

	assert.Equal(t, 1, BuildScript(sampleQuestions()[0], dialogue.NPC{ID: "t"}, nil).QuizReward)
	assert.Nil(t, BuildScript(sampleQuestions()[3], dialogue.NPC{ID: "t"}, nil))
}

func TestBuildScriptShuffleKeepsCorrectAnswer(t *testing.T) {
	q := &Question{ID: "many", Prompt: "Pick c", Options: []string{"a", "b", "c", "d", "e"}, CorrectIndex: 2}
	rng := testRand()
	for range 30 {
		s := BuildScript(q, dialogue.NPC{ID: "t"}, rng)
		correct := 0
		for _, c := range s.ChoicesFor(0) {
			if c.Correct {
				correct++
				assert.Equal(t, "c", c.Label)
				assert.Equal(t, 1, *c.Next)
			} else {
				assert.Equal(t, 2, *c.Next)
			}
		}
		assert.Equal(t, 1, correct)
	}
}

func TestDriverProgression(t *testing.T) {
	cfg := DefaultDriverConfig()
	cfg.StartMax = A1
	cfg.HardCap = B1
	cfg.CorrectToLevelUp = 2
	d := NewDriver("tutor", NewBank(sampleQuestions()...), cfg, testRand(), testLogger())

	steps := []struct {
		correct bool
		lo, hi  Difficulty
	}{
		{true, A1, A1},
		{true, A1, A2},
		{false, A1, A2},
		{true, A1, A2},
		{true, A1, B1},
		{true, A1, B1},
		{true, A2, B1},
	}
	for i, s := range steps {
		d.Answered(s.correct)
		lo, hi := d.Band()
		assert.Equal(t, s.lo, lo, "step %d min", i)
		assert.Equal(t, s.hi, hi, "step %d max", i)
	}
}

func TestDriverDemoteOnWrong(t *testing.T) {
	cfg := DefaultDriverConfig()
	cfg.DemoteOnWrong = true
	cfg.CorrectToLevelUp = 1
	d := NewDriver("tutor", NewBank(sampleQuestions()...), cfg, testRand(), testLogger())

	d.Answered(true)
	d.Answered(true)
	_, hi := d.Band()
	assert.Equal(t, B2, hi)

	d.Answered(false)
	lo, hi := d.Band()
	assert.Equal(t, A1, lo)
	assert.Equal(t, A1, hi)
}

func TestDriverWithDialogueEngine(t *testing.T) {
	cfg := DefaultDriverConfig()
	cfg.TypingMS = 0
	cfg.Type = TypeAntonym
	d := NewDriver("tutor", NewBank(sampleQuestions()...), cfg, testRand(), testLogger())

	var mu sync.Mutex
	gold := &goldSink{}
	e := dialogue.NewEngine(dialogue.Config{Locker: &mu, Rewards: gold, Observer: d, Logger: testLogger()})
	e.SetScript(&dialogue.Script{NPC: dialogue.NPC{ID: "tutor", Name: "Tutor"}, Lines: []dialogue.Line{{Text: "Hello"}}})
	e.Attach("tutor", d)

	require.NoError(t, e.Interact("tutor"))
	f := e.Frame("tutor")
	assert.Equal(t, "Q: Opposite of hot?", f.FullText)
	assert.Equal(t, "Tutor", f.NPCName)

	idx := -1
	for i, label := range f.Choices {
		if label == "cold" {
			idx = i
		}
	}
	require.GreaterOrEqual(t, idx, 0)
	require.NoError(t, e.Choose("tutor", idx))
	assert.Equal(t, 1, gold.total)
	assert.Equal(t, dialogue.StateIdle, e.Frame("tutor").State)
}

type goldSink struct{ total int }

func (g *goldSink) GiveGold(n int) { g.total += n }
