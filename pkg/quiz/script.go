package quiz

import (
	"math/rand/v2"
	"slices"

	"github.com/jwebster45206/questkeeper/pkg/dialogue"
)

const (
	questionLine = 0
	correctLine  = 1
	wrongLine    = 2

	// DefaultTypingMS is the per-character typing delay of quiz lines.
	DefaultTypingMS = 30
)

// BuildScript turns q into a three-line quiz conversation: the question,
// a closing "Correct!" line and a "Not quite" line that leads to a retry.
// A non-nil rng shuffles the options.
func BuildScript(q *Question, npc dialogue.NPC, rng *rand.Rand) *dialogue.Script {
	if !q.Playable() {
		return nil
	}
	options := slices.Clone(q.Options)
	correct := q.CorrectIndex
	if rng != nil {
		rng.Shuffle(len(options), func(i, j int) {
			options[i], options[j] = options[j], options[i]
			switch correct {
			case i:
				correct = j
			case j:
				correct = i
			}
		})
	}

	choices := make([]dialogue.Choice, len(options))
	for i, opt := range options {
		next := wrongLine
		if i == correct {
			next = correctLine
		}
		choices[i] = dialogue.Choice{Label: opt, Next: &next, Correct: i == correct}
	}

	return &dialogue.Script{
		NPC: npc,
		Lines: []dialogue.Line{
			{Text: "Q: " + q.Prompt},
			{Text: "Correct!", EndsConversation: true},
			{Text: "Not quite. Try again."},
		},
		ChoiceSets: []dialogue.ChoiceSet{{Line: questionLine, Choices: choices}},
		Quiz:       true,
		QuizReward: max(1, q.RewardGold),
		TypingMS:   DefaultTypingMS,
	}
}
