package quiz

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Difficulty is a CEFR-style level, ordered from easiest to hardest.
type Difficulty int

const (
	A1 Difficulty = iota
	A2
	B1
	B2
	C1
	C2
)

var difficultyNames = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

func (d Difficulty) String() string {
	if d < A1 || d > C2 {
		return fmt.Sprintf("Difficulty(%d)", int(d))
	}
	return difficultyNames[d]
}

// ParseDifficulty accepts a level name such as "b2", case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	for i, n := range difficultyNames {
		if strings.EqualFold(n, s) {
			return Difficulty(i), nil
		}
	}
	return 0, fmt.Errorf("unknown difficulty %q", s)
}

func (d Difficulty) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Difficulty) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseDifficulty(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Type is the kind of question.
type Type string

const (
	TypeMCQ     Type = "mcq"
	TypeSynonym Type = "synonym"
	TypeAntonym Type = "antonym"
	TypePicture Type = "picture"
	TypeAudio   Type = "audio"
	TypeCloze   Type = "cloze"
)

// Question is one multiple-choice prompt.
type Question struct {
	ID           string     `json:"id"`
	Prompt       string     `json:"prompt"`
	Options      []string   `json:"options"`
	CorrectIndex int        `json:"correct_index"`
	Difficulty   Difficulty `json:"difficulty"`
	Type         Type       `json:"type"`
	RewardGold   int        `json:"reward_gold,omitempty"`
}

// Playable reports whether the question can be asked.
func (q *Question) Playable() bool {
	return q != nil && len(q.Options) >= 2 && q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options)
}
