package quiz

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
)

// Bank is an ordered set of questions keyed by id.
type Bank struct {
	questions []*Question
}

// NewBank creates a bank from questions, later duplicates replacing earlier ones.
func NewBank(questions ...*Question) *Bank {
	b := &Bank{}
	b.Merge(questions, false)
	return b
}

// Len returns the number of questions.
func (b *Bank) Len() int { return len(b.questions) }

// Questions returns the questions in bank order.
func (b *Bank) Questions() []*Question {
	out := make([]*Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// Merge adds external questions, replacing any with a matching id. With
// replace set the bank becomes exactly external. Questions without an id
// are ignored when merging. It returns the number added or replaced.
func (b *Bank) Merge(external []*Question, replace bool) int {
	if replace {
		b.questions = b.questions[:0]
		for _, q := range external {
			if q != nil {
				b.questions = append(b.questions, q)
			}
		}
		return len(b.questions)
	}
	index := make(map[string]int, len(b.questions))
	for i, q := range b.questions {
		index[q.ID] = i
	}
	n := 0
	for _, q := range external {
		if q == nil || q.ID == "" {
			continue
		}
		if i, ok := index[q.ID]; ok {
			b.questions[i] = q
		} else {
			index[q.ID] = len(b.questions)
			b.questions = append(b.questions, q)
		}
		n++
	}
	return n
}

type bankFile struct {
	Questions []*Question `json:"questions"`
}

// ReadJSON decodes a {"questions": [...]} document.
func ReadJSON(r io.Reader) ([]*Question, error) {
	var f bankFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode question bank: %w", err)
	}
	return f.Questions, nil
}

// Random picks a playable question with difficulty in [lo, hi] and, when
// typ is non-empty, of that type. It returns nil when nothing matches.
func (b *Bank) Random(rng *rand.Rand, lo, hi Difficulty, typ Type) *Question {
	var pool []*Question
	for _, q := range b.questions {
		if !q.Playable() || q.Difficulty < lo || q.Difficulty > hi {
			continue
		}
		if typ != "" && q.Type != typ {
			continue
		}
		pool = append(pool, q)
	}
	if len(pool) == 0 {
		return nil
	}
	return pool[rng.IntN(len(pool))]
}
