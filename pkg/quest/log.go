package quest

import (
	"errors"
	"slices"
	"sort"

	"github.com/jwebster45206/questkeeper/pkg/inventory"
)

var (
	ErrQuestNotActive    = errors.New("quest is not active")
	ErrQuestNotCompleted = errors.New("quest objectives are not complete")
	ErrInsufficientItems = errors.New("insufficient items to hand in quest")
)

// Status is the externally visible state of a quest for one player.
type Status int

const (
	StatusNotStarted Status = iota
	StatusInProgress
	StatusCompleted
	StatusHandedIn
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusHandedIn:
		return "handed_in"
	default:
		return "not_started"
	}
}

// ItemStore is the part of an inventory a hand-in needs.
type ItemStore interface {
	HasAll(stacks []inventory.Stack) bool
	RemoveAll(stacks []inventory.Stack) int
}

// Progress tracks the current amount of each objective of an active quest.
type Progress struct {
	def     *Definition
	current []int
}

func newProgress(def *Definition) *Progress {
	return &Progress{def: def, current: make([]int, len(def.Objectives))}
}

// Definition returns the quest definition.
func (p *Progress) Definition() *Definition { return p.def }

// Amounts returns a copy of the per-objective current amounts.
func (p *Progress) Amounts() []int { return slices.Clone(p.current) }

// IsCompleted reports whether every objective has reached its requirement.
func (p *Progress) IsCompleted() bool {
	for i, o := range p.def.Objectives {
		if p.current[i] < o.Required {
			return false
		}
	}
	return true
}

// recompute sets CollectItem objectives from counts and reports a change.
func (p *Progress) recompute(counts map[int]int) bool {
	changed := false
	for i, o := range p.def.Objectives {
		c, ok := o.Target.(CollectItem)
		if !ok {
			continue
		}
		v := min(counts[c.ItemID], o.Required)
		if p.current[i] != v {
			p.current[i] = v
			changed = true
		}
	}
	return changed
}

func (p *Progress) increment(match func(Target) bool) bool {
	changed := false
	for i, o := range p.def.Objectives {
		if match(o.Target) && p.current[i] < o.Required {
			p.current[i]++
			changed = true
		}
	}
	return changed
}

// Log is one player's quest state: active progresses and the handed-in set.
// It is not safe for concurrent use.
type Log struct {
	active    []*Progress
	handedIn  map[string]struct{}
	listeners []func()
}

// NewLog returns an empty quest log.
func NewLog() *Log {
	return &Log{handedIn: make(map[string]struct{})}
}

// OnChange registers fn to run after every observable change.
func (l *Log) OnChange(fn func()) {
	l.listeners = append(l.listeners, fn)
}

// Accept starts def and immediately recomputes its CollectItem objectives
// from counts. It is a no-op returning false when the quest is already
// active, or already handed in and not repeatable.
func (l *Log) Accept(def *Definition, counts map[int]int) bool {
	if def == nil || l.find(def.ID) >= 0 {
		return false
	}
	if _, done := l.handedIn[def.ID]; done && !def.Repeatable {
		return false
	}
	p := newProgress(def)
	p.recompute(counts)
	l.active = append(l.active, p)
	l.notify()
	return true
}

// Recompute derives every active CollectItem objective from counts.
func (l *Log) Recompute(counts map[int]int) {
	changed := false
	for _, p := range l.active {
		if p.recompute(counts) {
			changed = true
		}
	}
	if changed {
		l.notify()
	}
}

// RecordEnemyDefeated advances DefeatEnemy objectives for enemyID by one.
func (l *Log) RecordEnemyDefeated(enemyID int) {
	l.incrementAll(func(t Target) bool {
		d, ok := t.(DefeatEnemy)
		return ok && d.EnemyID == enemyID
	})
}

// RecordTalk advances TalkNPC objectives for npcID by one.
func (l *Log) RecordTalk(npcID string) {
	l.incrementAll(func(t Target) bool {
		n, ok := t.(TalkNPC)
		return ok && n.NPCID == npcID
	})
}

func (l *Log) incrementAll(match func(Target) bool) {
	changed := false
	for _, p := range l.active {
		if p.increment(match) {
			changed = true
		}
	}
	if changed {
		l.notify()
	}
}

// HandIn consumes the quest's collected items and marks it handed in. On
// any error nothing changes and the call may be retried.
func (l *Log) HandIn(id string, store ItemStore) error {
	i := l.find(id)
	if i < 0 {
		return ErrQuestNotActive
	}
	p := l.active[i]
	if !p.IsCompleted() {
		return ErrQuestNotCompleted
	}
	need := p.def.ItemRequirements()
	if !store.HasAll(need) {
		return ErrInsufficientItems
	}
	if len(need) > 0 {
		store.RemoveAll(need)
	}
	// RemoveAll may have re-entered Recompute; locate the quest again.
	if i = l.find(id); i >= 0 {
		l.active = slices.Delete(l.active, i, i+1)
	}
	l.handedIn[id] = struct{}{}
	l.notify()
	return nil
}

// Status returns the state of quest id.
func (l *Log) Status(id string) Status {
	if i := l.find(id); i >= 0 {
		if l.active[i].IsCompleted() {
			return StatusCompleted
		}
		return StatusInProgress
	}
	if _, ok := l.handedIn[id]; ok {
		return StatusHandedIn
	}
	return StatusNotStarted
}

// IsActive reports whether id is in progress or completed but not handed in.
func (l *Log) IsActive(id string) bool { return l.find(id) >= 0 }

// IsCompleted reports whether id is active with every objective satisfied.
func (l *Log) IsCompleted(id string) bool { return l.Status(id) == StatusCompleted }

// IsHandedIn reports whether id has been handed in.
func (l *Log) IsHandedIn(id string) bool {
	_, ok := l.handedIn[id]
	return ok
}

// Progress returns the active progress for id.
func (l *Log) Progress(id string) (*Progress, bool) {
	if i := l.find(id); i >= 0 {
		return l.active[i], true
	}
	return nil, false
}

// Active returns the active progresses in acceptance order.
func (l *Log) Active() []*Progress { return slices.Clone(l.active) }

// HandedIn returns the handed-in quest ids, sorted.
func (l *Log) HandedIn() []string {
	out := make([]string, 0, len(l.handedIn))
	for id := range l.handedIn {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (l *Log) find(id string) int {
	for i, p := range l.active {
		if p.def.ID == id {
			return i
		}
	}
	return -1
}

func (l *Log) notify() {
	for _, fn := range l.listeners {
		fn()
	}
}
