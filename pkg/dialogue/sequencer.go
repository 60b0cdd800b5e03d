package dialogue

import (
	"sync"
	"time"
)

// Sequencer runs timed step sequences keyed by conversation. Starting a
// sequence for a key cancels the one in flight for that key. Callbacks
// run with the shared lock held; every method must be called with it held.
type Sequencer struct {
	mu     sync.Locker
	gen    uint64
	runs   map[string]uint64
	timers map[string]*time.Timer
}

// NewSequencer creates a sequencer guarded by mu.
func NewSequencer(mu sync.Locker) *Sequencer {
	return &Sequencer{
		mu:     mu,
		runs:   make(map[string]uint64),
		timers: make(map[string]*time.Timer),
	}
}

// Run calls step(n) for n in 1..steps-1 every interval, then done. With a
// non-positive interval or step count done runs before Run returns.
func (s *Sequencer) Run(key string, interval time.Duration, steps int, step func(n int), done func()) {
	s.Cancel(key)
	if interval <= 0 || steps <= 0 {
		done()
		return
	}
	s.gen++
	gen := s.gen
	s.runs[key] = gen

	n := 0
	var tick func()
	tick = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.runs[key] != gen {
			return
		}
		n++
		if n < steps {
			if step != nil {
				step(n)
			}
			s.timers[key] = time.AfterFunc(interval, tick)
			return
		}
		delete(s.runs, key)
		delete(s.timers, key)
		done()
	}
	s.timers[key] = time.AfterFunc(interval, tick)
}

// After runs fn once after d.
func (s *Sequencer) After(key string, d time.Duration, fn func()) {
	s.Run(key, d, 1, nil, fn)
}

// Cancel stops the sequence for key. A callback already waiting on the
// lock sees the cancellation and does nothing.
func (s *Sequencer) Cancel(key string) {
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
	delete(s.runs, key)
}

// CancelAll stops every sequence.
func (s *Sequencer) CancelAll() {
	for key := range s.timers {
		s.Cancel(key)
	}
	clear(s.runs)
}

// Active reports whether a sequence for key is scheduled.
func (s *Sequencer) Active(key string) bool {
	_, ok := s.runs[key]
	return ok
}
