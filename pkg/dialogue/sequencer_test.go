package dialogue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencerSynchronousWhenNoInterval(t *testing.T) {
	mu := &sync.Mutex{}
	s := NewSequencer(mu)
	done := false
	s.Run("k", 0, 10, nil, func() { done = true })
	assert.True(t, done)
	assert.False(t, s.Active("k"))
}

func TestSequencerNewRunSupersedes(t *testing.T) {
	mu := &sync.Mutex{}
	s := NewSequencer(mu)
	var first, second bool
	var steps []int

	mu.Lock()
	s.Run("k", 5*time.Millisecond, 3, func(n int) { steps = append(steps, n) }, func() { first = true })
	s.Run("k", 5*time.Millisecond, 2, nil, func() { second = true })
	mu.Unlock()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return second
	}, time.Second, time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, first)
	assert.Empty(t, steps)
}

func TestSequencerKeysAreIndependent(t *testing.T) {
	mu := &sync.Mutex{}
	s := NewSequencer(mu)
	var a, b bool

	mu.Lock()
	s.After("a", time.Millisecond, func() { a = true })
	s.After("b", time.Millisecond, func() { b = true })
	mu.Unlock()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return a && b
	}, time.Second, time.Millisecond)
}

func TestSequencerCancel(t *testing.T) {
	mu := &sync.Mutex{}
	s := NewSequencer(mu)
	fired := false

	mu.Lock()
	s.After("k", 5*time.Millisecond, func() { fired = true })
	assert.True(t, s.Active("k"))
	s.Cancel("k")
	mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, fired)
}
