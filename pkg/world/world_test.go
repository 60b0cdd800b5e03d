package world

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/questkeeper/pkg/actor"
	"github.com/jwebster45206/questkeeper/pkg/inventory"
)

func testChests(t *testing.T, claimer Claimer) *Chests {
	t.Helper()
	c, err := NewChests([]Chest{
		{ID: "chest_a", Loot: []inventory.Stack{{ItemID: 1, Quantity: 5}}},
		{ID: "chest_b"},
	}, claimer)
	require.NoError(t, err)
	return c
}

func TestNewChestsRejectsDuplicates(t *testing.T) {
	_, err := NewChests([]Chest{{ID: "x"}, {ID: "x"}}, nil)
	assert.Error(t, err)
	_, err = NewChests([]Chest{{}}, nil)
	assert.Error(t, err)
}

func TestChestOpensOnce(t *testing.T) {
	c := testChests(t, nil)
	ctx := context.Background()

	ch, won, err := c.Open(ctx, "chest_a")
	require.NoError(t, err)
	assert.True(t, won)
	assert.Len(t, ch.Loot, 1)

	_, won, err = c.Open(ctx, "chest_a")
	require.NoError(t, err)
	assert.False(t, won)
	assert.True(t, c.IsOpened("chest_a"))

	_, _, err = c.Open(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownChest)
}

func TestConcurrentChestOpenHasOneWinner(t *testing.T) {
	c := testChests(t, nil)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, won, err := c.Open(context.Background(), "chest_b"); err == nil && won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.True(t, c.IsOpened("chest_b"))
}

type stubClaimer struct {
	won bool
	err error
}

func (s stubClaimer) Claim(context.Context, string) (bool, error) { return s.won, s.err }

func TestChestClaimer(t *testing.T) {
	t.Run("lost claim still marks opened", func(t *testing.T) {
		c := testChests(t, stubClaimer{won: false})
		_, won, err := c.Open(context.Background(), "chest_a")
		require.NoError(t, err)
		assert.False(t, won)
		assert.True(t, c.IsOpened("chest_a"))
	})

	t.Run("claim error leaves chest closed", func(t *testing.T) {
		c := testChests(t, stubClaimer{err: errors.New("redis down")})
		_, won, err := c.Open(context.Background(), "chest_a")
		assert.Error(t, err)
		assert.False(t, won)
		assert.False(t, c.IsOpened("chest_a"))
	})
}

func TestChestStatesRestore(t *testing.T) {
	c := testChests(t, nil)
	c.Open(context.Background(), "chest_b")
	states := c.States()
	assert.Equal(t, []ChestState{{ChestID: "chest_a"}, {ChestID: "chest_b", Opened: true}}, states)

	other := testChests(t, nil)
	other.Open(context.Background(), "chest_a")
	skipped := other.Restore(append(states, ChestState{ChestID: "gone", Opened: true}))
	assert.Equal(t, []string{"gone"}, skipped)
	assert.Equal(t, states, other.States())
}

func TestChestRestoreKeepsChestsMissingFromRecord(t *testing.T) {
	c := testChests(t, nil)
	c.Open(context.Background(), "chest_a")

	skipped := c.Restore([]ChestState{{ChestID: "chest_b", Opened: true}})
	assert.Empty(t, skipped)
	assert.True(t, c.IsOpened("chest_a"))
	assert.True(t, c.IsOpened("chest_b"))

	c.Restore([]ChestState{{ChestID: "chest_a"}})
	assert.False(t, c.IsOpened("chest_a"), "a chest named in the record takes its flag")
}

func TestChestStatesMerge(t *testing.T) {
	c := testChests(t, nil)
	c.Open(context.Background(), "chest_a")

	skipped := c.Merge([]ChestState{{ChestID: "chest_a"}, {ChestID: "chest_b", Opened: true}, {ChestID: "gone", Opened: true}})
	assert.Equal(t, []string{"gone"}, skipped)
	assert.True(t, c.IsOpened("chest_a"), "merge never closes a chest")
	assert.True(t, c.IsOpened("chest_b"))

	_, won, err := c.Open(context.Background(), "chest_b")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestGroundTakeOnce(t *testing.T) {
	g := NewGround()
	it := g.Spawn(4, 0, 1.5, 2)
	assert.Equal(t, 1, it.Quantity)

	got, ok := g.Get(it.ID)
	require.True(t, ok)
	assert.Equal(t, it, got)

	var takes atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := g.Take(it.ID); ok {
				takes.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), takes.Load())
	assert.Empty(t, g.List())
}

func TestEnemiesDamage(t *testing.T) {
	r := NewEnemies()
	e, err := actor.Spawn(&actor.EnemyTemplate{TypeID: 2, Name: "Wolf", AC: 10, MaxHP: 5}, 0, 0, nil)
	require.NoError(t, err)
	r.Add(e)

	got, defeated, err := r.Damage(e.ID, 3)
	require.NoError(t, err)
	assert.False(t, defeated)
	assert.Equal(t, 2, got.HP)

	_, defeated, err = r.Damage(e.ID, 3)
	require.NoError(t, err)
	assert.True(t, defeated)
	assert.Empty(t, r.List())

	_, _, err = r.Damage(e.ID, 1)
	assert.ErrorIs(t, err, ErrUnknownEnemy)
}
