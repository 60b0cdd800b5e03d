package world

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/questkeeper/pkg/actor"
)

var ErrUnknownEnemy = errors.New("unknown enemy")

// Enemies tracks live enemies. Damage and removal on defeat happen under
// one lock so a defeat is reported once.
type Enemies struct {
	mu      sync.Mutex
	enemies map[uuid.UUID]*actor.Enemy
}

// NewEnemies returns an empty registry.
func NewEnemies() *Enemies {
	return &Enemies{enemies: make(map[uuid.UUID]*actor.Enemy)}
}

// Add registers a spawned enemy.
func (r *Enemies) Add(e *actor.Enemy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enemies[e.ID] = e
}

// Damage applies n damage. On defeat the enemy is removed and returned
// with defeated set.
func (r *Enemies) Damage(id uuid.UUID, n int) (actor.Enemy, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enemies[id]
	if !ok {
		return actor.Enemy{}, false, ErrUnknownEnemy
	}
	defeated := e.TakeDamage(n)
	if defeated {
		delete(r.enemies, id)
	}
	return *e, defeated, nil
}

// List returns copies of the live enemies.
func (r *Enemies) List() []actor.Enemy {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]actor.Enemy, 0, len(r.enemies))
	for _, e := range r.enemies {
		out = append(out, *e)
	}
	return out
}
