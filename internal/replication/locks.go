package replication

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// playerLocks serializes Join and Leave per player. Entries are removed
// once nobody holds or waits for them.
type playerLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*playerLock
}

type playerLock struct {
	sem  chan struct{}
	refs int
}

// lock blocks until playerID is free or ctx is done.
func (l *playerLocks) lock(ctx context.Context, playerID uuid.UUID) (func(), error) {
	l.mu.Lock()
	pl, ok := l.locks[playerID]
	if !ok {
		pl = &playerLock{sem: make(chan struct{}, 1)}
		l.locks[playerID] = pl
	}
	pl.refs++
	l.mu.Unlock()

	select {
	case pl.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(playerID, pl)
		return nil, ctx.Err()
	}
	return func() {
		<-pl.sem
		l.release(playerID, pl)
	}, nil
}

func (l *playerLocks) release(playerID uuid.UUID, pl *playerLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, playerID)
	}
}
