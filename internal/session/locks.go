package session

import (
	"sync"

	"github.com/google/uuid"
)

// gameLocks hands out one mutex per game id. Entries are dropped once no
// goroutine holds or waits for them.
type gameLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*gameLock
}

type gameLock struct {
	sync.Mutex
	refs int
}

func newGameLocks() *gameLocks {
	return &gameLocks{locks: make(map[uuid.UUID]*gameLock)}
}

func (g *gameLocks) lock(id uuid.UUID) func() {
	g.mu.Lock()
	l, ok := g.locks[id]
	if !ok {
		l = &gameLock{}
		g.locks[id] = l
	}
	l.refs++
	g.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, id)
		}
		g.mu.Unlock()
	}
}

func (g *gameLocks) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
