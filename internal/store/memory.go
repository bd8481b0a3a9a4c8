// internal/store/memory.go
//
// In-memory store for live game sessions.
// Boards are never persisted: a game exists only here, for as long as the
// process runs and the game has been touched within the idle TTL.
//
// Characteristics:
//   - Games keyed by ID in a map guarded by an RWMutex.
//   - Each game has its own mutex; Update runs the callback under it, so
//     commands on one game never overlap while different games proceed freely.
//   - Purge evicts games idle since a cutoff.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/minesweeper/internal/game"
)

// ErrNotFound is returned for unknown (or purged) game IDs.
var ErrNotFound = errors.New("not found")

// Session is a live game plus who plays it and how it was created.
type Session struct {
	Game  *game.Game
	Owner Owner
	Level string // preset name, empty for custom boards
	Daily string // date key for daily boards, empty otherwise
}

// Store defines the live-session interface used by the HTTP layer.
type Store interface {
	// Save adds a new session or replaces an existing one with the same game ID.
	Save(ctx context.Context, s *Session) error

	// Update runs fn with exclusive access to the session. The error from fn
	// is returned unchanged.
	Update(ctx context.Context, id string, fn func(s *Session) error) error

	// Delete drops a game.
	Delete(ctx context.Context, id string) error

	// Purge removes games not touched since cutoff and returns how many went.
	Purge(ctx context.Context, cutoff time.Time) int

	// Has reports whether id is live. Unlike Update it does not count as a
	// touch, so watchers do not keep idle games alive.
	Has(id string) bool

	// Len reports the number of live games.
	Len() int
}

type entry struct {
	mu      sync.Mutex // serialises commands on s
	s       *Session
	touched time.Time
	gone    bool
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu    sync.RWMutex      // guards games map
	games map[string]*entry // keyed by Game.ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{games: make(map[string]*entry)}
}

func (m *memory) Save(ctx context.Context, s *Session) error {
	if s == nil || s.Game == nil {
		return errors.New("store: nil session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.games[s.Game.ID]; ok {
		old.mu.Lock()
		old.gone = true
		old.mu.Unlock()
	}
	m.games[s.Game.ID] = &entry{s: s, touched: time.Now()}
	return nil
}

func (m *memory) Update(ctx context.Context, id string, fn func(s *Session) error) error {
	m.mu.RLock()
	e, ok := m.games[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.touched = time.Now()
	return fn(e.s)
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.games[id]
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	e.gone = true
	e.mu.Unlock()
	delete(m.games, id)
	return nil
}

func (m *memory) Purge(ctx context.Context, cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.games {
		e.mu.Lock()
		if e.touched.Before(cutoff) {
			e.gone = true
			delete(m.games, id)
			n++
		}
		e.mu.Unlock()
	}
	return n
}

func (m *memory) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.games[id]
	return ok
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}
