// internal/game/game.go
//
// Game session: one Board plus the win/loss state for a single play-through.
// Responsibilities:
//   - Create new games from a generated or supplied Layout.
//   - Apply reveal and flag commands, running the flood-fill on zeros.
//   - Track state transitions: playing → won/lost (terminal).
//   - Notify observers with a fresh Snapshot after every state change.
//
// Notes:
//   - Session state lives on the Game value, never in package variables, so any
//     number of games can run side by side.
//   - A Game is not safe for concurrent use; callers serialise commands.

package game

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Game holds the state of a single minesweeper session.
type Game struct {
	ID         string    // Unique game identifier (UUID).
	Status     Status    // playing | won | lost.
	Moves      int       // Commands that changed the board.
	StartedAt  time.Time // Creation time.
	FinishedAt time.Time // Zero until the game is won or lost.

	board     *Board
	now       func() time.Time
	observers map[int]Observer
	nextObs   int
}

// Move reports what a command did.
type Move struct {
	Outcome  Outcome `json:"outcome"`
	Pos      Pos     `json:"pos"`
	Adjacent int     `json:"count"`
	Revealed []Pos   `json:"revealed,omitempty"`
	Status   Status  `json:"state"`
}

// Observer receives a snapshot after every state-changing command.
type Observer interface {
	StateChanged(s Snapshot)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(s Snapshot)

func (f ObserverFunc) StateChanged(s Snapshot) { f(s) }

// Option customises New.
type Option func(*options)

type options struct {
	rng    *rand.Rand
	layout *Layout
	id     string
	now    func() time.Time
}

// WithRand draws mine positions from rng instead of the global source.
func WithRand(rng *rand.Rand) Option { return func(o *options) { o.rng = rng } }

// WithLayout uses a prepared layout; size and mineCount passed to New are
// ignored.
func WithLayout(l *Layout) Option { return func(o *options) { o.layout = l } }

// WithID fixes the game ID.
func WithID(id string) Option { return func(o *options) { o.id = id } }

// WithClock overrides time.Now for start/finish timestamps.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// New constructs a game over a freshly generated layout.
// Invalid dimensions are rejected with ErrInvalidConfig before any mine is placed.
func New(size, mineCount int, opts ...Option) (*Game, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	layout := o.layout
	if layout == nil {
		var err error
		if layout, err = Generate(size, mineCount, o.rng); err != nil {
			return nil, err
		}
	}
	id := o.id
	if id == "" {
		id = uuid.NewString()
	}
	return &Game{
		ID:        id,
		Status:    StatusPlaying,
		StartedAt: o.now(),
		board:     NewBoard(layout),
		now:       o.now,
		observers: make(map[int]Observer),
	}, nil
}

// Size returns the board side length.
func (g *Game) Size() int { return g.board.Size() }

// MineCount returns the number of mines in the layout.
func (g *Game) MineCount() int { return g.board.layout.count }

// Board exposes the underlying board for read-only inspection.
func (g *Game) Board() *Board { return g.board }

// Reveal uncovers (x,y). Revealing a zero also flood-reveals its region.
//
// State transitions:
//   - Outcome mine → StatusLost.
//   - Every safe cell revealed → StatusWon.
//
// Once finished, every command fails with ErrGameFinished and changes nothing.
func (g *Game) Reveal(x, y int) (Move, error) {
	if g.Status.Finished() {
		return Move{Outcome: OutcomeUnchanged, Pos: Pos{X: x, Y: y}, Status: g.Status}, ErrGameFinished
	}
	res, err := g.board.Reveal(x, y)
	if err != nil {
		return Move{}, err
	}

	mv := Move{Outcome: res.Outcome, Pos: Pos{X: x, Y: y}, Adjacent: res.Adjacent}
	switch res.Outcome {
	case OutcomeMine:
		g.finish(StatusLost)
	case OutcomeRevealed:
		mv.Revealed = []Pos{{X: x, Y: y}}
		if res.Adjacent == 0 {
			more, _ := g.board.FloodReveal(x, y)
			mv.Revealed = append(mv.Revealed, more...)
		}
		if g.board.HasWon() {
			g.finish(StatusWon)
		}
	}
	mv.Status = g.Status
	if res.Outcome != OutcomeUnchanged {
		g.Moves++
		g.notify()
	}
	return mv, nil
}

// ToggleFlag flips the flag on a covered cell.
func (g *Game) ToggleFlag(x, y int) (Move, error) {
	if g.Status.Finished() {
		return Move{Outcome: OutcomeUnchanged, Pos: Pos{X: x, Y: y}, Status: g.Status}, ErrGameFinished
	}
	res, err := g.board.ToggleFlag(x, y)
	if err != nil {
		return Move{}, err
	}
	mv := Move{Outcome: Outcome(res), Pos: Pos{X: x, Y: y}, Status: g.Status}
	if res != FlagUnchanged {
		g.Moves++
		g.notify()
	}
	return mv, nil
}

// Observe registers o for state-change notifications. The returned cancel
// function must be called under the same serialisation as other commands.
func (g *Game) Observe(o Observer) (cancel func()) {
	id := g.nextObs
	g.nextObs++
	g.observers[id] = o
	return func() { delete(g.observers, id) }
}

// Elapsed is the time from start to finish, or to now while playing.
func (g *Game) Elapsed() time.Duration {
	if g.FinishedAt.IsZero() {
		return g.now().Sub(g.StartedAt)
	}
	return g.FinishedAt.Sub(g.StartedAt)
}

func (g *Game) finish(s Status) {
	g.Status = s
	g.FinishedAt = g.now()
}

func (g *Game) notify() {
	if len(g.observers) == 0 {
		return
	}
	snap := g.Snapshot()
	for _, o := range g.observers {
		o.StateChanged(snap)
	}
}
