// internal/game/types.go
//
// Core type definitions for the minesweeper engine.
// Defines:
//   - Pos:         a board coordinate.
//   - CellKind/Cell: the per-cell state variant (hidden/flagged/revealed/mine).
//   - Outcome:     what a single command did to the board.
//   - Status:      coarse state of a game session (playing/won/lost).
//   - Errors:      construction, range and finished-game failures.

package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Pos is a zero-based board coordinate; X is the column, Y the row.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// CellKind enumerates the states a cell can be in.
type CellKind uint8

const (
	Hidden CellKind = iota
	Flagged
	Revealed
	RevealedMine
)

func (k CellKind) String() string {
	switch k {
	case Hidden:
		return "hidden"
	case Flagged:
		return "flagged"
	case Revealed:
		return "revealed"
	case RevealedMine:
		return "mine"
	default:
		return "unknown"
	}
}

// Terminal reports whether no operation can move a cell out of this state.
func (k CellKind) Terminal() bool { return k == Revealed || k == RevealedMine }

// Cell is the visible state of one board square.
// Adjacent is only meaningful when Kind == Revealed.
type Cell struct {
	Kind     CellKind
	Adjacent int
}

// cellJSON is the wire shape of a Cell: {"state":"revealed","count":2}.
type cellJSON struct {
	State string `json:"state"`
	Count *int   `json:"count,omitempty"`
}

// MarshalJSON emits the count only for revealed cells, so a zero count is
// never confused with "no value".
func (c Cell) MarshalJSON() ([]byte, error) {
	out := cellJSON{State: c.Kind.String()}
	if c.Kind == Revealed {
		n := c.Adjacent
		out.Count = &n
	}
	return json.Marshal(out)
}

// Rune renders the cell as a single character for text dumps.
func (c Cell) Rune() rune {
	switch c.Kind {
	case Flagged:
		return 'F'
	case RevealedMine:
		return '*'
	case Revealed:
		if c.Adjacent == 0 {
			return '.'
		}
		return rune('0' + c.Adjacent)
	default:
		return '#'
	}
}

// Outcome describes the effect of a reveal or flag command.
type Outcome string

const (
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeMine        Outcome = "mine"
	OutcomeRevealed    Outcome = "revealed"
	OutcomeFlagPlaced  Outcome = "flagged"
	OutcomeFlagRemoved Outcome = "unflagged"
)

// RevealResult is returned by Board.Reveal. For OutcomeUnchanged, Cell holds the
// current (flagged or terminal) state so callers still see the terminal info.
type RevealResult struct {
	Outcome  Outcome
	Adjacent int
	Cell     Cell
}

// FlagResult is returned by Board.ToggleFlag.
type FlagResult Outcome

const (
	FlagPlaced    = FlagResult(OutcomeFlagPlaced)
	FlagRemoved   = FlagResult(OutcomeFlagRemoved)
	FlagUnchanged = FlagResult(OutcomeUnchanged)
)

// Flagged reports whether the cell carries a flag after the toggle.
func (r FlagResult) Flagged() bool { return r == FlagPlaced }

// Status is the coarse state of a game session.
type Status string

const (
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
)

// Finished reports whether the session accepts no further commands.
func (s Status) Finished() bool { return s == StatusWon || s == StatusLost }

var (
	// ErrInvalidConfig is returned for board dimensions or mine counts that
	// admit no valid layout.
	ErrInvalidConfig = errors.New("invalid board configuration")
	// ErrOutOfRange is matched by every *RangeError.
	ErrOutOfRange = errors.New("coordinates out of range")
	// ErrGameFinished is returned for commands issued after a win or loss.
	ErrGameFinished = errors.New("game finished")
)

// RangeError reports a coordinate outside a size×size board.
type RangeError struct {
	X, Y, Size int
}

func (e *RangeError) Error() string {
	return "coordinates (" + strconv.Itoa(e.X) + "," + strconv.Itoa(e.Y) +
		") outside " + strconv.Itoa(e.Size) + "x" + strconv.Itoa(e.Size) + " board"
}

// Is lets errors.Is(err, ErrOutOfRange) match.
func (e *RangeError) Is(target error) bool { return target == ErrOutOfRange }

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}
