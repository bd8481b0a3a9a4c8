// internal/game/board.go
//
// Mutable reveal/flag state layered over a Layout.
// Responsibilities:
//   - Reveal single cells (flags and terminal cells are protected).
//   - Flood-reveal connected zero regions with an explicit stack.
//   - Toggle flags on covered cells.
//   - Detect the win condition (every safe cell revealed).
//
// Board is not safe for concurrent use; the owning session serialises access.

package game

// Board holds one Cell per grid position, all starting Hidden.
type Board struct {
	layout       *Layout
	cells        []Cell
	revealedSafe int
	flags        int
}

// NewBoard wraps layout in a fresh, fully hidden board.
func NewBoard(layout *Layout) *Board {
	return &Board{
		layout: layout,
		cells:  make([]Cell, layout.size*layout.size),
	}
}

// Size returns the board side length.
func (b *Board) Size() int { return b.layout.size }

// Layout exposes the underlying mine layout.
func (b *Board) Layout() *Layout { return b.layout }

// Flags returns the number of flagged cells.
func (b *Board) Flags() int { return b.flags }

// Cell returns the state at (x,y).
func (b *Board) Cell(x, y int) (Cell, error) {
	if err := b.check(x, y); err != nil {
		return Cell{}, err
	}
	return b.cells[b.index(x, y)], nil
}

// Reveal uncovers (x,y). Flagged and already revealed cells are left alone and
// reported as OutcomeUnchanged.
func (b *Board) Reveal(x, y int) (RevealResult, error) {
	if err := b.check(x, y); err != nil {
		return RevealResult{}, err
	}
	return b.reveal(x, y), nil
}

func (b *Board) reveal(x, y int) RevealResult {
	c := &b.cells[b.index(x, y)]
	if c.Kind != Hidden {
		return RevealResult{Outcome: OutcomeUnchanged, Adjacent: c.Adjacent, Cell: *c}
	}
	if b.layout.IsMine(x, y) {
		*c = Cell{Kind: RevealedMine}
		return RevealResult{Outcome: OutcomeMine, Cell: *c}
	}
	n := b.layout.AdjacentMineCount(x, y)
	*c = Cell{Kind: Revealed, Adjacent: n}
	b.revealedSafe++
	return RevealResult{Outcome: OutcomeRevealed, Adjacent: n, Cell: *c}
}

// FloodReveal expands outward from (x,y), which the caller has already revealed
// as a zero. Every still-hidden neighbour of a processed zero is revealed; new
// zeros are pushed for further expansion. Flagged cells are skipped and mines
// are never reached since no mine is ever a revealed zero.
//
// The worklist is an explicit LIFO stack, so board size never bounds call depth.
// Positions are returned in the order they were revealed.
func (b *Board) FloodReveal(x, y int) ([]Pos, error) {
	if err := b.check(x, y); err != nil {
		return nil, err
	}
	if c := b.cells[b.index(x, y)]; c.Kind != Revealed || c.Adjacent != 0 {
		return nil, nil
	}

	var revealed []Pos
	stack := []Pos{{X: x, Y: y}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		b.layout.forEachNeighbor(p.X, p.Y, func(nx, ny int) {
			if b.cells[b.index(nx, ny)].Kind != Hidden {
				return
			}
			res := b.reveal(nx, ny)
			revealed = append(revealed, Pos{X: nx, Y: ny})
			if res.Outcome == OutcomeRevealed && res.Adjacent == 0 {
				stack = append(stack, Pos{X: nx, Y: ny})
			}
		})
	}
	return revealed, nil
}

// ToggleFlag flips Hidden<->Flagged. Revealed cells are untouched.
func (b *Board) ToggleFlag(x, y int) (FlagResult, error) {
	if err := b.check(x, y); err != nil {
		return FlagUnchanged, err
	}
	c := &b.cells[b.index(x, y)]
	switch c.Kind {
	case Hidden:
		c.Kind = Flagged
		b.flags++
		return FlagPlaced, nil
	case Flagged:
		c.Kind = Hidden
		b.flags--
		return FlagRemoved, nil
	default:
		return FlagUnchanged, nil
	}
}

// HasWon reports whether every non-mine cell has been revealed.
// Flags play no part: a board with every mine flagged but safe cells still
// hidden has not been won.
func (b *Board) HasWon() bool {
	return b.revealedSafe == len(b.cells)-b.layout.count
}

// Remaining returns how many safe cells are still to be revealed.
func (b *Board) Remaining() int {
	return len(b.cells) - b.layout.count - b.revealedSafe
}

// Rows copies the cell states into a row-major [y][x] grid.
func (b *Board) Rows() [][]Cell {
	size := b.layout.size
	rows := make([][]Cell, size)
	for y := range rows {
		rows[y] = make([]Cell, size)
		copy(rows[y], b.cells[y*size:(y+1)*size])
	}
	return rows
}

// String draws the board framed by '|' per row, one rune per cell.
func (b *Board) String() string {
	return Snapshot{Rows: b.Rows()}.Text()
}

func (b *Board) index(x, y int) int { return y*b.layout.size + x }

func (b *Board) check(x, y int) error {
	if !b.layout.InBounds(x, y) {
		return &RangeError{X: x, Y: y, Size: b.layout.size}
	}
	return nil
}
