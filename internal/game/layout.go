// internal/game/layout.go
//
// Immutable mine layout for a single game.
// Responsibilities:
//   - Place mines uniformly at random (rejection sampling) or parse a fixed
//     level text of '0'/'1' characters.
//   - Answer IsMine and AdjacentMineCount over the 8-neighbourhood, clamped at
//     the edges (no wrap-around).
//
// A Layout never changes after construction; Board reads it but never writes.

package game

import (
	"math"
	"math/rand/v2"
	"strings"
)

// Layout is a size×size grid of mine positions stored row-major.
type Layout struct {
	size  int
	mines []bool
	count int
}

// Generate places mineCount distinct mines on a size×size grid.
// rng may be nil, in which case the global math/rand/v2 source is used.
//
// Rejection sampling terminates because mineCount < size*size is enforced
// before any position is drawn.
func Generate(size, mineCount int, rng *rand.Rand) (*Layout, error) {
	if err := ValidateConfig(size, mineCount); err != nil {
		return nil, err
	}
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}

	l := &Layout{size: size, mines: make([]bool, size*size)}
	for l.count < mineCount {
		i := intN(size * size)
		if l.mines[i] {
			continue
		}
		l.mines[i] = true
		l.count++
	}
	return l, nil
}

// ValidateConfig rejects dimensions that admit no valid layout.
func ValidateConfig(size, mineCount int) error {
	switch {
	case size < 1:
		return invalidConfig("size %d must be at least 1", size)
	case mineCount < 0:
		return invalidConfig("mine count %d must not be negative", mineCount)
	case mineCount >= size*size:
		return invalidConfig("%d mines leave no safe cell on a %dx%d board", mineCount, size, size)
	}
	return nil
}

// ParseLayout builds a layout from a row-major level text where '1' marks a
// mine and '0' a safe cell. Whitespace is ignored so multi-line texts work.
// The remaining length must be a perfect square.
func ParseLayout(text string) (*Layout, error) {
	cells := strings.Join(strings.Fields(text), "")
	size := int(math.Sqrt(float64(len(cells))))
	if size == 0 || size*size != len(cells) {
		return nil, invalidConfig("level text of length %d is not a square grid", len(cells))
	}

	l := &Layout{size: size, mines: make([]bool, len(cells))}
	for i, ch := range []byte(cells) {
		switch ch {
		case '1':
			l.mines[i] = true
			l.count++
		case '0':
		default:
			return nil, invalidConfig("unexpected %q at offset %d in level text", ch, i)
		}
	}
	if err := ValidateConfig(size, l.count); err != nil {
		return nil, err
	}
	return l, nil
}

// Size returns the grid side length.
func (l *Layout) Size() int { return l.size }

// MineCount returns the number of mines on the grid.
func (l *Layout) MineCount() int { return l.count }

// InBounds reports whether (x,y) lies on the grid.
func (l *Layout) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < l.size && y < l.size
}

// IsMine reports whether (x,y) holds a mine.
// Callers must pass in-bounds coordinates; anything else panics.
func (l *Layout) IsMine(x, y int) bool {
	return l.mines[y*l.size+x]
}

// AdjacentMineCount counts mines among the in-bounds 8-neighbours of (x,y).
func (l *Layout) AdjacentMineCount(x, y int) int {
	n := 0
	l.forEachNeighbor(x, y, func(nx, ny int) {
		if l.IsMine(nx, ny) {
			n++
		}
	})
	return n
}

// Mines lists mine positions in row-major order.
func (l *Layout) Mines() []Pos {
	out := make([]Pos, 0, l.count)
	for i, m := range l.mines {
		if m {
			out = append(out, Pos{X: i % l.size, Y: i / l.size})
		}
	}
	return out
}

// String renders the layout back into level text, one row per line.
func (l *Layout) String() string {
	var b strings.Builder
	for y := 0; y < l.size; y++ {
		for x := 0; x < l.size; x++ {
			if l.IsMine(x, y) {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// forEachNeighbor calls fn for every in-bounds cell around (x,y), excluding
// (x,y) itself.
func (l *Layout) forEachNeighbor(x, y int, fn func(nx, ny int)) {
	for dy := -1; dy <= 1; dy++ {
		ny := y + dy
		if ny < 0 || ny >= l.size {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			nx := x + dx
			if nx < 0 || nx >= l.size || (dx == 0 && dy == 0) {
				continue
			}
			fn(nx, ny)
		}
	}
}
