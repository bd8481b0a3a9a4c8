package game

import "strings"

// Snapshot is a point-in-time copy of a game for rendering.
// MinePositions is only filled once the game is finished.
type Snapshot struct {
	GameID        string   `json:"gameId"`
	Size          int      `json:"size"`
	Mines         int      `json:"mines"`
	Flags         int      `json:"flags"`
	Remaining     int      `json:"remaining"`
	Moves         int      `json:"moves"`
	Status        Status   `json:"state"`
	Rows          [][]Cell `json:"rows"`
	MinePositions []Pos    `json:"minePositions,omitempty"`
}

// Snapshot copies the current board; later commands do not affect it.
func (g *Game) Snapshot() Snapshot {
	s := Snapshot{
		GameID:    g.ID,
		Size:      g.board.Size(),
		Mines:     g.board.layout.count,
		Flags:     g.board.flags,
		Remaining: g.board.Remaining(),
		Moves:     g.Moves,
		Status:    g.Status,
		Rows:      g.board.Rows(),
	}
	if g.Status.Finished() {
		s.MinePositions = g.board.layout.Mines()
	}
	return s
}

// Text renders the rows as a framed character grid, one line per row.
func (s Snapshot) Text() string {
	var b strings.Builder
	for _, row := range s.Rows {
		b.WriteByte('|')
		for _, c := range row {
			b.WriteRune(c.Rune())
		}
		b.WriteString("|\n")
	}
	return b.String()
}
