package game

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func TestGenerate_PlacesExactMineCount(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	cases := []struct{ size, mines int }{
		{1, 0},
		{3, 1},
		{4, 15},
		{9, 10},
		{16, 40},
		{30, 899},
	}
	for _, tc := range cases {
		l, err := Generate(tc.size, tc.mines, rng)
		if err != nil {
			t.Fatalf("Generate(%d, %d) returned error: %v", tc.size, tc.mines, err)
		}
		if l.MineCount() != tc.mines {
			t.Errorf("Generate(%d, %d): MineCount = %d", tc.size, tc.mines, l.MineCount())
		}

		seen := make(map[Pos]bool)
		for _, p := range l.Mines() {
			if !l.InBounds(p.X, p.Y) {
				t.Errorf("mine %v out of bounds on %dx%d", p, tc.size, tc.size)
			}
			if seen[p] {
				t.Errorf("duplicate mine at %v", p)
			}
			seen[p] = true
		}
		if len(seen) != tc.mines {
			t.Errorf("Generate(%d, %d): %d distinct mines listed", tc.size, tc.mines, len(seen))
		}
	}
}

func TestGenerate_SameSeedSameLayout(t *testing.T) {
	a, err := Generate(12, 20, rand.New(rand.NewPCG(42, 7)))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(12, 20, rand.New(rand.NewPCG(42, 7)))
	if err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Errorf("layouts from equal seeds differ:\n%s\n%s", a, b)
	}
}

func TestGenerate_RejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name        string
		size, mines int
	}{
		{"zero size", 0, 0},
		{"negative mines", 3, -1},
		{"mines fill board", 3, 9},
		{"more mines than cells", 2, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Generate(tc.size, tc.mines, nil)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLayout_AdjacentMineCount(t *testing.T) {
	// Single mine in the centre of a 3x3 board.
	l, err := ParseLayout("000" + "010" + "000")
	if err != nil {
		t.Fatal(err)
	}
	if !l.IsMine(1, 1) {
		t.Fatal("expected mine at (1,1)")
	}
	for _, p := range []Pos{{0, 0}, {2, 2}, {1, 0}, {0, 2}} {
		if n := l.AdjacentMineCount(p.X, p.Y); n != 1 {
			t.Errorf("AdjacentMineCount(%d,%d) = %d, want 1", p.X, p.Y, n)
		}
	}
	if n := l.AdjacentMineCount(1, 1); n != 0 {
		t.Errorf("a mine does not count itself: got %d", n)
	}

	// Corner mine on a 4x4 board: edges are clamped, not wrapped.
	l, err = ParseLayout("0000 0000 0000 0001")
	if err != nil {
		t.Fatal(err)
	}
	want := map[Pos]int{
		{0, 0}: 0, {3, 0}: 0, {0, 3}: 0,
		{2, 2}: 1, {2, 3}: 1, {3, 2}: 1,
	}
	for p, n := range want {
		if got := l.AdjacentMineCount(p.X, p.Y); got != n {
			t.Errorf("AdjacentMineCount(%d,%d) = %d, want %d", p.X, p.Y, got, n)
		}
	}
}

func TestLayout_AdjacentMineCountSurrounded(t *testing.T) {
	l, err := ParseLayout("111" + "101" + "111")
	if err != nil {
		t.Fatal(err)
	}
	if n := l.AdjacentMineCount(1, 1); n != 8 {
		t.Errorf("AdjacentMineCount(1,1) = %d, want 8", n)
	}
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("0100\n0000\n0000\n0010\n")
	if err != nil {
		t.Fatal(err)
	}
	if l.Size() != 4 || l.MineCount() != 2 {
		t.Fatalf("got size %d mines %d, want 4 and 2", l.Size(), l.MineCount())
	}
	if got, want := l.String(), "0100\n0000\n0000\n0010\n"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	for _, bad := range []string{"", "010", "01x0", "1111"} {
		if _, err := ParseLayout(bad); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("ParseLayout(%q): expected ErrInvalidConfig, got %v", bad, err)
		}
	}
}
