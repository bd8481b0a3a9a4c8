package game

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

func newTestGame(t *testing.T, text string) *Game {
	t.Helper()
	l, err := ParseLayout(text)
	if err != nil {
		t.Fatal(err)
	}
	g, err := New(0, 0, WithLayout(l), WithID("test"))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestNew(t *testing.T) {
	g, err := New(9, 10, WithRand(rand.New(rand.NewPCG(3, 4))))
	if err != nil {
		t.Fatal(err)
	}
	if g.ID == "" {
		t.Error("expected a generated ID")
	}
	if g.Size() != 9 || g.MineCount() != 10 {
		t.Errorf("got %dx%d with %d mines", g.Size(), g.Size(), g.MineCount())
	}
	if g.Status != StatusPlaying {
		t.Errorf("Status = %s, want playing", g.Status)
	}
	for _, row := range g.Snapshot().Rows {
		for _, c := range row {
			if c.Kind != Hidden {
				t.Fatalf("fresh board has a %s cell", c.Kind)
			}
		}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(3, 9); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNew_GamesAreIndependent(t *testing.T) {
	a := newTestGame(t, "000010000")
	b := newTestGame(t, "000010000")
	a.Reveal(1, 1)
	if a.Status != StatusLost {
		t.Fatalf("a.Status = %s, want lost", a.Status)
	}
	if b.Status != StatusPlaying {
		t.Errorf("losing one game must not affect another, b.Status = %s", b.Status)
	}
}

func TestGame_RevealMineEndsGame(t *testing.T) {
	g := newTestGame(t, "000010000")

	mv, err := g.Reveal(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if mv.Outcome != OutcomeMine || mv.Status != StatusLost {
		t.Fatalf("got %+v, want mine/lost", mv)
	}
	if g.FinishedAt.IsZero() {
		t.Error("FinishedAt should be set")
	}

	before := g.Snapshot().Text()
	mv, err = g.Reveal(0, 0)
	if !errors.Is(err, ErrGameFinished) {
		t.Errorf("expected ErrGameFinished, got %v", err)
	}
	if mv.Outcome != OutcomeUnchanged || mv.Status != StatusLost {
		t.Errorf("got %+v after game over", mv)
	}
	if _, err := g.ToggleFlag(0, 0); !errors.Is(err, ErrGameFinished) {
		t.Errorf("expected ErrGameFinished from ToggleFlag, got %v", err)
	}
	if after := g.Snapshot().Text(); after != before {
		t.Errorf("board changed after loss:\n%s\n%s", before, after)
	}
}

func TestGame_RevealZeroFloodsAndWins(t *testing.T) {
	g := newTestGame(t, "0000 0000 0000 0001")

	mv, err := g.Reveal(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if mv.Outcome != OutcomeRevealed || mv.Adjacent != 0 {
		t.Fatalf("expected Revealed(0), got %+v", mv)
	}
	if len(mv.Revealed) != 15 {
		t.Errorf("revealed %d cells, want 15", len(mv.Revealed))
	}
	if mv.Revealed[0] != (Pos{0, 0}) {
		t.Errorf("first revealed = %v, want the clicked cell", mv.Revealed[0])
	}
	if mv.Status != StatusWon || g.Status != StatusWon {
		t.Errorf("expected a win, got %s", mv.Status)
	}

	snap := g.Snapshot()
	if len(snap.MinePositions) != 1 || snap.MinePositions[0] != (Pos{3, 3}) {
		t.Errorf("MinePositions = %v, want [(3,3)]", snap.MinePositions)
	}
}

func TestGame_RevealNumberDoesNotFlood(t *testing.T) {
	g := newTestGame(t, "000010000")
	mv, _ := g.Reveal(0, 0)
	if len(mv.Revealed) != 1 || mv.Adjacent != 1 {
		t.Errorf("got %+v, want a single Revealed(1)", mv)
	}
	if mv.Status != StatusPlaying {
		t.Errorf("Status = %s, want playing", mv.Status)
	}
	if snap := g.Snapshot(); snap.MinePositions != nil {
		t.Error("mine positions must stay hidden while playing")
	}
}

func TestGame_RedundantRevealIsUnchanged(t *testing.T) {
	g := newTestGame(t, "000010000")
	g.Reveal(0, 0)
	mv, err := g.Reveal(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if mv.Outcome != OutcomeUnchanged || mv.Adjacent != 1 {
		t.Errorf("got %+v, want unchanged Revealed(1)", mv)
	}
	if g.Moves != 1 {
		t.Errorf("Moves = %d, want 1", g.Moves)
	}
}

func TestGame_ToggleFlag(t *testing.T) {
	g := newTestGame(t, "000010000")

	mv, _ := g.ToggleFlag(1, 1)
	if mv.Outcome != OutcomeFlagPlaced {
		t.Errorf("first toggle = %s, want flagged", mv.Outcome)
	}
	if g.Snapshot().Flags != 1 {
		t.Errorf("Flags = %d, want 1", g.Snapshot().Flags)
	}
	if mv, _ := g.Reveal(1, 1); mv.Outcome != OutcomeUnchanged || g.Status != StatusPlaying {
		t.Errorf("flag should protect the mine, got %+v", mv)
	}
	mv, _ = g.ToggleFlag(1, 1)
	if mv.Outcome != OutcomeFlagRemoved {
		t.Errorf("second toggle = %s, want unflagged", mv.Outcome)
	}
}

func TestGame_OutOfRange(t *testing.T) {
	g := newTestGame(t, "000010000")
	if _, err := g.Reveal(5, 5); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if _, err := g.ToggleFlag(-1, 0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if g.Moves != 0 {
		t.Errorf("Moves = %d, want 0", g.Moves)
	}
}

func TestGame_Observe(t *testing.T) {
	g := newTestGame(t, "000010000")

	var got []Snapshot
	cancel := g.Observe(ObserverFunc(func(s Snapshot) { got = append(got, s) }))

	g.Reveal(0, 0)
	g.Reveal(0, 0) // unchanged: no notification
	g.ToggleFlag(1, 1)
	if len(got) != 2 {
		t.Fatalf("observer called %d times, want 2", len(got))
	}
	if got[1].Flags != 1 || got[0].Flags != 0 {
		t.Errorf("snapshots should be independent copies, got flags %d and %d", got[0].Flags, got[1].Flags)
	}

	cancel()
	g.ToggleFlag(1, 1)
	if len(got) != 2 {
		t.Errorf("observer called after cancel")
	}
}

func TestGame_Elapsed(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	l, _ := ParseLayout("000010000")
	g, err := New(0, 0, WithLayout(l), WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(90 * time.Second)
	g.Reveal(1, 1)
	now = now.Add(time.Hour)
	if d := g.Elapsed(); d != 90*time.Second {
		t.Errorf("Elapsed = %v, want 90s", d)
	}
}

func TestSnapshot_Text(t *testing.T) {
	g := newTestGame(t, "0000 0000 0000 0001")
	g.ToggleFlag(3, 3)
	g.Reveal(0, 3)
	want := "|....|\n|....|\n|..11|\n|..1F|\n"
	if got := g.Snapshot().Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}
