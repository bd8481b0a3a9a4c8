package store

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/robalobadob/minesweeper/internal/game"
)

const testSchema = `
CREATE TABLE users (
    id TEXT PRIMARY KEY, username TEXT NOT NULL UNIQUE COLLATE NOCASE,
    password_hash TEXT NOT NULL, created_at TEXT NOT NULL,
    games_played INTEGER NOT NULL DEFAULT 0, wins INTEGER NOT NULL DEFAULT 0,
    streak INTEGER NOT NULL DEFAULT 0);
CREATE TABLE games (
    id TEXT PRIMARY KEY, user_id TEXT, anonymous_id TEXT,
    size INTEGER NOT NULL, mines INTEGER NOT NULL, level TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'playing', moves INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL, finished_at TEXT);
`

// openTestDB opens an in-memory database or skips when the sqlite driver
// is unavailable (cgo disabled).
func openTestDB(t *testing.T) *Records {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fsys := fstest.MapFS{"001_init.sql": {Data: []byte(testSchema)}}
	if err := Migrate(db, fsys); err != nil {
		t.Fatal(err)
	}
	// Second run must be a no-op.
	if err := Migrate(db, fsys); err != nil {
		t.Fatal(err)
	}
	return NewRecords(db)
}

func TestRecords_SignupAndLogin(t *testing.T) {
	ctx := context.Background()
	r := openTestDB(t)

	u, err := r.CreateUser(ctx, "  alice ", "password123")
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "alice" {
		t.Errorf("Username = %q, want trimmed", u.Username)
	}
	if _, err := r.CreateUser(ctx, "ALICE", "password123"); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := r.Authenticate(ctx, "alice", "wrong-password"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("expected ErrBadCredentials, got %v", err)
	}
	got, err := r.Authenticate(ctx, "Alice", "password123")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != u.ID {
		t.Errorf("Authenticate returned %s, want %s", got.ID, u.ID)
	}
	if _, err := r.UserByID(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateSignup(t *testing.T) {
	cases := []struct {
		user, pw string
		ok       bool
	}{
		{"bob", "password1", true},
		{"bo", "password1", false},
		{"bob!", "password1", false},
		{"bob", "short", false},
	}
	for _, c := range cases {
		err := validateSignup(c.user, c.pw)
		if (err == nil) != c.ok {
			t.Errorf("validateSignup(%q, %q) = %v", c.user, c.pw, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidSignup) {
			t.Errorf("validateSignup(%q, %q) = %v, want ErrInvalidSignup", c.user, c.pw, err)
		}
	}
}

func TestRecords_GameLifecycleBumpsStats(t *testing.T) {
	ctx := context.Background()
	r := openTestDB(t)
	u, err := r.CreateUser(ctx, "carol", "password123")
	if err != nil {
		t.Fatal(err)
	}

	l, _ := game.ParseLayout("0000 0000 0000 0001")
	g, _ := game.New(0, 0, game.WithLayout(l))

	anon := Owner{AnonID: "anon-1"}
	if err := r.GameStarted(ctx, anon, g, "tutorial"); err != nil {
		t.Fatal(err)
	}
	if err := r.ClaimAnonGames(ctx, "anon-1", u.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := g.Reveal(0, 0); err != nil {
		t.Fatal(err)
	}
	if g.Status != game.StatusWon {
		t.Fatalf("Status = %s, want won", g.Status)
	}
	owner := Owner{UserID: u.ID}
	if err := r.GameProgress(ctx, owner, g.ID, g.Moves, g.Status, g.FinishedAt); err != nil {
		t.Fatal(err)
	}
	// A repeated finish must not count twice.
	if err := r.GameProgress(ctx, owner, g.ID, g.Moves, g.Status, g.FinishedAt); err != nil {
		t.Fatal(err)
	}

	me, err := r.UserByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if me.GamesPlayed != 1 || me.Wins != 1 || me.Streak != 1 {
		t.Errorf("stats = %d/%d/%d, want 1/1/1", me.GamesPlayed, me.Wins, me.Streak)
	}

	rows, err := r.RecentGames(ctx, u.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Status != "won" || rows[0].Level != "tutorial" {
		t.Errorf("RecentGames = %+v", rows)
	}
}
