// internal/store/records.go
//
// SQLite-backed ledger of users and finished/ongoing game outcomes.
// Only counters and outcomes are written; boards stay in memory.
//
// Responsibilities:
//   - User signup (validation + bcrypt) and credential checks.
//   - Game history rows, owned by a user or an anonymous cookie ID.
//   - Per-user stats (games played, wins, streak) bumped when a game ends.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/minesweeper/internal/game"
)

var (
	ErrUsernameTaken  = errors.New("username taken")
	ErrBadCredentials = errors.New("invalid username or password")
	ErrInvalidSignup  = errors.New("invalid signup")
)

// User matches the users table shape.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	GamesPlayed  int       `json:"gamesPlayed"`
	Wins         int       `json:"wins"`
	Streak       int       `json:"streak"`
}

// Owner identifies who a game row belongs to: a signed-in user or an
// anonymous cookie ID. Exactly one field is set.
type Owner struct {
	UserID string
	AnonID string
}

func (o Owner) clause() (string, any) {
	if o.UserID != "" {
		return `user_id=?`, o.UserID
	}
	return `anonymous_id=?`, o.AnonID
}

// GameRow is one history entry.
type GameRow struct {
	ID         string `json:"id"`
	Size       int    `json:"size"`
	Mines      int    `json:"mines"`
	Level      string `json:"level,omitempty"`
	Status     string `json:"status"`
	Moves      int    `json:"moves"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// Records wraps the ledger database.
type Records struct {
	db *sql.DB
}

// NewRecords wraps an opened and migrated database.
func NewRecords(db *sql.DB) *Records { return &Records{db: db} }

// DB exposes the handle for packages that own their own tables.
func (r *Records) DB() *sql.DB { return r.db }

// ------------------------------- users -------------------------------------

// CreateUser validates input, checks uniqueness, hashes the password and
// inserts a new user.
func (r *Records) CreateUser(ctx context.Context, username, pw string) (*User, error) {
	username = normalizeUsername(username)
	if err := validateSignup(username, pw); err != nil {
		return nil, err
	}
	var exists int
	_ = r.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE lower(username)=lower(?)`, username).Scan(&exists)
	if exists == 1 {
		return nil, ErrUsernameTaken
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(h),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if _, err := r.db.ExecContext(ctx, `INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate returns the user if username/password match.
func (r *Records) Authenticate(ctx context.Context, username, pw string) (*User, error) {
	u, err := r.scanUser(r.db.QueryRowContext(ctx, `SELECT id, username, password_hash, created_at, games_played, wins, streak
	                      FROM users WHERE lower(username)=lower(?)`, normalizeUsername(username)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pw)) != nil {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// UserByID loads a user or returns ErrNotFound.
func (r *Records) UserByID(ctx context.Context, id string) (*User, error) {
	u, err := r.scanUser(r.db.QueryRowContext(ctx, `SELECT id, username, password_hash, created_at, games_played, wins, streak
	                      FROM users WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (r *Records) scanUser(row *sql.Row) (*User, error) {
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created, &u.GamesPlayed, &u.Wins, &u.Streak); err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &u, nil
}

// normalizeUsername trims whitespace; adjust here for stricter rules.
func normalizeUsername(u string) string {
	return strings.TrimSpace(u)
}

// validateSignup enforces basic username/password rules.
func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return fmt.Errorf("%w: username must be 3–24 chars", ErrInvalidSignup)
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("%w: username: letters, numbers, underscore only", ErrInvalidSignup)
		}
	}
	if len(p) < 8 || len(p) > 72 {
		return fmt.Errorf("%w: password must be 8–72 chars", ErrInvalidSignup)
	}
	return nil
}

// ------------------------------- games -------------------------------------

// GameStarted inserts the history row for a new game.
func (r *Records) GameStarted(ctx context.Context, o Owner, g *game.Game, level string) error {
	var userID, anonID any
	if o.UserID != "" {
		userID = o.UserID
	} else {
		anonID = o.AnonID
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO games (id, user_id, anonymous_id, size, mines, level, status, moves, started_at)
	                     VALUES (?,?,?,?,?,?,?,?,?)`,
		g.ID, userID, anonID, g.Size(), g.MineCount(), level, string(g.Status), g.Moves,
		g.StartedAt.UTC().Format(time.RFC3339))
	return err
}

// GameProgress stores the move count and status. When the game has just
// finished and belongs to a user, that user's stats are bumped in the same
// transaction.
func (r *Records) GameProgress(ctx context.Context, o Owner, id string, moves int, status game.Status, finishedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	clause, arg := o.clause()
	if !status.Finished() {
		if _, err := tx.ExecContext(ctx, `UPDATE games SET moves=? WHERE id=? AND `+clause, moves, id, arg); err != nil {
			return err
		}
		return tx.Commit()
	}

	res, err := tx.ExecContext(ctx, `UPDATE games SET moves=?, status=?, finished_at=? WHERE id=? AND status='playing' AND `+clause,
		moves, string(status), finishedAt.UTC().Format(time.RFC3339), id, arg)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 && o.UserID != "" {
		if err := bumpStats(ctx, tx, o.UserID, status == game.StatusWon); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// bumpStats increments games played and updates wins/streak (within tx).
func bumpStats(ctx context.Context, tx *sql.Tx, userID string, won bool) error {
	var gp, wins, streak int
	row := tx.QueryRowContext(ctx, `SELECT games_played, wins, streak FROM users WHERE id=?`, userID)
	if err := row.Scan(&gp, &wins, &streak); err != nil {
		return err
	}
	gp++
	if won {
		wins++
		streak++
	} else {
		streak = 0
	}
	_, err := tx.ExecContext(ctx, `UPDATE users SET games_played=?, wins=?, streak=? WHERE id=?`, gp, wins, streak, userID)
	return err
}

// ClaimAnonGames transfers anonymous games to a user account after auth.
func (r *Records) ClaimAnonGames(ctx context.Context, anonID, userID string) error {
	if anonID == "" || userID == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `UPDATE games SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID)
	return err
}

// RecentGames lists the newest games for a user.
func (r *Records) RecentGames(ctx context.Context, userID string, limit int) ([]GameRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, size, mines, level, status, moves, started_at, COALESCE(finished_at,'')
	                         FROM games WHERE user_id=? ORDER BY started_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []GameRow{}
	for rows.Next() {
		var gr GameRow
		if err := rows.Scan(&gr.ID, &gr.Size, &gr.Mines, &gr.Level, &gr.Status, &gr.Moves, &gr.StartedAt, &gr.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, gr)
	}
	return out, rows.Err()
}
