package daily

import (
	"context"
	"database/sql"
)

// Result is one finished daily board.
type Result struct {
	UserID    string `json:"userId"`
	Date      string `json:"date"`
	Won       bool   `json:"won"`
	Moves     int    `json:"moves"`
	ElapsedMs int    `json:"elapsedMs"`
}

// Store persists daily results in the daily_results table.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// AlreadyPlayed reports whether userID has a result for date.
func (s *Store) AlreadyPlayed(ctx context.Context, userID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM daily_results WHERE user_id=? AND date=?",
		userID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// InsertResult records a finished board, won or lost. A second result for
// the same day is ignored.
func (s *Store) InsertResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_results(user_id, date, won, moves, elapsed_ms)
		 VALUES(?,?,?,?,?)`, r.UserID, r.Date, r.Won, r.Moves, r.ElapsedMs,
	)
	return err
}

type LBRow struct {
	UserID    string `json:"userId"`
	Username  string `json:"username,omitempty"`
	Moves     int    `json:"moves"`
	ElapsedMs int    `json:"elapsedMs"`
}

// Leaderboard returns the fastest winners of date; losses are not listed.
func (s *Store) Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.user_id, COALESCE(u.username, ''), d.moves, d.elapsed_ms
		   FROM daily_results d
		   LEFT JOIN users u ON u.id = d.user_id
		  WHERE d.date=? AND d.won=1
		  ORDER BY d.elapsed_ms ASC, d.moves ASC, d.created_at ASC
		  LIMIT ?`, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LBRow{}
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.UserID, &r.Username, &r.Moves, &r.ElapsedMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
