// internal/httpserver/routes_daily.go
//
// HTTP routes for the daily board.
// Exposes two endpoints under /daily:
//   - POST /daily/new         → start (or resume) today's board
//   - GET  /daily/leaderboard → fastest winners for today (or ?date=)
//
// Moves on a daily board go through the ordinary /game/reveal and /game/flag
// routes. Each player gets one attempt per UTC day: the result is written when
// the board is won or lost, and /daily/new refuses once a result exists.
// Layouts are derived from date + salt, so everyone plays the same board.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minesweeper/internal/daily"
	"github.com/robalobadob/minesweeper/internal/game"
	"github.com/robalobadob/minesweeper/internal/store"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	results  DailyResults
	mu       sync.Mutex        // guards sessions
	sessions map[string]string // game ID keyed by playerID|date
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router, results DailyResults) *dailyServer {
	dd := &dailyServer{
		srv:      s,
		results:  results,
		sessions: make(map[string]string),
	}
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", dd.handleNew)
		r.Get("/leaderboard", dd.handleLeaderboard)
	})
	return dd
}

// playerID is the user ID when signed in, otherwise the anon cookie ID.
func playerID(o store.Owner) string {
	if o.UserID != "" {
		return o.UserID
	}
	return o.AnonID
}

// newRes is returned by /daily/new.
type newRes struct {
	GameID string         `json:"gameId"`
	Date   string         `json:"date"`
	Played bool           `json:"played"`
	Board  *game.Snapshot `json:"board,omitempty"`
}

// handleNew creates or resumes the daily board for the current date.
//   - Player already has a result for today → Played=true, no board.
//   - A live session exists → return it.
//   - Otherwise build today's layout and start a new session.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := d.srv.ownerFor(w, r)
	uid := playerID(owner)
	date := daily.DateKey(d.srv.now())

	if played, err := d.results.AlreadyPlayed(ctx, uid, date); err != nil {
		log.Warn().Err(err).Str("player", uid).Msg("daily already played")
	} else if played {
		_ = json.NewEncoder(w).Encode(newRes{Date: date, Played: true})
		return
	}

	key := uid + "|" + date
	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.sessions[key]; ok {
		var snap game.Snapshot
		err := d.srv.games.Update(ctx, id, func(sess *store.Session) error {
			snap = sess.Game.Snapshot()
			return nil
		})
		if err == nil {
			_ = json.NewEncoder(w).Encode(newRes{GameID: id, Date: date, Board: &snap})
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			writeErr(w, r, err)
			return
		}
		// Purged while idle: the layout is deterministic, so start over.
		delete(d.sessions, key)
	}

	cfg := d.srv.cfg
	l, err := daily.Layout(d.srv.now(), cfg.DailySalt, cfg.DailySize, cfg.DailyMines)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	g, err := game.New(0, 0, game.WithLayout(l), game.WithClock(d.srv.now))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	sess := &store.Session{Game: g, Owner: owner, Daily: date}
	if err := d.srv.startSession(ctx, sess, "daily"); err != nil {
		writeErr(w, r, err)
		return
	}
	d.sessions[key] = g.ID

	snap := g.Snapshot()
	_ = json.NewEncoder(w).Encode(newRes{GameID: g.ID, Date: date, Board: &snap})
}

// finished writes the daily result for a board that just ended.
func (d *dailyServer) finished(ctx context.Context, p progress) {
	res := daily.Result{
		UserID:    playerID(p.owner),
		Date:      p.daily,
		Won:       p.status == game.StatusWon,
		Moves:     p.moves,
		ElapsedMs: int(p.elapsed.Milliseconds()),
	}
	if err := d.results.InsertResult(ctx, res); err != nil {
		log.Warn().Err(err).Str("player", res.UserID).Str("date", res.Date).Msg("insert daily result")
	}
}

// forgetBefore drops session pointers for dates other than today.
func (d *dailyServer) forgetBefore(today string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.sessions {
		if !strings.HasSuffix(key, "|"+today) {
			delete(d.sessions, key)
		}
	}
}

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
// ?limit= caps the rows (1–100, default 20).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.srv.now())
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "bad_limit")
			return
		}
		limit = n
	}
	rows, err := d.results.Leaderboard(r.Context(), date, limit)
	if err != nil {
		log.Error().Err(err).Msg("daily leaderboard")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	_ = json.NewEncoder(w).Encode(lbRes{Date: date, Top: rows})
}
