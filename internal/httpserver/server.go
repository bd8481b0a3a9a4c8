// internal/httpserver/server.go
//
// HTTP server wiring for the minesweeper backend.
// Responsibilities:
//   - Router + middleware (request IDs, logging, metrics, JSON, CORS, timeouts,
//     panic recovery).
//   - Public endpoints: "/", "/health", "/metrics", "/levels".
//   - Game endpoints (optional auth): POST /game/new, /game/reveal, /game/flag,
//     GET /game/{id} and its WebSocket stream.
//   - Daily board endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /games/mine.
//   - Best-effort persistence of game outcomes and user stats.
//
// Notes:
//   - Boards live only in the in-memory store; the ledger sees counters and
//     outcomes. A failed ledger write is logged and never fails the move.
//   - Every command on a game runs inside store.Update, so two requests on the
//     same game never interleave.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minesweeper/internal/config"
	"github.com/robalobadob/minesweeper/internal/daily"
	"github.com/robalobadob/minesweeper/internal/game"
	"github.com/robalobadob/minesweeper/internal/levels"
	"github.com/robalobadob/minesweeper/internal/metrics"
	"github.com/robalobadob/minesweeper/internal/quips"
	"github.com/robalobadob/minesweeper/internal/store"
)

// Ledger is the persistent side of the server: users and game history.
// *store.Records implements it.
type Ledger interface {
	CreateUser(ctx context.Context, username, pw string) (*store.User, error)
	Authenticate(ctx context.Context, username, pw string) (*store.User, error)
	UserByID(ctx context.Context, id string) (*store.User, error)
	ClaimAnonGames(ctx context.Context, anonID, userID string) error
	GameStarted(ctx context.Context, o store.Owner, g *game.Game, level string) error
	GameProgress(ctx context.Context, o store.Owner, id string, moves int, status game.Status, finishedAt time.Time) error
	RecentGames(ctx context.Context, userID string, limit int) ([]store.GameRow, error)
}

// DailyResults persists daily board results. *daily.Store implements it.
type DailyResults interface {
	AlreadyPlayed(ctx context.Context, userID, date string) (bool, error)
	InsertResult(ctx context.Context, r daily.Result) error
	Leaderboard(ctx context.Context, date string, limit int) ([]daily.LBRow, error)
}

// Deps collects everything New needs.
type Deps struct {
	Config  *config.Config
	Games   store.Store
	Ledger  Ledger
	Daily   DailyResults
	Levels  *levels.Catalog
	Metrics *metrics.Metrics
	Now     func() time.Time // defaults to time.Now
}

// Server bundles router, live game store and ledger.
type Server struct {
	r        *chi.Mux
	cfg      *config.Config
	games    store.Store
	ledger   Ledger
	levels   *levels.Catalog
	metrics  *metrics.Metrics
	daily    *dailyServer
	now      func() time.Time
	upgrader websocket.Upgrader
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		cfg:     d.Config,
		games:   d.Games,
		ledger:  d.Ledger,
		levels:  d.Levels,
		metrics: d.Metrics,
		now:     d.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)   // zerolog access log
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(s.observeLatency)
	s.r.Use(jsonContentType) // default JSON responses
	s.r.Use(corsFor(s.cfg.ClientOrigin))

	// The WebSocket stream outlives any request timeout.
	s.r.Get("/game/{id}/ws", s.handleWatch)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"minesweeper-go","endpoints":["/health","/levels","POST /game/new","POST /game/reveal","POST /game/flag","GET /game/{id}","/daily/*","/auth/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		r.Get("/levels", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(s.levels.List())
		})

		// Game endpoints, optional auth (guests can play)
		r.With(s.withOptionalAuth()).Post("/game/new", s.handleNewGame)
		r.With(s.withOptionalAuth()).Post("/game/reveal", s.handleReveal)
		r.With(s.withOptionalAuth()).Post("/game/flag", s.handleFlag)
		r.Get("/game/{id}", s.handleGetGame)

		// Daily board, optional auth (guests play under their anon cookie)
		s.daily = s.mountDaily(r.With(s.withOptionalAuth()), d.Daily)

		// Auth + profile/stats
		s.mountAuthRoutes(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Start serves HTTP on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// RunJanitor purges games idle for longer than GAME_TTL every interval until
// ctx is cancelled.
func (s *Server) RunJanitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.purge(ctx)
		}
	}
}

func (s *Server) purge(ctx context.Context) {
	now := s.now()
	if n := s.games.Purge(ctx, now.Add(-s.cfg.GameTTL)); n > 0 {
		log.Info().Int("purged", n).Int("live", s.games.Len()).Msg("idle games purged")
	}
	s.daily.forgetBefore(daily.DateKey(now))
	s.metrics.LiveGames.Set(float64(s.games.Len()))
}

// ------------------------------ errors -------------------------------------

// errorStatus maps domain errors onto HTTP status codes and short codes.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, levels.ErrUnknownLevel):
		return http.StatusNotFound, "unknown_level"
	case errors.Is(err, game.ErrInvalidConfig):
		return http.StatusBadRequest, "invalid_config"
	case errors.Is(err, game.ErrOutOfRange):
		return http.StatusBadRequest, "out_of_range"
	case errors.Is(err, game.ErrGameFinished):
		return http.StatusConflict, "game_finished"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "timeout"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

// writeError writes {"error": code}.
func writeError(w http.ResponseWriter, status int, code string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// writeErr maps err through errorStatus. Client errors carry the detail.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, code)
		return
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "detail": err.Error()})
}

// ------------------------------ GAME ---------------------------------------

// newGameReq/Res payloads for POST /game/new. Size and Mines fall back to the
// configured defaults when omitted; Level picks a preset and wins over both.
type newGameReq struct {
	Size  *int   `json:"size"`
	Mines *int   `json:"mines"`
	Level string `json:"level"`
}
type newGameRes struct {
	GameID  string        `json:"gameId"`
	Message string        `json:"message"`
	Board   game.Snapshot `json:"board"`
}

// handleNewGame creates a new in-memory game and persists an owner row
// (either user_id or anonymous_id) for history/stats.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json")
			return
		}
	}

	var (
		g    *game.Game
		err  error
		kind = "custom"
	)
	if req.Level != "" {
		kind = "level"
		var l *game.Layout
		if l, err = s.levels.Layout(req.Level); err == nil {
			g, err = game.New(0, 0, game.WithLayout(l), game.WithClock(s.now))
		}
	} else {
		size, mines := s.cfg.DefaultSize, s.cfg.DefaultMines
		if req.Size != nil {
			size = *req.Size
		}
		if req.Mines != nil {
			mines = *req.Mines
		}
		if size > s.cfg.MaxSize {
			writeErr(w, r, game.ErrInvalidConfig)
			return
		}
		g, err = game.New(size, mines, game.WithClock(s.now))
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}

	sess := &store.Session{Game: g, Owner: s.ownerFor(w, r), Level: req.Level}
	if err := s.startSession(r.Context(), sess, kind); err != nil {
		writeErr(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(newGameRes{GameID: g.ID, Message: quips.Welcome, Board: g.Snapshot()})
}

// startSession saves a fresh session, counts it and writes its ledger row.
func (s *Server) startSession(ctx context.Context, sess *store.Session, kind string) error {
	if err := s.games.Save(ctx, sess); err != nil {
		return err
	}
	s.metrics.GamesStarted.WithLabelValues(kind).Inc()
	s.metrics.LiveGames.Set(float64(s.games.Len()))
	if err := s.ledger.GameStarted(ctx, sess.Owner, sess.Game, sess.Level); err != nil {
		log.Warn().Err(err).Str("gameId", sess.Game.ID).Msg("insert game row")
	}
	log.Debug().Str("gameId", sess.Game.ID).Str("kind", kind).
		Int("size", sess.Game.Size()).Int("mines", sess.Game.MineCount()).Msg("game started")
	return nil
}

// moveReq is the payload for POST /game/reveal and /game/flag.
type moveReq struct {
	GameID string `json:"gameId"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

type revealRes struct {
	Outcome  game.Outcome  `json:"outcome"`
	Count    int           `json:"count"`
	Revealed []game.Pos    `json:"revealed"`
	State    game.Status   `json:"state"`
	Message  string        `json:"message"`
	Board    game.Snapshot `json:"board"`
}

type flagRes struct {
	Outcome game.Outcome  `json:"outcome"`
	Flagged bool          `json:"flagged"`
	State   game.Status   `json:"state"`
	Message string        `json:"message"`
	Board   game.Snapshot `json:"board"`
}

// handleReveal uncovers a cell (flood-filling zeros).
func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	mv, snap, ok := s.play(w, r, (*game.Game).Reveal)
	if !ok {
		return
	}
	revealed := mv.Revealed
	if revealed == nil {
		revealed = []game.Pos{}
	}
	_ = json.NewEncoder(w).Encode(revealRes{
		Outcome:  mv.Outcome,
		Count:    mv.Adjacent,
		Revealed: revealed,
		State:    mv.Status,
		Message:  quips.For(mv),
		Board:    snap,
	})
}

// handleFlag toggles a flag on a covered cell.
func (s *Server) handleFlag(w http.ResponseWriter, r *http.Request) {
	mv, snap, ok := s.play(w, r, (*game.Game).ToggleFlag)
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(flagRes{
		Outcome: mv.Outcome,
		Flagged: mv.Outcome == game.OutcomeFlagPlaced,
		State:   mv.Status,
		Message: quips.For(mv),
		Board:   snap,
	})
}

// progress is what the ledger needs to know after a move, copied out of the
// session while its lock is held.
type progress struct {
	owner      store.Owner
	id         string
	moves      int
	status     game.Status
	finishedAt time.Time
	elapsed    time.Duration
	daily      string
}

// play decodes a move request, applies cmd under the game's lock and records
// the result. It writes the error response itself and reports ok=false then.
func (s *Server) play(w http.ResponseWriter, r *http.Request, cmd func(*game.Game, int, int) (game.Move, error)) (game.Move, game.Snapshot, bool) {
	var req moveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return game.Move{}, game.Snapshot{}, false
	}
	if req.GameID == "" {
		writeError(w, http.StatusBadRequest, "missing_game_id")
		return game.Move{}, game.Snapshot{}, false
	}

	me := userFrom(r)
	anon := anonIDFrom(r)

	var (
		mv   game.Move
		snap game.Snapshot
		p    progress
	)
	err := s.games.Update(r.Context(), req.GameID, func(sess *store.Session) error {
		// A guest who signed in mid-game keeps playing under the account;
		// ClaimAnonGames already moved the ledger row.
		if me != nil && sess.Owner.UserID == "" && sess.Owner.AnonID != "" && sess.Owner.AnonID == anon {
			sess.Owner = store.Owner{UserID: me.ID}
		}
		var err error
		if mv, err = cmd(sess.Game, req.X, req.Y); err != nil {
			return err
		}
		g := sess.Game
		snap = g.Snapshot()
		p = progress{
			owner:      sess.Owner,
			id:         g.ID,
			moves:      g.Moves,
			status:     g.Status,
			finishedAt: g.FinishedAt,
			elapsed:    g.Elapsed(),
			daily:      sess.Daily,
		}
		return nil
	})
	if err != nil {
		writeErr(w, r, err)
		return game.Move{}, game.Snapshot{}, false
	}

	s.metrics.Moves.WithLabelValues(string(mv.Outcome)).Inc()
	if mv.Outcome != game.OutcomeUnchanged {
		s.record(r.Context(), p)
	}
	return mv, snap, true
}

// record persists counters/history (best effort, non-fatal if it fails).
func (s *Server) record(ctx context.Context, p progress) {
	if err := s.ledger.GameProgress(ctx, p.owner, p.id, p.moves, p.status, p.finishedAt); err != nil {
		log.Warn().Err(err).Str("gameId", p.id).Msg("update game row")
	}
	if !p.status.Finished() {
		return
	}
	s.metrics.GamesFinished.WithLabelValues(string(p.status)).Inc()
	log.Info().Str("gameId", p.id).Str("state", string(p.status)).Int("moves", p.moves).
		Dur("elapsed", p.elapsed).Msg("game finished")
	if p.daily != "" {
		s.daily.finished(ctx, p)
	}
}

// handleGetGame returns the current board. ?format=text returns the framed
// character grid instead of JSON.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	var snap game.Snapshot
	err := s.games.Update(r.Context(), chi.URLParam(r, "id"), func(sess *store.Session) error {
		snap = sess.Game.Snapshot()
		return nil
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(snap.Text()))
		return
	}
	_ = json.NewEncoder(w).Encode(snap)
}
