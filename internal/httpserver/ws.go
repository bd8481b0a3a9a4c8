// internal/httpserver/ws.go
//
// GET /game/{id}/ws streams board snapshots over a WebSocket.
// The current board is sent on connect, then one message per state change
// until the game finishes, the client goes away or the game is purged.

package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minesweeper/internal/game"
	"github.com/robalobadob/minesweeper/internal/store"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// latest delivers snapshots to a single consumer. When the consumer lags, the
// pending snapshot is replaced, so the newest state is never lost.
type latest chan game.Snapshot

func (c latest) StateChanged(s game.Snapshot) {
	select {
	case c <- s:
		return
	default:
	}
	select {
	case <-c:
	default:
	}
	select {
	case c <- s:
	default:
	}
}

// handleWatch upgrades the connection and relays snapshots of one game.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	updates := make(latest, 1)

	var (
		first  game.Snapshot
		cancel func()
	)
	err := s.games.Update(r.Context(), id, func(sess *store.Session) error {
		first = sess.Game.Snapshot()
		cancel = sess.Game.Observe(updates)
		return nil
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	defer func() {
		// ErrNotFound here means the game was purged along with its observers.
		_ = s.games.Update(context.Background(), id, func(*store.Session) error {
			cancel()
			return nil
		})
	}()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("gameId", id).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	// Reader: handles pongs and notices the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	send := func(snap game.Snapshot) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(snap) == nil
	}
	closeWith := func(code int, text string) {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteWait))
	}

	if !send(first) {
		return
	}
	if first.Status.Finished() {
		closeWith(websocket.CloseNormalClosure, string(first.Status))
		return
	}
	for {
		select {
		case snap := <-updates:
			if !send(snap) {
				return
			}
			if snap.Status.Finished() {
				closeWith(websocket.CloseNormalClosure, string(snap.Status))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			// A purged game never sends again; stop watching it.
			if !s.games.Has(id) {
				closeWith(websocket.CloseGoingAway, "game expired")
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
