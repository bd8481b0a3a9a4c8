package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robalobadob/minesweeper/internal/game"
)

func TestLatest_KeepsNewest(t *testing.T) {
	c := make(latest, 1)
	c.StateChanged(game.Snapshot{Moves: 1})
	c.StateChanged(game.Snapshot{Moves: 2})
	c.StateChanged(game.Snapshot{Moves: 3})
	if got := (<-c).Moves; got != 3 {
		t.Errorf("Moves = %d, want 3", got)
	}
}

func TestWatch_StreamsUntilFinished(t *testing.T) {
	e := newTestEnv(t)
	ts := httptest.NewServer(e.srv.Router())
	defer ts.Close()

	ng, _ := e.newGame(t, `{"level":"tutorial"}`)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/" + ng.GameID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var b boardView
	if err := conn.ReadJSON(&b); err != nil {
		t.Fatal(err)
	}
	if b.GameID != ng.GameID || b.State != "playing" {
		t.Fatalf("first = %+v", b)
	}

	resp, err := http.Post(ts.URL+"/game/reveal", "application/json", strings.NewReader(moveBody(ng.GameID, 0, 0)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if err := conn.ReadJSON(&b); err != nil {
		t.Fatal(err)
	}
	if b.State != "won" || len(b.MinePositions) != 1 {
		t.Errorf("update = %+v", b)
	}

	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.CloseNormalClosure || ce.Text != "won" {
		t.Errorf("close = %v", err)
	}
}

func TestWatch_UnknownGame(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "GET", "/game/missing/ws", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "not_found" {
		t.Errorf("body = %v", body)
	}
}

func TestWatch_RejectsForeignOrigin(t *testing.T) {
	e := newTestEnv(t)
	ts := httptest.NewServer(e.srv.Router())
	defer ts.Close()
	ng, _ := e.newGame(t, `{"level":"tutorial"}`)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/" + ng.GameID + "/ws"
	h := http.Header{"Origin": []string{"http://evil.example"}}
	if _, resp, err := websocket.DefaultDialer.Dial(url, h); err == nil {
		t.Error("dial succeeded from a foreign origin")
	} else if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("status %d, want 403", resp.StatusCode)
	}
}
