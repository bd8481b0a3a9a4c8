package sshplay

import (
	"bytes"
	"context"
	"io"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/robalobadob/minesweeper/internal/config"
	"github.com/robalobadob/minesweeper/internal/levels"
	"github.com/robalobadob/minesweeper/internal/metrics"
	"github.com/robalobadob/minesweeper/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cat, err := levels.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		DefaultSize:  9,
		DefaultMines: 10,
		MaxSize:      32,
		SSHHostKey:   filepath.Join(t.TempDir(), "keys", "host_ed25519"),
	}
	s, err := New(cfg, store.NewMemoryStore(), cat, metrics.New("mines"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLoadHostKey_CreatesThenReuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host_key")
	a, err := LoadHostKey(path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := LoadHostKey(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.PublicKey().Marshal(), b.PublicKey().Marshal()) {
		t.Error("second load produced a different key")
	}
	if a.PublicKey().Type() != ssh.KeyAlgoED25519 {
		t.Errorf("key type = %s", a.PublicKey().Type())
	}
}

func TestPlayer_Commands(t *testing.T) {
	p := newPlayer(newTestServer(t), "ann")

	steps := []struct {
		line string
		want []string
		quit bool
	}{
		{"", nil, false},
		{"show", []string{"No game yet"}, false},
		{"r 0 0", []string{"No game yet"}, false},
		{"levels", []string{"tutorial", "4x4"}, false},
		{"new nope", []string{`No level "nope"`}, false},
		{"new 3 9", []string{"invalid board configuration"}, false},
		{"new 99 1", []string{"at most 32x32"}, false},
		{"new tutorial", []string{"4x4, 1 mines", "|####|"}, false},
		{"f 3 3", []string{"|###F|", "flags 1", "And you're really sure?"}, false},
		{"r 9 9", []string{"outside 4x4"}, false},
		{"r x 1", []string{"must be numbers"}, false},
		{"r 0 0", []string{"|....|", "won", "You've won, lucker!", "after 2 moves"}, false},
		{"r 1 1", []string{"This game is over"}, false},
		{"bogus", []string{"Unknown command"}, false},
		{"help", []string{"new <size> <mines>"}, false},
		{"quit", []string{"Bye."}, true},
	}
	for _, st := range steps {
		out, quit := p.exec(st.line)
		if quit != st.quit {
			t.Errorf("%q: quit = %v", st.line, quit)
		}
		for _, w := range st.want {
			if !strings.Contains(out, w) {
				t.Errorf("%q: output %q missing %q", st.line, out, w)
			}
		}
	}
}

func TestPlayer_GameIsShared(t *testing.T) {
	s := newTestServer(t)
	p := newPlayer(s, "bob")
	p.exec("new 5 3")

	var owner store.Owner
	err := s.games.Update(context.Background(), p.gameID, func(sess *store.Session) error {
		owner = sess.Owner
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if owner.AnonID != "ssh:bob" {
		t.Errorf("owner = %+v", owner)
	}

	// Once the store drops the game the player is told so.
	if err := s.games.Delete(context.Background(), p.gameID); err != nil {
		t.Fatal(err)
	}
	if out, _ := p.exec("show"); !strings.Contains(out, "expired") {
		t.Errorf("show after delete = %q", out)
	}
}

// syncBuffer collects terminal output from the client side.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) waitFor(t *testing.T, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		ok := strings.Contains(s.b.String(), want)
		s.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.Fatalf("timed out waiting for %q in %q", want, s.b.String())
}

func TestServe_EndToEnd(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()

	client, err := ssh.Dial("tcp", ln.Addr().String(), &ssh.ClientConfig{
		User:            "carol",
		Auth:            []ssh.AuthMethod{ssh.Password("anything")},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	out := &syncBuffer{}
	sess.Stdout = out
	if err := sess.Shell(); err != nil {
		t.Fatal(err)
	}

	out.waitFor(t, "Hello carol.")
	_, _ = io.WriteString(stdin, "new tutorial\r")
	out.waitFor(t, "4x4, 1 mines")
	_, _ = io.WriteString(stdin, "r 0 0\r")
	out.waitFor(t, "You've won, lucker!")
	_, _ = io.WriteString(stdin, "quit\r")
	out.waitFor(t, "Bye.")
}
