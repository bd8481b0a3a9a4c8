// internal/sshplay/server.go
//
// SSH front-end: play over `ssh -p 2200 anyname@host`.
// Responsibilities:
//   - Host key management (load from disk, or generate ed25519 and persist).
//   - Accepting connections with any user name/password.
//   - One line terminal per session channel, driven by player.exec.
//
// Games started here live in the shared store like HTTP games, so they can be
// watched through GET /game/{id} and its WebSocket stream.

package sshplay

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/robalobadob/minesweeper/internal/config"
	"github.com/robalobadob/minesweeper/internal/levels"
	"github.com/robalobadob/minesweeper/internal/metrics"
	"github.com/robalobadob/minesweeper/internal/store"
)

// Server accepts SSH connections and runs a text game per session.
type Server struct {
	ssh     *ssh.ServerConfig
	cfg     *config.Config
	games   store.Store
	levels  *levels.Catalog
	metrics *metrics.Metrics
}

// New builds a Server using the host key at cfg.SSHHostKey.
func New(cfg *config.Config, games store.Store, cat *levels.Catalog, m *metrics.Metrics) (*Server, error) {
	signer, err := LoadHostKey(cfg.SSHHostKey)
	if err != nil {
		return nil, err
	}
	sc := &ssh.ServerConfig{
		// Any password is fine: the user name only labels the player.
		PasswordCallback: func(ssh.ConnMetadata, []byte) (*ssh.Permissions, error) {
			return nil, nil
		},
		NoClientAuth: true,
	}
	sc.AddHostKey(signer)
	return &Server{ssh: sc, cfg: cfg, games: games, levels: cat, metrics: m}, nil
}

// LoadHostKey reads a PEM private key from path, generating and writing an
// ed25519 key there when the file does not exist.
func LoadHostKey(path string) (ssh.Signer, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		return ssh.ParsePrivateKey(b)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	block, err := ssh.MarshalPrivateKey(priv, "minesweeper host key")
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Msg("generated ssh host key")
	return ssh.NewSignerFromKey(priv)
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("ssh listening")
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. Open sessions are
// closed on the way out.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var (
		mu    sync.Mutex
		conns = make(map[net.Conn]struct{})
		wg    sync.WaitGroup
	)
	go func() {
		<-ctx.Done()
		ln.Close()
		mu.Lock()
		for c := range conns {
			c.Close()
		}
		mu.Unlock()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		mu.Lock()
		conns[nc] = struct{}{}
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(nc)
			mu.Lock()
			delete(conns, nc)
			mu.Unlock()
		}()
	}
}

func (s *Server) handleConn(nc net.Conn) {
	defer nc.Close()
	sc, chans, reqs, err := ssh.NewServerConn(nc, s.ssh)
	if err != nil {
		log.Debug().Err(err).Str("remote", nc.RemoteAddr().String()).Msg("ssh handshake")
		return
	}
	defer sc.Close()
	log.Info().Str("user", sc.User()).Str("remote", sc.RemoteAddr().String()).Msg("ssh connected")
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		if nch.ChannelType() != "session" {
			_ = nch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := nch.Accept()
		if err != nil {
			log.Warn().Err(err).Msg("ssh accept channel")
			continue
		}
		go s.serveSession(sc.User(), ch, requests)
	}
	log.Info().Str("user", sc.User()).Msg("ssh disconnected")
}

// serveSession runs the line terminal for one session channel.
func (s *Server) serveSession(user string, ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()

	t := term.NewTerminal(ch, "> ")
	go func() {
		for req := range requests {
			ok := false
			switch req.Type {
			case "shell", "pty-req":
				ok = true
				if req.Type == "pty-req" {
					if w, h, parsed := parsePtyRequest(req.Payload); parsed {
						_ = t.SetSize(w, h)
					}
				}
			case "window-change":
				ok = true
				if w, h, parsed := parseWindowChange(req.Payload); parsed {
					_ = t.SetSize(w, h)
				}
			}
			if req.WantReply {
				_ = req.Reply(ok, nil)
			}
		}
	}()

	p := newPlayer(s, user)
	_, _ = io.WriteString(t, p.greeting())
	for {
		line, err := t.ReadLine()
		if err != nil {
			return
		}
		out, quit := p.exec(line)
		if out != "" {
			_, _ = io.WriteString(t, out)
		}
		if quit {
			return
		}
	}
}

// parsePtyRequest extracts the terminal width and height from a pty-req
// payload (RFC 4254 §6.2).
func parsePtyRequest(b []byte) (int, int, bool) {
	var req struct {
		Term          string
		Width, Height uint32
		PxW, PxH      uint32
		Modes         string
	}
	if err := ssh.Unmarshal(b, &req); err != nil {
		return 0, 0, false
	}
	return int(req.Width), int(req.Height), true
}

// parseWindowChange extracts the new size from a window-change payload.
func parseWindowChange(b []byte) (int, int, bool) {
	var req struct {
		Width, Height uint32
		PxW, PxH      uint32
	}
	if err := ssh.Unmarshal(b, &req); err != nil {
		return 0, 0, false
	}
	return int(req.Width), int(req.Height), true
}
