package sshplay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minesweeper/internal/game"
	"github.com/robalobadob/minesweeper/internal/levels"
	"github.com/robalobadob/minesweeper/internal/quips"
	"github.com/robalobadob/minesweeper/internal/store"
)

const helpText = `Commands:
  new                 start a board with the default size
  new <size> <mines>  start a custom board
  new <level>         start a preset (see 'levels')
  r <x> <y>           reveal a cell (0-based column, row)
  f <x> <y>           toggle a flag
  show                print the board
  levels              list presets
  help                this text
  quit                leave
`

// player is one SSH session's view of the game.
type player struct {
	srv    *Server
	user   string
	owner  store.Owner
	gameID string
}

func newPlayer(s *Server, user string) *player {
	return &player{srv: s, user: user, owner: store.Owner{AnonID: "ssh:" + user}}
}

func (p *player) greeting() string {
	return fmt.Sprintf("Hello %s. %s\nType 'help' for commands.\n", p.user, quips.Welcome)
}

// exec runs one command line and returns the text to print.
func (p *player) exec(line string) (out string, quit bool) {
	f := strings.Fields(strings.ToLower(line))
	if len(f) == 0 {
		return "", false
	}
	switch f[0] {
	case "quit", "exit", "q":
		return "Bye.\n", true
	case "help", "?":
		return helpText, false
	case "levels":
		var b strings.Builder
		for _, l := range p.srv.levels.List() {
			fmt.Fprintf(&b, "  %-10s %dx%d\n", l.Name, l.Size, l.Size)
		}
		return b.String(), false
	case "new", "n":
		return p.newGame(f[1:]), false
	case "show", "s":
		return p.show(), false
	case "r", "reveal", "f", "flag":
		x, y, err := coords(f[1:])
		if err != nil {
			return err.Error() + "\n", false
		}
		cmd := (*game.Game).Reveal
		if f[0] == "f" || f[0] == "flag" {
			cmd = (*game.Game).ToggleFlag
		}
		return p.move(cmd, x, y), false
	default:
		return fmt.Sprintf("Unknown command %q. Type 'help'.\n", f[0]), false
	}
}

func coords(args []string) (int, int, error) {
	if len(args) != 2 {
		return 0, 0, errors.New("usage: <r|f> <x> <y>")
	}
	x, err1 := strconv.Atoi(args[0])
	y, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return 0, 0, errors.New("coordinates must be numbers")
	}
	return x, y, nil
}

func (p *player) newGame(args []string) string {
	cfg := p.srv.cfg
	var (
		g     *game.Game
		err   error
		level string
		kind  = "custom"
	)
	switch len(args) {
	case 0:
		g, err = game.New(cfg.DefaultSize, cfg.DefaultMines)
	case 1:
		kind, level = "level", args[0]
		var l *game.Layout
		if l, err = p.srv.levels.Layout(level); err == nil {
			g, err = game.New(0, 0, game.WithLayout(l))
		}
	case 2:
		size, err1 := strconv.Atoi(args[0])
		mines, err2 := strconv.Atoi(args[1])
		switch {
		case err1 != nil || err2 != nil:
			return "usage: new <size> <mines>\n"
		case size > cfg.MaxSize:
			return fmt.Sprintf("Boards are at most %dx%d.\n", cfg.MaxSize, cfg.MaxSize)
		}
		g, err = game.New(size, mines)
	default:
		return "usage: new [<size> <mines> | <level>]\n"
	}
	if errors.Is(err, levels.ErrUnknownLevel) {
		return fmt.Sprintf("No level %q. Type 'levels'.\n", level)
	}
	if err != nil {
		return err.Error() + "\n"
	}

	ctx := context.Background()
	if err := p.srv.games.Save(ctx, &store.Session{Game: g, Owner: p.owner, Level: level}); err != nil {
		return err.Error() + "\n"
	}
	p.gameID = g.ID
	p.srv.metrics.GamesStarted.WithLabelValues(kind).Inc()
	p.srv.metrics.LiveGames.Set(float64(p.srv.games.Len()))
	log.Info().Str("user", p.user).Str("gameId", g.ID).Int("size", g.Size()).Int("mines", g.MineCount()).Msg("ssh game started")

	return fmt.Sprintf("Game %s: %dx%d, %d mines.\n%s", g.ID, g.Size(), g.Size(), g.MineCount(), g.Snapshot().Text())
}

func (p *player) show() string {
	if p.gameID == "" {
		return "No game yet. Type 'new'.\n"
	}
	var snap game.Snapshot
	err := p.srv.games.Update(context.Background(), p.gameID, func(sess *store.Session) error {
		snap = sess.Game.Snapshot()
		return nil
	})
	if err != nil {
		return p.failure(err)
	}
	return render(snap, "")
}

func (p *player) move(cmd func(*game.Game, int, int) (game.Move, error), x, y int) string {
	if p.gameID == "" {
		return "No game yet. Type 'new'.\n"
	}
	var (
		mv      game.Move
		snap    game.Snapshot
		elapsed time.Duration
	)
	err := p.srv.games.Update(context.Background(), p.gameID, func(sess *store.Session) error {
		var err error
		if mv, err = cmd(sess.Game, x, y); err != nil {
			return err
		}
		snap = sess.Game.Snapshot()
		elapsed = sess.Game.Elapsed()
		return nil
	})
	if err != nil {
		return p.failure(err)
	}

	p.srv.metrics.Moves.WithLabelValues(string(mv.Outcome)).Inc()
	msg := quips.For(mv)
	if mv.Status.Finished() && mv.Outcome != game.OutcomeUnchanged {
		p.srv.metrics.GamesFinished.WithLabelValues(string(mv.Status)).Inc()
		log.Info().Str("user", p.user).Str("gameId", p.gameID).Str("state", string(mv.Status)).Msg("ssh game finished")
		msg += fmt.Sprintf("\nFinished in %s after %d moves. Type 'new' to play again.", elapsed.Round(time.Second), snap.Moves)
	}
	return render(snap, msg)
}

func (p *player) failure(err error) string {
	switch {
	case errors.Is(err, game.ErrGameFinished):
		return "This game is over. Type 'new' to play again.\n"
	case errors.Is(err, store.ErrNotFound):
		p.gameID = ""
		return "That game expired. Type 'new'.\n"
	default:
		return err.Error() + "\n"
	}
}

// render prints the board followed by the mine/flag counters and msg.
func render(s game.Snapshot, msg string) string {
	var b strings.Builder
	b.WriteString(s.Text())
	fmt.Fprintf(&b, "mines %d  flags %d  %s\n", s.Mines, s.Flags, s.Status)
	if msg != "" {
		b.WriteString(msg)
		b.WriteByte('\n')
	}
	return b.String()
}
