// main.go
//
// Entry point for the minesweeper server.
// Startup order:
//   1. Configuration (.env, config.yaml, environment) and log level.
//   2. SQLite ledger and migrations.
//   3. Preset levels, metrics, live game store.
//   4. HTTP API, idle-game janitor and, when SSH_ADDR is set, the SSH front-end.
//
// SIGINT/SIGTERM cancel the root context; both listeners shut down from it.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minesweeper/assets"
	"github.com/robalobadob/minesweeper/internal/config"
	"github.com/robalobadob/minesweeper/internal/daily"
	"github.com/robalobadob/minesweeper/internal/httpserver"
	"github.com/robalobadob/minesweeper/internal/levels"
	"github.com/robalobadob/minesweeper/internal/metrics"
	"github.com/robalobadob/minesweeper/internal/sshplay"
	"github.com/robalobadob/minesweeper/internal/store"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if !cfg.Production() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer db.Close()
	migrations, err := assets.Migrations()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read migrations")
	}
	if err := store.Migrate(db, migrations); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	cat, err := levels.Load(cfg.LevelsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load levels")
	}
	log.Info().Int("levels", cat.Len()).Msg("levels loaded")

	games := store.NewMemoryStore()
	m := metrics.New("mines")
	srv := httpserver.New(httpserver.Deps{
		Config:  cfg,
		Games:   games,
		Ledger:  store.NewRecords(db),
		Daily:   daily.NewStore(db),
		Levels:  cat,
		Metrics: m,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go srv.RunJanitor(ctx, time.Minute)

	if cfg.SSHAddr != "" {
		ssrv, err := sshplay.New(cfg, games, cat, m)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up ssh")
		}
		go func() {
			if err := ssrv.ListenAndServe(ctx, cfg.SSHAddr); err != nil {
				log.Error().Err(err).Msg("ssh server exited")
			}
		}()
	}

	log.Info().Str("port", cfg.Port).Msg("starting minesweeper server")
	if err := srv.Start(ctx, ":"+cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("shut down")
}
