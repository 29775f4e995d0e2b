package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/go-codenames/server/internal/adminhttp"
	"github.com/go-codenames/server/internal/config"
	"github.com/go-codenames/server/internal/matchqueue"
	"github.com/go-codenames/server/internal/netrun"
	"github.com/go-codenames/server/internal/registry"
	"github.com/go-codenames/server/internal/room"
	"github.com/go-codenames/server/internal/roomregistry"
	"github.com/go-codenames/server/internal/store"
	"github.com/go-codenames/server/internal/wordlist"
)

func main() {
	cfg := &config.Config{}
	cmd := config.NewCommand(cfg, run)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, cfg *config.Config) error {
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	words, err := wordlist.Load(cfg.WordListPath)
	if err != nil {
		return fmt.Errorf("loading word list: %w", err)
	}

	st, err := store.Open(cfg.DBPath, log)
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}
	defer st.Close()

	sessions := registry.New(log)
	queue := matchqueue.New(log)
	rooms := roomregistry.New(words, room.ResultRecorder(st), log)

	gameServer := netrun.New(cfg, st, sessions, queue, rooms, log)

	adminRouter := adminhttp.NewRouter(statsSource{sessions: sessions, queue: queue, rooms: rooms}, log)
	adminServer := &http.Server{Addr: cfg.AdminAddr, Handler: adminRouter}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting game listener", zap.String("addr", cfg.Addr()))
		return gameServer.Run(gCtx)
	})

	g.Go(func() error {
		log.Info("starting admin http surface", zap.String("addr", cfg.AdminAddr))
		errCh := make(chan error, 1)
		go func() { errCh <- adminServer.ListenAndServe() }()
		select {
		case <-gCtx.Done():
			return adminServer.Shutdown(context.Background())
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// statsSource adapts the process-wide singletons to adminhttp.StatsSource
// without that package needing to import any of them directly.
type statsSource struct {
	sessions *registry.Registry
	queue    *matchqueue.Queue
	rooms    *roomregistry.Registry
}

func (s statsSource) SessionCount() int { return s.sessions.Count() }
func (s statsSource) WaitingCount() int { return len(s.queue.Waiters()) }
func (s statsSource) RoomCount() int    { return s.rooms.Count() }
