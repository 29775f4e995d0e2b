// Package netrun is the network runtime: the TCP accept loop, one read
// loop per connection, and the bounded worker pool that dispatches
// decoded records to the credential store, matching queue, or room,
// depending on the owning session's current state.
//
// Adapted from the accept-loop/worker-pool shape of
// internal/ws/handler.go in the draft-pick teacher this module started
// from (there: one goroutine per upgraded websocket, messages dispatched
// inline) and the per-session-state dispatch table of
// original_source/CodeNamesServer/src/Session.cpp's HandlePacket, wired
// onto raw net.Listener/net.Conn per SPEC_FULL.md §4.8 instead of HTTP
// upgrade.
package netrun

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/go-codenames/server/internal/config"
	"github.com/go-codenames/server/internal/matchqueue"
	"github.com/go-codenames/server/internal/protocol"
	"github.com/go-codenames/server/internal/registry"
	"github.com/go-codenames/server/internal/roomregistry"
	"github.com/go-codenames/server/internal/session"
	"github.com/go-codenames/server/internal/store"
)

// Server is the game listener: it owns nothing but references to the
// process-wide singletons described in SPEC_FULL.md §9 (session registry,
// matching queue, room registry, credential store), which a caller
// constructs and shares with the admin HTTP surface.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	sessions *registry.Registry
	queue    *matchqueue.Queue
	rooms    *roomregistry.Registry
	log      *zap.Logger
	dispatch *semaphore.Weighted
	listener net.Listener
}

// New constructs a Server bound to the given singletons. It does not
// start listening until Run is called.
func New(cfg *config.Config, st *store.Store, sessions *registry.Registry, queue *matchqueue.Queue, rooms *roomregistry.Registry, log *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		queue:    queue,
		rooms:    rooms,
		log:      log,
		dispatch: semaphore.NewWeighted(int64(cfg.Workers)),
	}
}

// Run listens on cfg.Addr() and serves connections until ctx is canceled
// or a fatal accept error occurs. It returns nil on a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("netrun: listen %s: %w", s.cfg.Addr(), err)
	}
	s.listener = ln
	s.log.Info("listening", zap.String("addr", s.cfg.Addr()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		return s.acceptLoop(ctx, ln)
	})

	err = g.Wait()
	if errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("netrun: accept: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	sess := session.New(conn, s.log)
	if err := s.sessions.Add(sess); err != nil {
		s.log.Warn("rejecting duplicate connection", zap.Error(err))
		conn.Close()
		return
	}

	defer func() {
		s.queue.Cancel(sess)
		if room := sess.Room(); room != nil {
			room.Disconnect(sess)
		}
		s.sessions.Remove(sess)
		sess.Close()
	}()

	scanner := protocol.NewScanner(conn)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		rec, err := protocol.Parse(scanner.Text())
		if err != nil {
			continue // malformed line: silently dropped per SPEC_FULL.md §7
		}

		if err := s.dispatch.Acquire(ctx, 1); err != nil {
			return
		}
		go func(rec protocol.Record) {
			defer s.dispatch.Release(1)
			s.dispatchSafely(sess, rec)
		}(rec)
	}
}

// dispatchSafely isolates a single worker's handling of one record from a
// panic (a malformed field, a nil lookup). Per SPEC_FULL.md §7, an
// unhandled exception in a worker must not terminate the server — it
// closes only the offending session, same as any other fatal per-session
// error would.
func (s *Server) dispatchSafely(sess *session.Session, rec protocol.Record) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("recovered from panic dispatching record",
				zap.String("session", sess.ID.String()),
				zap.String("type", rec.Type),
				zap.Any("panic", r),
			)
			sess.Close()
		}
	}()
	s.route(sess, rec)
}

// route sends a decoded record to the handler appropriate for sess's
// current protocol state, per the state table in SPEC_FULL.md §4.3.
func (s *Server) route(sess *session.Session, rec protocol.Record) {
	switch sess.State() {
	case session.Authenticating:
		s.handleAuth(sess, rec)
	case session.WaitingMatch, session.InLobby:
		s.handleLobby(sess, rec)
	case session.InGame:
		if room := sess.Room(); room != nil {
			room.HandlePacket(sess, rec.Type, rec.Fields)
		}
	}
}
