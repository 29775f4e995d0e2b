// Package roomregistry owns the lifetime of every live room: creation
// from a freshly drained batch of six sessions, and idempotent removal
// once a room ends.
//
// Adapted from the actor shape of internal/hub/hub.go in the draft-pick
// teacher this module started from (an inbox-serialized map instead of a
// mutex-guarded one) grounded on
// original_source/CodeNamesServer/src/SessionManager.cpp's room creation
// and cleanup path, per SPEC_FULL.md §4.7.
package roomregistry

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/go-codenames/server/internal/engine"
	"github.com/go-codenames/server/internal/room"
	"github.com/go-codenames/server/internal/session"
)

type createMsg struct {
	players [6]*session.Session
	reply   chan createResult
}

type removeMsg struct {
	id string
}

type countMsg struct {
	reply chan int
}

type createResult struct {
	room *room.Room
	err  error
}

// Registry owns every live room and serializes creation/removal through a
// single inbox, mirroring the hub/lobby split the room package itself
// uses one level down.
type Registry struct {
	inbox chan any
	log   *zap.Logger
}

// New starts a room registry's loop.
func New(words engine.WordSource, recorder room.ResultRecorder, log *zap.Logger) *Registry {
	reg := &Registry{
		inbox: make(chan any, 64),
		log:   log,
	}
	go reg.loop(words, recorder)
	return reg
}

func (reg *Registry) loop(words engine.WordSource, recorder room.ResultRecorder) {
	rooms := make(map[string]*room.Room)
	for m := range reg.inbox {
		switch msg := m.(type) {
		case createMsg:
			r := room.New(msg.players, words, recorder, reg.log, func(id string) {
				reg.inbox <- removeMsg{id: id}
			})
			if err := r.Start(); err != nil {
				// Unwind: nothing has moved the sessions to IN_GAME state
				// yet other than what Start itself did, so let each
				// session fall back to IN_LOBBY.
				r.Shutdown()
				for _, s := range msg.players {
					if s != nil {
						s.SetRoom(nil)
						s.SetState(session.InLobby)
					}
				}
				msg.reply <- createResult{err: fmt.Errorf("roomregistry: starting room: %w", err)}
				break
			}
			rooms[r.RoomID()] = r
			msg.reply <- createResult{room: r}

		case removeMsg:
			delete(rooms, msg.id)

		case countMsg:
			msg.reply <- len(rooms)
		}
	}
}

// Create builds a Room for six matched sessions and starts it. On any
// startup failure it restores every session to IN_LOBBY and returns the
// error; no partially-started room is left behind.
func (reg *Registry) Create(players [6]*session.Session) (*room.Room, error) {
	reply := make(chan createResult, 1)
	reg.inbox <- createMsg{players: players, reply: reply}
	res := <-reply
	return res.room, res.err
}

// Count reports the number of live rooms, for the admin surface.
func (reg *Registry) Count() int {
	reply := make(chan int, 1)
	reg.inbox <- countMsg{reply: reply}
	return <-reply
}
