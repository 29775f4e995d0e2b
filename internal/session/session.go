// Package session implements one connected peer: its transport, its
// authentication/lobby/game state, and its serialized send path.
//
// Grounded on original_source/CodeNamesServer/include/Session.h (state
// enum, token/nickname fields, send lock, weak room back-reference) and
// translated to Go idiom: the C++ recursive send mutex becomes a plain
// sync.Mutex guarding a bufio.Writer, and the "weak" GameManager pointer
// becomes the RoomHandle interface below, so this package never imports
// the room package (avoiding an import cycle) while the room package can
// still reach back into a Session's exported methods.
package session

import (
	"bufio"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the session's position in the protocol state machine.
type State int

const (
	Authenticating State = iota
	WaitingMatch
	InLobby
	InGame
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "AUTHENTICATING"
	case WaitingMatch:
		return "WAITING_MATCH"
	case InLobby:
		return "IN_LOBBY"
	case InGame:
		return "IN_GAME"
	default:
		return "UNKNOWN"
	}
}

// RoomHandle is the non-owning reference a Session holds to the Room it is
// seated in. Only populated while State() == InGame.
type RoomHandle interface {
	// RoomID identifies the room, for logging.
	RoomID() string
	// HandlePacket forwards a decoded in-game record to the room for
	// validation and state transition.
	HandlePacket(sess *Session, msgType string, fields []string)
	// Disconnect tells the room this session's socket went away.
	Disconnect(sess *Session)
}

// Session is one connected peer.
type Session struct {
	ID   uuid.UUID
	conn net.Conn
	log  *zap.Logger

	sendMu sync.Mutex
	writer *bufio.Writer
	closed bool

	mu       sync.Mutex
	state    State
	token    string
	id       string
	nickname string
	room     RoomHandle
}

// New wraps an accepted connection in a Session, starting in Authenticating.
func New(conn net.Conn, log *zap.Logger) *Session {
	id := uuid.New()
	return &Session{
		ID:     id,
		conn:   conn,
		writer: bufio.NewWriter(conn),
		state:  Authenticating,
		log:    log.With(zap.String("session", id.String())),
	}
}

// Conn exposes the underlying connection for the read loop.
func (s *Session) Conn() net.Conn { return s.conn }

// Log returns this session's scoped logger.
func (s *Session) Log() *zap.Logger { return s.log }

// Send enqueues a pre-formatted wire line (see protocol.Format) for this
// session. Concurrent callers never interleave bytes of a single record,
// but ordering between records from different callers is not guaranteed.
func (s *Session) Send(line string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.closed {
		return net.ErrClosed
	}
	if _, err := s.writer.WriteString(line); err != nil {
		return err
	}
	return s.writer.Flush()
}

// Close is idempotent. It releases the transport; callers (the network
// runtime) are responsible for dropping this session from the registry and
// notifying its room, since Session itself holds no registry/room-registry
// reference (per SPEC_FULL.md §9, ownership flows one way).
func (s *Session) Close() error {
	s.sendMu.Lock()
	alreadyClosed := s.closed
	s.closed = true
	s.sendMu.Unlock()

	if alreadyClosed {
		return nil
	}
	return s.conn.Close()
}

// IsClosed reports whether Close has already run.
func (s *Session) IsClosed() bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.closed
}

// State returns the session's current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState transitions the session's state.
func (s *Session) SetState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// Token returns the session's bearer token, or "" before login/signup.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetToken assigns the session's bearer token.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// ID returns the login id this session authenticated with, "" before
// login/signup. Not to be confused with the exported Session.ID field,
// which is this connection's own opaque identity.
func (s *Session) LoginID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SetLoginID records the login id this session authenticated with.
func (s *Session) SetLoginID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

// Nickname returns the session's display name, "" before login/signup.
func (s *Session) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname
}

// SetNickname assigns the session's display name.
func (s *Session) SetNickname(nick string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nickname = nick
}

// Room returns the room this session is seated in, or nil.
func (s *Session) Room() RoomHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// SetRoom sets (or, passed nil, clears) the session's room back-reference.
func (s *Session) SetRoom(r RoomHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = r
}
