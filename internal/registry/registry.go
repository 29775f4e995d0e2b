// Package registry is the session registry: a process-wide index of live
// sessions by socket and by auth token, plus the global broadcast.
//
// Grounded on original_source/CodeNamesServer/src/SessionManager.cpp
// (sessions_ / tokenToSocket_ maps under a single mutex, snapshot-then-send
// BroadcastToAll) translated into Go with net.Conn as the socket key.
package registry

import (
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/go-codenames/server/internal/session"
)

var (
	// ErrDuplicateSocket is returned by Add when the connection is already registered.
	ErrDuplicateSocket = errors.New("registry: duplicate socket")
	// ErrDuplicateToken is returned by AssignToken when another live session holds the token.
	ErrDuplicateToken = errors.New("registry: duplicate token")
	// ErrNotRegistered is returned by AssignToken for a session Add never saw.
	ErrNotRegistered = errors.New("registry: session not registered")
)

// Registry indexes sessions by socket and by bearer token.
type Registry struct {
	mu            sync.Mutex
	bySocket      map[net.Conn]*session.Session
	byToken       map[string]net.Conn
	log           *zap.Logger
}

// New constructs an empty registry.
func New(log *zap.Logger) *Registry {
	return &Registry{
		bySocket: make(map[net.Conn]*session.Session),
		byToken:  make(map[string]net.Conn),
		log:      log,
	}
}

// Add registers a newly-accepted session. Fails if its socket is already present.
func (r *Registry) Add(sess *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySocket[sess.Conn()]; exists {
		return ErrDuplicateSocket
	}
	r.bySocket[sess.Conn()] = sess
	return nil
}

// Remove drops a session from both indexes.
func (r *Registry) Remove(sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.bySocket, sess.Conn())
	if tok := sess.Token(); tok != "" {
		if cur, ok := r.byToken[tok]; ok && cur == sess.Conn() {
			delete(r.byToken, tok)
		}
	}
}

// AssignToken binds token to sess, failing if another live session already
// holds it. Called once, right after a successful login/signup.
func (r *Registry) AssignToken(sess *session.Session, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySocket[sess.Conn()]; !exists {
		return ErrNotRegistered
	}
	if _, taken := r.byToken[token]; taken {
		return ErrDuplicateToken
	}
	r.byToken[token] = sess.Conn()
	sess.SetToken(token)
	return nil
}

// FindByToken resolves a bearer token to its live session, or nil.
func (r *Registry) FindByToken(token string) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byToken[token]
	if !ok {
		return nil
	}
	return r.bySocket[conn]
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySocket)
}

// BroadcastAll sends line to every live session. The registry lock is held
// only long enough to snapshot the session list; socket I/O happens after
// release, so a slow peer never blocks other sessions' registry access.
func (r *Registry) BroadcastAll(line string) {
	r.mu.Lock()
	snapshot := make([]*session.Session, 0, len(r.bySocket))
	for _, s := range r.bySocket {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		if s.IsClosed() {
			continue
		}
		if err := s.Send(line); err != nil {
			r.log.Debug("broadcast send failed", zap.String("session", s.ID.String()), zap.Error(err))
		}
	}
}
