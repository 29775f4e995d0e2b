package netrun

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/go-codenames/server/internal/matchqueue"
	"github.com/go-codenames/server/internal/protocol"
	"github.com/go-codenames/server/internal/session"
	"github.com/go-codenames/server/internal/store"
)

// handleLobby implements the WAITING_MATCH/IN_LOBBY branch of
// SPEC_FULL.md §4.3: CMD|QUERY_WAIT|<token>, MATCHING_CANCEL|<token>,
// SESSION_READY|<token>, plus the REPORT command used by scenario 2.
func (s *Server) handleLobby(sess *session.Session, rec protocol.Record) {
	switch rec.Type {
	case "CMD":
		s.handleCmd(sess, rec.Fields)
	case "MATCHING_CANCEL":
		s.handleMatchingCancel(sess, rec.Fields)
	case "SESSION_READY":
		s.handleSessionReady(sess, rec.Fields)
	case "REPORT":
		s.handleReport(sess, rec.Fields)
	default:
		s.send(sess, protocol.Format("LOBBY_ERROR", "UNKNOWN_PACKET"))
	}
}

func (s *Server) handleCmd(sess *session.Session, fields []string) {
	if len(fields) != 2 || fields[0] != "QUERY_WAIT" {
		s.send(sess, protocol.Format("LOBBY_ERROR", "UNKNOWN_PACKET"))
		return
	}
	token := fields[1]
	if sess.Token() != token {
		s.send(sess, protocol.Format("INVALID_TOKEN"))
		return
	}

	sess.SetState(session.WaitingMatch)
	s.queue.Enqueue(sess)
	s.drainQueue()
}

// drainQueue pulls a full batch off the matching queue if one is ready,
// per SPEC_FULL.md §4.5's "one caller at a time" handoff: QUEUE_FULL goes
// out to the chosen six before room construction begins, and everyone
// still waiting gets an updated WAIT_REPLY count.
func (s *Server) drainQueue() {
	full, waiting, ok := s.queue.Drain()
	if !ok {
		if waiting == 0 {
			return
		}
		reply := protocol.Format("WAIT_REPLY", strconv.Itoa(waiting), strconv.Itoa(matchqueue.RoomSize))
		for _, waiter := range s.queue.Waiters() {
			s.send(waiter, reply)
		}
		return
	}

	for _, waiter := range full {
		s.send(waiter, protocol.Format("QUEUE_FULL"))
	}

	var players [matchqueue.RoomSize]*session.Session
	copy(players[:], full)

	if _, err := s.rooms.Create(players); err != nil {
		s.log.Error("room creation failed", zap.Error(err))
		for _, waiter := range full {
			s.send(waiter, protocol.Format("QUEUE_ERROR"))
			waiter.SetState(session.InLobby)
		}
	}
}

func (s *Server) handleMatchingCancel(sess *session.Session, fields []string) {
	if len(fields) != 1 || fields[0] != sess.Token() {
		s.send(sess, protocol.Format("INVALID_TOKEN"))
		return
	}
	s.queue.Cancel(sess)
	sess.SetState(session.InLobby)
	s.send(sess, protocol.Format("CANCEL_OK"))
}

func (s *Server) handleSessionReady(sess *session.Session, fields []string) {
	if len(fields) != 1 {
		s.send(sess, protocol.Format("LOBBY_ERROR", "UNKNOWN_PACKET"))
		return
	}
	target := s.sessions.FindByToken(fields[0])
	if target == nil {
		s.send(sess, protocol.Format("SESSION_NOT_FOUND"))
		return
	}
	s.send(sess, protocol.Format("SESSION_ACK"))
}

func (s *Server) handleReport(sess *session.Session, fields []string) {
	if len(fields) != 2 || fields[0] != sess.Token() {
		s.send(sess, protocol.Format("INVALID_TOKEN"))
		return
	}
	nickname := fields[1]
	if s.store.ReportByNickname(nickname) == store.ReportOK {
		s.send(sess, protocol.Format("REPORT_OK"))
		return
	}
	s.send(sess, protocol.Format("REPORT_NOT_FOUND"))
}
