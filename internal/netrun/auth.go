package netrun

import (
	"go.uber.org/zap"

	"github.com/go-codenames/server/internal/protocol"
	"github.com/go-codenames/server/internal/registry"
	"github.com/go-codenames/server/internal/session"
	"github.com/go-codenames/server/internal/store"
)

// handleAuth implements the AUTHENTICATING branch of SPEC_FULL.md §4.3:
// CHECK_ID, SIGNUP, LOGIN, TOKEN, EDIT_NICK.
func (s *Server) handleAuth(sess *session.Session, rec protocol.Record) {
	switch rec.Type {
	case "CHECK_ID":
		s.handleCheckID(sess, rec.Fields)
	case "SIGNUP":
		s.handleSignup(sess, rec.Fields)
	case "LOGIN":
		s.handleLogin(sess, rec.Fields)
	case "TOKEN":
		s.handleTokenCheck(sess, rec.Fields)
	case "EDIT_NICK":
		s.handleEditNick(sess, rec.Fields)
	default:
		s.send(sess, protocol.Format("AUTH_ERROR", "UNKNOWN_PACKET"))
	}
}

func (s *Server) handleCheckID(sess *session.Session, fields []string) {
	if len(fields) != 1 {
		s.send(sess, protocol.Format("AUTH_ERROR", "BAD_FIELDS"))
		return
	}
	if s.store.CheckID(fields[0]) {
		s.send(sess, protocol.Format("CHECK_ID_DUPLICATE"))
		return
	}
	s.send(sess, protocol.Format("CHECK_ID_OK"))
}

func (s *Server) handleSignup(sess *session.Session, fields []string) {
	if len(fields) != 3 {
		s.send(sess, protocol.Format("AUTH_ERROR", "BAD_FIELDS"))
		return
	}
	id, pw, nick := fields[0], fields[1], fields[2]

	switch s.store.Signup(id, pw, nick) {
	case store.SignupDuplicate:
		s.send(sess, protocol.Format("SIGNUP_DUPLICATE"))
	case store.SignupDBError:
		s.send(sess, protocol.Format("SIGNUP_ERROR"))
	case store.SignupOK:
		s.completeLogin(sess, id, nick, "SIGNUP_OK")
	}
}

func (s *Server) handleLogin(sess *session.Session, fields []string) {
	if len(fields) != 2 {
		s.send(sess, protocol.Format("AUTH_ERROR", "BAD_FIELDS"))
		return
	}
	id, pw := fields[0], fields[1]

	switch s.store.Login(id, pw) {
	case store.LoginNoAccount:
		s.send(sess, protocol.Format("LOGIN_NO_ACCOUNT"))
	case store.LoginWrongPassword:
		s.send(sess, protocol.Format("LOGIN_WRONG_PW"))
	case store.LoginSuspended:
		s.send(sess, protocol.Format("LOGIN_SUSPENDED"))
	case store.LoginDBError:
		s.send(sess, protocol.Format("LOGIN_ERROR"))
	case store.LoginOK:
		profile := s.store.LookupProfile(id)
		nick := id
		if profile != nil {
			nick = profile.Nickname
		}
		s.completeLogin(sess, id, nick, "LOGIN_OK")
	}
}

// completeLogin is shared by SIGNUP_OK and LOGIN_OK: mint a token, claim
// it in the session registry, and move the session to IN_LOBBY.
func (s *Server) completeLogin(sess *session.Session, id, nick, okType string) {
	errType := "LOGIN_ERROR"
	if okType == "SIGNUP_OK" {
		errType = "SIGNUP_ERROR"
	}

	token, err := registry.GenerateToken()
	if err != nil {
		s.log.Error("token generation failed", zap.Error(err))
		s.send(sess, protocol.Format(errType))
		return
	}
	if err := s.sessions.AssignToken(sess, token); err != nil {
		s.log.Error("assigning token failed", zap.Error(err))
		s.send(sess, protocol.Format(errType))
		return
	}

	sess.SetLoginID(id)
	sess.SetNickname(nick)
	sess.SetState(session.InLobby)
	s.send(sess, protocol.Format(okType, token))
}

// handleTokenCheck validates a previously issued token, per the
// self-check pattern in SPEC_FULL.md's scenario 1 (a session confirms its
// own just-minted token before proceeding). A token resolving to a
// different live session is rejected rather than transferred, since the
// session registry's token index is one-to-one with a live socket and
// reassigning it would violate that invariant.
func (s *Server) handleTokenCheck(sess *session.Session, fields []string) {
	if len(fields) != 1 {
		s.send(sess, protocol.Format("AUTH_ERROR", "BAD_FIELDS"))
		return
	}
	owner := s.sessions.FindByToken(fields[0])
	if owner == nil || owner != sess {
		s.send(sess, protocol.Format("INVALID_TOKEN"))
		return
	}
	s.send(sess, protocol.Format("TOKEN_VALID", owner.Nickname()))
}

func (s *Server) handleEditNick(sess *session.Session, fields []string) {
	if len(fields) != 2 {
		s.send(sess, protocol.Format("AUTH_ERROR", "BAD_FIELDS"))
		return
	}
	token, newNick := fields[0], fields[1]

	owner := s.sessions.FindByToken(token)
	if owner == nil || owner != sess {
		s.send(sess, protocol.Format("INVALID_TOKEN"))
		return
	}
	if !s.store.EditNickname(sess.LoginID(), newNick) {
		s.send(sess, protocol.Format("NICKNAME_EDIT_ERROR"))
		return
	}
	sess.SetNickname(newNick)
	s.send(sess, protocol.Format("NICKNAME_EDIT_OK"))
}

func (s *Server) send(sess *session.Session, line string) {
	if err := sess.Send(line); err != nil {
		s.log.Debug("send failed", zap.String("session", sess.ID.String()), zap.Error(err))
	}
}
