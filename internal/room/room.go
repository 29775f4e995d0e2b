// Package room implements the per-match game manager: six player slots,
// the 25-card board, and the HINT/GUESS turn machine wrapped around
// internal/engine.State.
//
// Adapted from the actor shape of internal/lobby/lobby.go in the
// draft-pick teacher this module started from (inbox channel + single
// goroutine loop serializes every state transition, same role a
// recursive_mutex plays in
// original_source/CodeNamesServer/src/GameManager.cpp) but the message
// catalog and turn/phase/scoring rules are grounded on that file's
// ProcessHint/ProcessAnswer/CheckWinner/EndGame.
package room

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/go-codenames/server/internal/engine"
	"github.com/go-codenames/server/internal/protocol"
	"github.com/go-codenames/server/internal/session"
	"github.com/go-codenames/server/internal/store"
)

// ResultRecorder is the narrow slice of the credential store a Room needs
// at endgame. Satisfied by *store.Store.
type ResultRecorder interface {
	SaveResult(nickname, result string) store.ReportResult
}

// Slot is one of the six fixed seats. Team and Role are derived from the
// slot index alone and never change for the life of the match, per
// SPEC_FULL.md §3 ("roles are positional and fixed").
type Slot struct {
	Session *session.Session
}

func slotTeam(i int) engine.Team {
	if i < 3 {
		return engine.TeamRed
	}
	return engine.TeamBlue
}

func slotRole(i int) engine.Role {
	if i == 0 || i == 3 {
		return engine.RoleSpymaster
	}
	return engine.RoleAgent
}

type inboundPacket struct {
	sess    *session.Session
	msgType string
	fields  []string
}

type inboundDisconnect struct {
	sess *session.Session
}

type inboundShutdown struct{}

// Room is one live match. All mutation happens on its single loop
// goroutine; HandlePacket/Disconnect only enqueue.
type Room struct {
	id    uuid.UUID
	inbox chan any
	// done is closed by teardown so HandlePacket/Disconnect/Shutdown can
	// select on it instead of ever sending on inbox once the room's loop
	// has stopped reading from it.
	done chan struct{}

	slots [6]Slot
	state engine.State

	words engine.WordSource
	store ResultRecorder
	log   *zap.Logger

	// onEnd is called exactly once, after teardown completes, so the
	// owning registry can forget this room without room importing it.
	onEnd func(id string)
}

// New constructs a room for six already-matched sessions (slot order is
// arrival order into the queue, per SPEC_FULL.md §3) and starts its loop.
// It does not broadcast anything until Start is called.
func New(players [6]*session.Session, words engine.WordSource, recorder ResultRecorder, log *zap.Logger, onEnd func(id string)) *Room {
	id := uuid.New()
	r := &Room{
		id:    id,
		inbox: make(chan any, 64),
		done:  make(chan struct{}),
		words: words,
		store: recorder,
		log:   log.With(zap.String("room", id.String())),
		onEnd: onEnd,
	}
	for i, s := range players {
		r.slots[i] = Slot{Session: s}
	}
	go r.loop()
	return r
}

// RoomID implements session.RoomHandle.
func (r *Room) RoomID() string { return r.id.String() }

// HandlePacket implements session.RoomHandle by enqueueing the record for
// processing on the room's own goroutine. A packet racing the room's own
// teardown (e.g. another seat's answer just ended the game) is dropped
// rather than sent on a channel that may already be closed.
func (r *Room) HandlePacket(sess *session.Session, msgType string, fields []string) {
	select {
	case r.inbox <- inboundPacket{sess: sess, msgType: msgType, fields: fields}:
	case <-r.done:
	}
}

// Disconnect implements session.RoomHandle.
func (r *Room) Disconnect(sess *session.Session) {
	select {
	case r.inbox <- inboundDisconnect{sess: sess}:
	case <-r.done:
	}
}

// Shutdown tears the room down without a winner, e.g. on server stop.
func (r *Room) Shutdown() {
	select {
	case r.inbox <- inboundShutdown{}:
	case <-r.done:
	}
}

// Start deals the board and runs the opening broadcast sequence from
// SPEC_FULL.md §4.6: GAME_START per recipient, one shared GAME_INIT,
// ALL_CARDS, then the initial TURN_UPDATE.
func (r *Room) Start() error {
	rng, err := seededRand()
	if err != nil {
		return fmt.Errorf("room: seeding rng: %w", err)
	}
	cards, err := engine.NewBoard(r.words, rng)
	if err != nil {
		return fmt.Errorf("room: dealing board: %w", err)
	}
	r.state = engine.NewState(cards)

	for _, slot := range r.slots {
		if slot.Session == nil {
			continue
		}
		slot.Session.SetState(session.InGame)
		slot.Session.SetRoom(r)
		r.sendTo(slot.Session, protocol.Format("GAME_START", slot.Session.ID.String()))
	}

	initFields := make([]string, 0, 6*4)
	for i, slot := range r.slots {
		team := strconv.Itoa(int(slotTeam(i)))
		isLeader := "0"
		if slotRole(i) == engine.RoleSpymaster {
			isLeader = "1"
		}
		if slot.Session == nil {
			initFields = append(initFields, "EMPTY", strconv.Itoa(i), team, isLeader)
			continue
		}
		initFields = append(initFields, slot.Session.Nickname(), strconv.Itoa(i), team, isLeader)
	}
	r.broadcast(protocol.Format("GAME_INIT", initFields...))

	cardFields := make([]string, 0, 25*3)
	for _, c := range r.state.Cards {
		cardFields = append(cardFields, c.Word, strconv.Itoa(int(c.Type)), boolWire(c.Revealed))
	}
	r.broadcast(protocol.Format("ALL_CARDS", cardFields...))

	r.broadcastTurnUpdate()
	return nil
}

func (r *Room) loop() {
	for m := range r.inbox {
		switch msg := m.(type) {
		case inboundPacket:
			r.dispatchSafely(func() { r.handlePacket(msg.sess, msg.msgType, msg.fields) })
		case inboundDisconnect:
			r.dispatchSafely(func() { r.handleDisconnect(msg.sess) })
		case inboundShutdown:
			r.dispatchSafely(func() { r.teardown(engine.TeamNone, true) })
		}
		// teardown (from any of the branches above) marks the game over and
		// closes r.done; stop draining once it has run so no further
		// message is handled on a torn-down room.
		if r.state.GameOver {
			return
		}
	}
}

// dispatchSafely isolates a single inbound message's handling from a panic
// in a handler (a malformed field, a bad index). A goroutine panic that
// escapes unrecovered kills the whole process, not just this room, so a
// single bad packet must never be allowed to propagate past this point.
func (r *Room) dispatchSafely(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("recovered from panic handling room message", zap.Any("panic", rec))
		}
	}()
	fn()
}

func (r *Room) handlePacket(sess *session.Session, msgType string, fields []string) {
	if r.state.GameOver {
		return
	}
	switch msgType {
	case "HINT":
		r.handleHint(sess, fields)
	case "ANSWER":
		r.handleAnswer(sess, fields)
	case "CHAT":
		r.handleChat(sess, fields)
	default:
		// Unknown in-game packet: silently ignored, per SPEC_FULL.md §7.
	}
}

func (r *Room) slotOf(sess *session.Session) int {
	for i, slot := range r.slots {
		if slot.Session == sess {
			return i
		}
	}
	return -1
}

func (r *Room) handleHint(sess *session.Session, fields []string) {
	if len(fields) != 2 {
		return
	}
	idx := r.slotOf(sess)
	if idx == -1 {
		return
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return
	}

	cmd := engine.Command{Type: engine.CmdHint, Team: slotTeam(idx), Role: slotRole(idx), Word: fields[0], Number: n}
	events, next, err := engine.Apply(r.state, cmd)
	if err != nil {
		// Wrong turn/role/phase/number: ignored per SPEC_FULL.md §7.
		return
	}
	r.state = next
	for _, ev := range events {
		if ev.Type == engine.EvtHintGiven {
			r.broadcast(protocol.Format("HINT", strconv.Itoa(int(ev.Team)), ev.Word, strconv.Itoa(ev.Number)))
		}
	}
	r.broadcastTurnUpdate()
}

func (r *Room) handleAnswer(sess *session.Session, fields []string) {
	if len(fields) != 1 {
		return
	}
	idx := r.slotOf(sess)
	if idx == -1 {
		return
	}

	cmd := engine.Command{Type: engine.CmdAnswer, Team: slotTeam(idx), Role: slotRole(idx), Word: fields[0]}
	events, next, err := engine.Apply(r.state, cmd)
	if err != nil {
		return
	}
	r.state = next

	for _, ev := range events {
		switch ev.Type {
		case engine.EvtInvalidWord:
			r.sendTo(sess, protocol.Format("ANSWER_RESULT", "INVALID", ev.Word))
		case engine.EvtCardRevealed:
			r.broadcastSystemChat(fmt.Sprintf("%s revealed %s", sess.Nickname(), ev.Word))
			r.broadcast(protocol.Format("CARD_UPDATE", strconv.Itoa(ev.CardIndex), "1", strconv.Itoa(ev.RemainingTries)))
		case engine.EvtTurnEnded:
			r.broadcastTurnUpdate()
		case engine.EvtGameOver:
			r.broadcastSystemChat(winnerSummary(ev.Winner))
			r.broadcast(protocol.Format("GAME_OVER", strconv.Itoa(int(ev.Winner))))
			r.teardown(ev.Winner, false)
		}
	}
}

func (r *Room) handleChat(sess *session.Session, fields []string) {
	if len(fields) != 1 {
		return
	}
	idx := r.slotOf(sess)
	if idx == -1 {
		return
	}
	r.broadcast(protocol.Format("CHAT", strconv.Itoa(int(slotTeam(idx))), strconv.Itoa(idx), sess.Nickname(), fields[0]))
}

func (r *Room) handleDisconnect(sess *session.Session) {
	idx := r.slotOf(sess)
	if idx == -1 {
		return
	}
	r.slots[idx].Session = nil

	if r.state.GameOver {
		return
	}
	// A seat going empty mid-match leaves the remaining five with no way
	// to finish six-handed play; force an end rather than stall them in
	// IN_GAME, per SPEC_FULL.md §4.6.
	r.broadcastSystemChat("a player disconnected, ending the match")
	r.broadcast(protocol.Format("GAME_OVER", strconv.Itoa(int(engine.TeamNone))))
	r.teardown(engine.TeamNone, true)
}

// teardown writes results (when the match actually concluded) and returns
// every still-seated session to IN_LOBBY, clearing back-references both
// ways as SPEC_FULL.md §9 requires.
func (r *Room) teardown(winner engine.Team, forced bool) {
	r.state.GameOver = true
	r.state.Winner = winner
	r.state.Forced = forced

	for i, slot := range r.slots {
		sess := slot.Session
		if sess == nil {
			continue
		}
		if !forced && r.store != nil {
			result := "LOSS"
			if slotTeam(i) == winner {
				result = "WIN"
			}
			if res := r.store.SaveResult(sess.Nickname(), result); res == store.ReportNotFound {
				r.log.Warn("saving match result for unknown nickname", zap.String("nickname", sess.Nickname()))
			}
		}
		sess.SetRoom(nil)
		sess.SetState(session.InLobby)
	}

	if r.onEnd != nil {
		r.onEnd(r.id.String())
	}
	// Close done, not inbox: once done is closed, HandlePacket/Disconnect's
	// select always has a ready, panic-free branch to take instead of
	// racing a send against this channel. inbox is left for GC once the
	// room is no longer referenced; loop() has already stopped draining it.
	close(r.done)
}

func (r *Room) broadcastTurnUpdate() {
	r.broadcast(protocol.Format("TURN_UPDATE",
		strconv.Itoa(int(r.state.Turn)),
		strconv.Itoa(int(r.state.Phase)),
		strconv.Itoa(r.state.RedScore),
		strconv.Itoa(r.state.BlueScore),
	))
}

func (r *Room) broadcastSystemChat(text string) {
	r.broadcast(protocol.Format("CHAT", strconv.Itoa(int(engine.TeamSystem)), "0", "SYSTEM", text))
}

func (r *Room) broadcast(line string) {
	for _, slot := range r.slots {
		if slot.Session != nil {
			r.sendTo(slot.Session, line)
		}
	}
}

func (r *Room) sendTo(sess *session.Session, line string) {
	if err := sess.Send(line); err != nil {
		r.log.Debug("send failed", zap.String("session", sess.ID.String()), zap.Error(err))
	}
}

func winnerSummary(winner engine.Team) string {
	switch winner {
	case engine.TeamRed:
		return "RED wins the match"
	case engine.TeamBlue:
		return "BLUE wins the match"
	default:
		return "the match ended with no winner"
	}
}

func boolWire(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// seededRand builds a math/rand source seeded from crypto/rand, so board
// shuffles aren't predictable from the process start time.
func seededRand() (*mrand.Rand, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, err
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]))
	return mrand.New(mrand.NewSource(seed)), nil
}
