// Package matchqueue is the FIFO of sessions waiting to be matched into a
// room. Grounded on original_source/CodeNamesServer/src/SessionManager.cpp's
// matchingQueue_/GetWaitingPlayers (tombstone-on-cancel, lazy compaction on
// drain) per SPEC_FULL.md §4.5.
package matchqueue

import (
	"sync"

	"go.uber.org/zap"

	"github.com/go-codenames/server/internal/session"
)

// RoomSize is the number of waiting sessions a drain hands off at once.
const RoomSize = 6

// Queue is a FIFO of waiting sessions with O(1)-amortized cancellation.
type Queue struct {
	mu      sync.Mutex
	order   []*session.Session
	member  map[*session.Session]bool
	log     *zap.Logger
}

// New constructs an empty matching queue.
func New(log *zap.Logger) *Queue {
	return &Queue{
		member: make(map[*session.Session]bool),
		log:    log,
	}
}

// Enqueue adds sess to the back of the queue if it isn't already a member.
// Returns the queue's current live member count (including sess).
func (q *Queue) Enqueue(sess *session.Session) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.member[sess] {
		return q.liveCountLocked()
	}
	q.order = append(q.order, sess)
	q.member[sess] = true
	return q.liveCountLocked()
}

// Cancel marks sess as no longer waiting. It does not compact the backing
// slice; Drain skips tombstoned entries. Calling Cancel twice, or on a
// session never enqueued, is a no-op success either way (SPEC_FULL.md §8's
// idempotent-MATCHING_CANCEL property).
func (q *Queue) Cancel(sess *session.Session) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.member, sess)
}

// Drain serializes with Enqueue/Cancel. If at least RoomSize live members
// are waiting, it removes and returns the first RoomSize of them (oldest
// first) as `full`, with `ok` true. Otherwise it returns the full live
// member count as `waiting` with `ok` false, and the queue is unchanged
// apart from compacting out tombstones already skipped past.
func (q *Queue) Drain() (full []*session.Session, waiting int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	live := make([]*session.Session, 0, len(q.order))
	for _, s := range q.order {
		if q.member[s] {
			live = append(live, s)
		}
	}
	q.order = live

	if len(live) < RoomSize {
		return nil, len(live), false
	}

	chosen := append([]*session.Session(nil), live[:RoomSize]...)
	for _, s := range chosen {
		delete(q.member, s)
	}
	q.order = live[RoomSize:]
	return chosen, 0, true
}

// Waiters returns a snapshot of the currently live (non-tombstoned)
// members, oldest first, for broadcasting WAIT_REPLY counts to everyone
// still waiting.
func (q *Queue) Waiters() []*session.Session {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*session.Session, 0, len(q.order))
	for _, s := range q.order {
		if q.member[s] {
			out = append(out, s)
		}
	}
	return out
}

func (q *Queue) liveCountLocked() int {
	n := 0
	for _, s := range q.order {
		if q.member[s] {
			n++
		}
	}
	return n
}
