package matchqueue

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/go-codenames/server/internal/session"
)

func newSession(t *testing.T) *session.Session {
	t.Helper()
	client, srv := net.Pipe()
	t.Cleanup(func() { client.Close() })
	return session.New(srv, zap.NewNop())
}

func TestDrainBelowRoomSize(t *testing.T) {
	q := New(zap.NewNop())
	for i := 0; i < 5; i++ {
		q.Enqueue(newSession(t))
	}

	full, waiting, ok := q.Drain()
	assert.False(t, ok)
	assert.Nil(t, full)
	assert.Equal(t, 5, waiting)
}

func TestDrainExactlyRoomSize(t *testing.T) {
	q := New(zap.NewNop())
	var sessions []*session.Session
	for i := 0; i < RoomSize; i++ {
		s := newSession(t)
		sessions = append(sessions, s)
		q.Enqueue(s)
	}

	full, _, ok := q.Drain()
	require.True(t, ok)
	assert.Equal(t, sessions, full)

	// queue is now empty
	_, waiting, ok := q.Drain()
	assert.False(t, ok)
	assert.Equal(t, 0, waiting)
}

func TestDrainFIFOOrderSurvivesCancel(t *testing.T) {
	q := New(zap.NewNop())
	var sessions []*session.Session
	for i := 0; i < RoomSize+1; i++ {
		s := newSession(t)
		sessions = append(sessions, s)
		q.Enqueue(s)
	}

	// cancel the third session; remaining 6 should still drain in order.
	q.Cancel(sessions[2])

	full, _, ok := q.Drain()
	require.True(t, ok)
	want := append(append([]*session.Session{}, sessions[:2]...), sessions[3:]...)
	assert.Equal(t, want, full)
}

func TestCancelIdempotent(t *testing.T) {
	q := New(zap.NewNop())
	s := newSession(t)
	q.Enqueue(s)

	q.Cancel(s)
	q.Cancel(s) // second cancel is a no-op, not an error

	_, waiting, ok := q.Drain()
	assert.False(t, ok)
	assert.Equal(t, 0, waiting)
}

func TestWaitersExcludesCanceled(t *testing.T) {
	q := New(zap.NewNop())
	var sessions []*session.Session
	for i := 0; i < 3; i++ {
		s := newSession(t)
		sessions = append(sessions, s)
		q.Enqueue(s)
	}
	q.Cancel(sessions[1])

	waiters := q.Waiters()
	assert.Equal(t, []*session.Session{sessions[0], sessions[2]}, waiters)
}

func TestEnqueueDuplicateSessionNotCountedTwice(t *testing.T) {
	q := New(zap.NewNop())
	s := newSession(t)

	count1 := q.Enqueue(s)
	count2 := q.Enqueue(s)
	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}
