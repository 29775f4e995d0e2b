package registry

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/go-codenames/server/internal/session"
)

func pipeSession(t *testing.T) *session.Session {
	t.Helper()
	client, srv := net.Pipe()
	t.Cleanup(func() { client.Close() })
	return session.New(srv, zap.NewNop())
}

func TestAddAndFindByToken(t *testing.T) {
	r := New(zap.NewNop())
	s := pipeSession(t)

	require.NoError(t, r.Add(s))
	require.NoError(t, r.AssignToken(s, "tok-1"))

	assert.Same(t, s, r.FindByToken("tok-1"))
	assert.Nil(t, r.FindByToken("nope"))
}

func TestAddDuplicateSocketRejected(t *testing.T) {
	r := New(zap.NewNop())
	s := pipeSession(t)

	require.NoError(t, r.Add(s))
	assert.ErrorIs(t, r.Add(s), ErrDuplicateSocket)
}

func TestAssignTokenDuplicateRejected(t *testing.T) {
	r := New(zap.NewNop())
	a := pipeSession(t)
	b := pipeSession(t)

	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))
	require.NoError(t, r.AssignToken(a, "shared"))

	assert.ErrorIs(t, r.AssignToken(b, "shared"), ErrDuplicateToken)
}

func TestRemoveClearsBothIndexes(t *testing.T) {
	r := New(zap.NewNop())
	s := pipeSession(t)

	require.NoError(t, r.Add(s))
	require.NoError(t, r.AssignToken(s, "tok-1"))
	assert.Equal(t, 1, r.Count())

	r.Remove(s)
	assert.Equal(t, 0, r.Count())
	assert.Nil(t, r.FindByToken("tok-1"))
}

func TestGenerateTokenLengthAndAlphabet(t *testing.T) {
	tok, err := GenerateToken()
	require.NoError(t, err)
	assert.Len(t, tok, TokenLength)
	for _, c := range tok {
		assert.Contains(t, tokenAlphabet, string(c))
	}
}

func TestGenerateTokenUnique(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
