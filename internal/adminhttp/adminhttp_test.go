package adminhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStats struct {
	sessions, waiting, rooms int
}

func (f fakeStats) SessionCount() int { return f.sessions }
func (f fakeStats) WaitingCount() int { return f.waiting }
func (f fakeStats) RoomCount() int    { return f.rooms }

func TestHealthz(t *testing.T) {
	router := NewRouter(fakeStats{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStats(t *testing.T) {
	router := NewRouter(fakeStats{sessions: 3, waiting: 1, rooms: 0}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, Stats{Sessions: 3, Waiting: 1, Rooms: 0}, got)
}
