// Package adminhttp exposes a small HTTP surface, separate from the game
// port, for health checks and point-in-time stats. It deliberately does
// not expose spectating or any in-game data: SPEC_FULL.md's non-goals
// exclude spectators, and this surface is an ambient operational concern,
// not a game feature.
package adminhttp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Stats is the narrow point-in-time snapshot /stats reports.
type Stats struct {
	Sessions int `json:"sessions"`
	Waiting  int `json:"waiting"`
	Rooms    int `json:"rooms"`
}

// StatsSource supplies the counts behind /stats. Implemented by whatever
// owns the session registry, matching queue, and room registry — kept as
// a narrow interface here so this package never imports theirs.
type StatsSource interface {
	SessionCount() int
	WaitingCount() int
	RoomCount() int
}

// NewRouter builds the admin HTTP handler: GET /healthz and GET /stats.
func NewRouter(stats StatsSource, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		s := Stats{
			Sessions: stats.SessionCount(),
			Waiting:  stats.WaitingCount(),
			Rooms:    stats.RoomCount(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s); err != nil {
			log.Warn("encoding stats response failed", zap.Error(err))
		}
	})

	return r
}
