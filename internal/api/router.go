package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	apiMiddleware "github.com/phrazzld/renaissance/internal/api/middleware"
	"github.com/phrazzld/renaissance/internal/api/shared"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps holds everything NewRouter wires together.
type RouterDeps struct {
	Training *TrainingHandler
	Stats    *StatsHandler
	Catalog  *CatalogHandler
	Auth     *apiMiddleware.AuthMiddleware
	// DB is pinged by the health check; nil reports healthy.
	DB     Pinger
	Logger *slog.Logger
}

// NewRouter builds the HTTP routes of the training API.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(deps.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		r.Get("/axes", deps.Catalog.ListAxes)
		r.Get("/selections", deps.Catalog.ListSelections)
		r.Put("/selections", deps.Catalog.ReplaceSelection)

		r.Route("/axes/{axeID}", func(r chi.Router) {
			r.Get("/unlocks", deps.Training.GetUnlocks)
			r.Get("/stats", deps.Stats.GetAxeStats)
			r.Post("/stages/{stage}/session", deps.Training.StartSession)
			r.Post("/stages/{stage}/session/restart", deps.Training.RestartSession)
		})

		r.Get("/sessions/{sessionID}", deps.Training.GetSession)
		r.Post("/sessions/{sessionID}/attempts", deps.Training.SubmitAttempt)
		r.Get("/stats", deps.Stats.GetUserStats)
	})

	r.Get("/health", healthHandler(deps.DB))
	return r
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Database unavailable", err)
				return
			}
		}
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
