package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/api/shared"
	"github.com/phrazzld/renaissance/internal/identity"
	"github.com/phrazzld/renaissance/internal/service/stats"
)

// StatsService computes learner statistics.
type StatsService interface {
	AxeStats(ctx context.Context, user uuid.UUID, axeID string) (*stats.AxeStats, error)
	UserStats(ctx context.Context, user uuid.UUID) (*stats.UserStats, error)
}

var _ StatsService = (*stats.Aggregator)(nil)

// StatsHandler serves statistics requests.
type StatsHandler struct {
	service StatsService
	ids     identity.Provider
	logger  *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(service StatsService, ids identity.Provider, logger *slog.Logger) *StatsHandler {
	if service == nil {
		panic("stats service cannot be nil")
	}
	if ids == nil {
		panic("identity provider cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{
		service: service,
		ids:     ids,
		logger:  logger.With(slog.String("component", "stats_handler")),
	}
}

// GetAxeStats handles GET /api/axes/{axeID}/stats.
func (h *StatsHandler) GetAxeStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.ids, handlerLogger(r, h.logger))
	if !ok {
		return
	}
	s, err := h.service.AxeStats(r.Context(), userID, chi.URLParam(r, "axeID"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, axeStatsToResponse(s))
}

// GetUserStats handles GET /api/stats.
func (h *StatsHandler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.ids, handlerLogger(r, h.logger))
	if !ok {
		return
	}
	s, err := h.service.UserStats(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userStatsToResponse(s))
}
