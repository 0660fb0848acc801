package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/identity"
	"github.com/phrazzld/renaissance/internal/platform/logger"
)

// currentUser resolves the learner of the request, writing a 401 response
// when there is none.
func currentUser(w http.ResponseWriter, r *http.Request, ids identity.Provider, log *slog.Logger) (uuid.UUID, bool) {
	userID, err := ids.CurrentUserID(r.Context())
	if err != nil {
		log.Warn("learner not found in request context")
		HandleAPIError(w, r, err, "")
		return uuid.Nil, false
	}
	return userID, true
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}
	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}
	return id, nil
}

// axeAndStage extracts the axe ID and stage path parameters, writing a 400
// response when either is invalid.
func axeAndStage(w http.ResponseWriter, r *http.Request, log *slog.Logger) (string, domain.Stage, bool) {
	axeID := chi.URLParam(r, "axeID")
	if axeID == "" {
		HandleAPIError(w, r, domain.NewValidationError("axeID", "is required", domain.ErrValidation), "")
		return "", "", false
	}
	stage, err := domain.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		log.Debug("invalid stage in path", slog.String("stage", chi.URLParam(r, "stage")))
		HandleAPIError(w, r, err, "")
		return "", "", false
	}
	return axeID, stage, true
}

// handlerLogger returns the request-scoped logger, falling back to base.
func handlerLogger(r *http.Request, base *slog.Logger) *slog.Logger {
	return logger.FromContextOrDefault(r.Context(), base)
}
