package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/api/shared"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/identity"
	"github.com/phrazzld/renaissance/internal/service/training"
)

// TrainingService is the session lifecycle used by TrainingHandler.
type TrainingService interface {
	ResumeOrCreate(ctx context.Context, user uuid.UUID, axeID string, stage domain.Stage) (*training.SessionView, error)
	Advance(ctx context.Context, user, sessionID uuid.UUID, sub training.Submission) (*training.AdvanceResult, error)
	Restart(ctx context.Context, user uuid.UUID, axeID string, stage domain.Stage) (*training.SessionView, error)
	Session(ctx context.Context, user, sessionID uuid.UUID) (*training.SessionView, error)
	Unlocks(ctx context.Context, user uuid.UUID, axeID string) (map[domain.Stage]bool, error)
}

var _ TrainingService = (*training.Manager)(nil)

// TrainingHandler handles session and attempt requests.
type TrainingHandler struct {
	service TrainingService
	ids     identity.Provider
	logger  *slog.Logger
}

// NewTrainingHandler creates a TrainingHandler.
func NewTrainingHandler(service TrainingService, ids identity.Provider, logger *slog.Logger) *TrainingHandler {
	if service == nil {
		panic("training service cannot be nil")
	}
	if ids == nil {
		panic("identity provider cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainingHandler{
		service: service,
		ids:     ids,
		logger:  logger.With(slog.String("component", "training_handler")),
	}
}

// StartSession handles POST /api/axes/{axeID}/stages/{stage}/session.
// It resumes the active session of the stage or opens a new one; 201 is
// returned only when a session was created.
func (h *TrainingHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	log := handlerLogger(r, h.logger)
	userID, ok := currentUser(w, r, h.ids, log)
	if !ok {
		return
	}
	axeID, stage, ok := axeAndStage(w, r, log)
	if !ok {
		return
	}

	view, err := h.service.ResumeOrCreate(r.Context(), userID, axeID, stage)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	status := http.StatusCreated
	if view.Resumed {
		status = http.StatusOK
	}
	shared.RespondWithJSON(w, r, status, sessionToResponse(view))
}

// RestartSession handles POST /api/axes/{axeID}/stages/{stage}/session/restart.
func (h *TrainingHandler) RestartSession(w http.ResponseWriter, r *http.Request) {
	log := handlerLogger(r, h.logger)
	userID, ok := currentUser(w, r, h.ids, log)
	if !ok {
		return
	}
	axeID, stage, ok := axeAndStage(w, r, log)
	if !ok {
		return
	}

	view, err := h.service.Restart(r.Context(), userID, axeID, stage)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, sessionToResponse(view))
}

// GetSession handles GET /api/sessions/{sessionID}.
func (h *TrainingHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	log := handlerLogger(r, h.logger)
	userID, ok := currentUser(w, r, h.ids, log)
	if !ok {
		return
	}
	sessionID, err := getPathUUID(r, "sessionID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	view, err := h.service.Session(r.Context(), userID, sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sessionToResponse(view))
}

// SubmitAttempt handles POST /api/sessions/{sessionID}/attempts.
func (h *TrainingHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	log := handlerLogger(r, h.logger)
	userID, ok := currentUser(w, r, h.ids, log)
	if !ok {
		return
	}
	sessionID, err := getPathUUID(r, "sessionID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req SubmitAttemptRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	res, err := h.service.Advance(r.Context(), userID, sessionID, training.Submission{
		AttemptOrdinal: *req.AttemptOrdinal,
		Recalled:       req.Recalled,
		ResponseTime:   time.Duration(req.ResponseTimeMs) * time.Millisecond,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	shared.RespondWithJSON(w, r, status, attemptToResponse(res))
}

// GetUnlocks handles GET /api/axes/{axeID}/unlocks. Every stage is reported
// locked when the answer cannot be computed.
func (h *TrainingHandler) GetUnlocks(w http.ResponseWriter, r *http.Request) {
	log := handlerLogger(r, h.logger)
	userID, ok := currentUser(w, r, h.ids, log)
	if !ok {
		return
	}
	axeID := chi.URLParam(r, "axeID")

	unlocks, err := h.service.Unlocks(r.Context(), userID, axeID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, UnlocksResponse{AxeID: axeID, Unlocks: unlocks})
}
