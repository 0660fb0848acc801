package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/api/shared"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/identity"
	"github.com/phrazzld/renaissance/internal/service/training"
)

// Catalog lists the axes learners can select.
type Catalog interface {
	List(ctx context.Context) ([]*domain.Axe, error)
}

// SelectionService reads and replaces a learner's selection.
type SelectionService interface {
	List(ctx context.Context, user uuid.UUID) ([]*domain.UserAxeSelection, error)
	Replace(ctx context.Context, user uuid.UUID, choices []training.Choice) ([]*domain.UserAxeSelection, error)
}

var _ SelectionService = (*training.Selector)(nil)

// CatalogHandler serves the axe catalog and learner selections.
type CatalogHandler struct {
	catalog    Catalog
	selections SelectionService
	ids        identity.Provider
	logger     *slog.Logger
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(catalog Catalog, selections SelectionService, ids identity.Provider, logger *slog.Logger) *CatalogHandler {
	if catalog == nil {
		panic("catalog cannot be nil")
	}
	if selections == nil {
		panic("selection service cannot be nil")
	}
	if ids == nil {
		panic("identity provider cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogHandler{
		catalog:    catalog,
		selections: selections,
		ids:        ids,
		logger:     logger.With(slog.String("component", "catalog_handler")),
	}
}

// ListAxes handles GET /api/axes.
func (h *CatalogHandler) ListAxes(w http.ResponseWriter, r *http.Request) {
	log := handlerLogger(r, h.logger)
	if _, ok := currentUser(w, r, h.ids, log); !ok {
		return
	}

	axes, err := h.catalog.List(r.Context())
	if err != nil {
		HandleAPIError(w, r, training.NewServiceError("list_axes", "cannot list catalog", training.ErrStorageFailure, err), "")
		return
	}

	out := make([]AxeResponse, 0, len(axes))
	for _, a := range axes {
		out = append(out, AxeResponse{
			ID:           a.ID,
			Name:         a.Name,
			Customizable: a.Customizable,
			Phrases:      a.PhraseTexts(),
		})
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// ListSelections handles GET /api/selections.
func (h *CatalogHandler) ListSelections(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.ids, handlerLogger(r, h.logger))
	if !ok {
		return
	}
	sels, err := h.selections.List(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, selectionsToResponse(sels))
}

// ReplaceSelection handles PUT /api/selections.
func (h *CatalogHandler) ReplaceSelection(w http.ResponseWriter, r *http.Request) {
	log := handlerLogger(r, h.logger)
	userID, ok := currentUser(w, r, h.ids, log)
	if !ok {
		return
	}

	var req ReplaceSelectionRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	sels, err := h.selections.Replace(r.Context(), userID, req.Axes)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	log.Debug("selection replaced", slog.Int("axes", len(sels)))
	shared.RespondWithJSON(w, r, http.StatusOK, selectionsToResponse(sels))
}
