package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/renaissance/internal/api/shared"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/identity"
	"github.com/phrazzld/renaissance/internal/service/auth"
	"github.com/phrazzld/renaissance/internal/service/training"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// exposing internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return http.StatusUnauthorized

	case errors.Is(err, training.ErrLocked):
		return http.StatusLocked

	case errors.Is(err, training.ErrNotSelected):
		return http.StatusForbidden

	case errors.Is(err, training.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, training.ErrInvalidInput),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidStage):
		return http.StatusBadRequest

	case errors.Is(err, training.ErrInconsistentState):
		return http.StatusConflict

	case errors.Is(err, training.ErrStorageFailure):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err. Service
// messages are never echoed since they may name internal state.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return "Authentication required"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"
	case errors.Is(err, training.ErrLocked):
		return "Stage is locked"
	case errors.Is(err, training.ErrNotSelected):
		return "Axe is not in your selection"
	case errors.Is(err, training.ErrNotFound):
		return "Resource not found"
	case errors.Is(err, domain.ErrInvalidStage):
		return "Unknown stage"
	case errors.Is(err, training.ErrInvalidInput),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID):
		return "Invalid request"
	case errors.Is(err, training.ErrInconsistentState):
		return "Session is being repaired, please retry shortly"
	case errors.Is(err, training.ErrStorageFailure):
		return "Storage temporarily unavailable"
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the response for err. A non-empty message overrides
// the default safe message for the error's class.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), message, err)
}

// HandleValidationError writes a 400 response naming the first invalid field.
func HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
}

// SanitizeValidationError turns validator errors into a message naming the
// field and the failed rule. Other errors become a generic message.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(fe.Tag()))
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte":
		return "too small"
	case "max", "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
