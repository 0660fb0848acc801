package training

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/renaissance/internal/store"
)

// Error taxonomy of the training service. Callers test with errors.Is; every
// error returned by this package matches exactly one of them, or a context
// error when the caller gave up.
var (
	// ErrLocked indicates the requested stage is not unlocked yet.
	ErrLocked = errors.New("stage is locked")

	// ErrNotSelected indicates the learner has not selected the axe.
	ErrNotSelected = errors.New("axe is not selected")

	// ErrNotFound indicates the axe or session does not exist, or belongs to
	// another learner.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a malformed or out-of-order request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageFailure indicates the store could not complete the operation.
	ErrStorageFailure = errors.New("storage failure")

	// ErrInconsistentState indicates stored data violates an invariant, for
	// example session counters that disagree with the attempt ledger.
	ErrInconsistentState = errors.New("inconsistent session state")
)

// ServiceError wraps errors from the training service with additional context.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "advance", "restart")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a ServiceError whose chain contains both kind and cause.
func NewServiceError(operation, message string, kind, cause error) *ServiceError {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}
	return &ServiceError{Operation: operation, Message: message, Err: err}
}

func invalidInput(operation, message string) error {
	return NewServiceError(operation, message, ErrInvalidInput, nil)
}

// isServiceKind reports whether err already carries a taxonomy sentinel.
func isServiceKind(err error) bool {
	return errors.Is(err, ErrLocked) ||
		errors.Is(err, ErrNotSelected) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrStorageFailure) ||
		errors.Is(err, ErrInconsistentState)
}

// translate maps store errors onto the service taxonomy.
func translate(operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case isServiceKind(err):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if errors.Is(err, store.ErrUnavailable) {
			return NewServiceError(operation, "store timed out", ErrStorageFailure, err)
		}
		return err
	case errors.Is(err, store.ErrSelectionNotFound):
		return NewServiceError(operation, "axe not selected", ErrNotSelected, err)
	case errors.Is(err, store.ErrNotFound):
		return NewServiceError(operation, "not found", ErrNotFound, err)
	case errors.Is(err, store.ErrDuplicate):
		return NewServiceError(operation, "conflicting concurrent request", ErrInvalidInput, err)
	case errors.Is(err, store.ErrInvalidEntity):
		return NewServiceError(operation, "stored data is invalid", ErrInconsistentState, err)
	default:
		return NewServiceError(operation, "store operation failed", ErrStorageFailure, err)
	}
}

// transient reports whether a failed operation may succeed when retried. A
// lost race to open the active session resolves on the next read.
func transient(err error) bool {
	return errors.Is(err, store.ErrUnavailable) ||
		errors.Is(err, store.ErrTransactionFailed) ||
		errors.Is(err, store.ErrActiveSessionExists)
}
