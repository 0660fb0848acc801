package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrSessionNotFound, ErrAxeNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a second active session for the same stage).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored, or when a stored row cannot be decoded into a valid entity.
	// Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update operation fails, for example
	// because the entity does not exist or the update violates constraints.
	ErrUpdateFailed = errors.New("update failed")

	// ErrDeleteFailed is returned when a delete operation fails, for example
	// because the entity is referenced by other entities.
	ErrDeleteFailed = errors.New("delete failed")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrUnavailable is returned when the backing store cannot be reached or
	// fails transiently. Callers may retry idempotent operations.
	ErrUnavailable = errors.New("store unavailable")

	// Entity-specific "not found" errors

	// ErrAxeNotFound indicates that the requested axe does not exist in the store.
	ErrAxeNotFound = fmt.Errorf("%w: axe", ErrNotFound)

	// ErrSelectionNotFound indicates that the user has not selected the axe.
	ErrSelectionNotFound = fmt.Errorf("%w: axe selection", ErrNotFound)

	// ErrSessionNotFound indicates that the requested game session does not exist.
	ErrSessionNotFound = fmt.Errorf("%w: game session", ErrNotFound)

	// ErrAttemptNotFound indicates that no attempt exists for the given key.
	ErrAttemptNotFound = fmt.Errorf("%w: attempt", ErrNotFound)

	// ErrCompletionNotFound indicates that no completion record exists for the stage.
	ErrCompletionNotFound = fmt.Errorf("%w: stage completion", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrActiveSessionExists indicates that an active session already exists
	// for the (user, axe, stage) key.
	ErrActiveSessionExists = fmt.Errorf("%w: active session", ErrDuplicate)

	// ErrAttemptExists indicates that an attempt was already recorded under
	// the same (session, phrase, attempt ordinal) key.
	ErrAttemptExists = fmt.Errorf("%w: attempt", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
// All entity-specific not found errors wrap ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "game_session", "attempt")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// InvalidEntity wraps a validation failure of a decoded row.
func InvalidEntity(entity string, err error) error {
	return NewStoreError(entity, "decode", "stored row is malformed", fmt.Errorf("%w: %w", ErrInvalidEntity, err))
}
